package index

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "metacheck-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testReport(id string, started time.Time) *models.Report {
	const a, b = "/seq/10001/10001_1#30.bam", "/seq/10001/10001_2#30.bam"
	return &models.Report{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Files: []models.FileResult{
			{Path: b, Discrepancies: []models.Discrepancy{
				models.FieldMismatch(b, models.CheckRunID, "run_id", "10002", "10001", models.SourceStorage, models.SourcePath),
				models.IdentifierNotFound(b, models.CheckHeaderIDsInStorage, models.EntitySample, models.ClassAccessionNumber, "ERS1", models.SourceHeader, models.SourceStorage),
				models.CheckSkipped(b, models.CheckLaneletName, "header reports 2 lanelet values"),
			}},
			{Path: a},
		},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"runs", "run_files", "findings", "file_state"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	want := testReport("run-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err := db.SaveRun(ctx, want); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !got.StartedAt.Equal(want.StartedAt) || !got.FinishedAt.Equal(want.FinishedAt) {
		t.Errorf("times = %v/%v", got.StartedAt, got.FinishedAt)
	}
	if diff := cmp.Diff(want.Files, got.Files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetRun(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveRun_DuplicateID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	r := testReport("dup", time.Now())
	if err := db.SaveRun(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveRun(ctx, r); err == nil {
		t.Error("expected error saving the same run twice")
	}
}

func TestListRuns(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := db.SaveRun(ctx, testReport(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	runs, total, err := db.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 3 || len(runs) != 2 {
		t.Fatalf("total=%d len=%d", total, len(runs))
	}
	if runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Errorf("order = %s, %s", runs[0].RunID, runs[1].RunID)
	}
	if runs[0].Files != 2 || runs[0].Clean != 1 || runs[0].Errors != 2 || runs[0].Warnings != 1 {
		t.Errorf("summary = %+v", runs[0])
	}
}

func TestPathHistory(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_ = db.SaveRun(ctx, testReport("old", base))
	_ = db.SaveRun(ctx, testReport("new", base.Add(time.Hour)))

	got, err := db.PathHistory(ctx, "/seq/10001/10001_2#30.bam", 4)
	if err != nil {
		t.Fatalf("PathHistory: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0].Kind != models.KindFieldMismatch {
		t.Errorf("first finding = %v", got[0])
	}
}

func TestFingerprints(t *testing.T) {
	db := testDB(t)
	if fp, err := db.Fingerprint("/seq/1/1_1.bam"); err != nil || fp != "" {
		t.Fatalf("Fingerprint = %q, %v", fp, err)
	}
	if err := db.SetFingerprint("/seq/1/1_1.bam", "f1", "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetFingerprint("/seq/1/1_1.bam", "f2", "run-2"); err != nil {
		t.Fatal(err)
	}
	if fp, _ := db.Fingerprint("/seq/1/1_1.bam"); fp != "f2" {
		t.Errorf("fingerprint = %q, want f2", fp)
	}
	all, err := db.AllFingerprints()
	if err != nil || len(all) != 1 {
		t.Fatalf("AllFingerprints = %v, %v", all, err)
	}
	if err := db.DeleteState("/seq/1/1_1.bam"); err != nil {
		t.Fatal(err)
	}
	if fp, _ := db.Fingerprint("/seq/1/1_1.bam"); fp != "" {
		t.Errorf("fingerprint after delete = %q", fp)
	}
}
