package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/checksum"
	"github.com/starford/metacheck/internal/models"
)

func tempArchive(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func testSidecar(run, qc string) *Sidecar {
	return &Sidecar{
		Annotations: []models.RawAnnotation{
			{Attribute: "id_run", Value: run},
			{Attribute: "manual_qc", Value: qc},
			{Attribute: "sample", Value: "s1"},
			{Attribute: "sample", Value: "s2"},
		},
		Replicas: []models.Replica{{Number: 0, Resource: "disk1", Checksum: "abc", Valid: true}},
		ACL:      []models.AccessControl{{Owner: "ss_619", Zone: "seq", Level: models.AccessRead}},
	}
}

func TestPutAndRead(t *testing.T) {
	s := tempArchive(t)
	ctx := context.Background()
	content := []byte("BAM content")
	if err := s.Put("/seq/10001/10001_1#30.bam", content, testSidecar("10001", "1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	anns, err := s.Annotations(ctx, "/seq/10001/10001_1#30.bam")
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	if len(anns) != 4 || anns[2].Value != "s1" || anns[3].Value != "s2" {
		t.Errorf("annotations = %v", anns)
	}

	sum, err := s.Checksum(ctx, "/seq/10001/10001_1#30.bam")
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if sum != checksum.Sum(content) {
		t.Errorf("checksum = %s", sum)
	}

	reps, err := s.Replicas(ctx, "/seq/10001/10001_1#30.bam")
	if err != nil || len(reps) != 1 || reps[0].Resource != "disk1" || !reps[0].Valid {
		t.Errorf("replicas = %v, %v", reps, err)
	}
	acl, err := s.ACL(ctx, "/seq/10001/10001_1#30.bam")
	if err != nil || len(acl) != 1 || acl[0].String() != "ss_619#seq:read" {
		t.Errorf("acl = %v, %v", acl, err)
	}

	rc, err := s.Open(ctx, "/seq/10001/10001_1#30.bam")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != string(content) {
		t.Errorf("content = %q", got)
	}
}

func TestAnnotations_NoSidecar(t *testing.T) {
	s := tempArchive(t)
	_ = s.Put("/seq/1/1_1.bam", []byte("x"), nil)
	anns, err := s.Annotations(context.Background(), "/seq/1/1_1.bam")
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	if len(anns) != 0 {
		t.Errorf("annotations = %v", anns)
	}
}

func TestAnnotations_Missing(t *testing.T) {
	s := tempArchive(t)
	_, err := s.Annotations(context.Background(), "/seq/1/missing.bam")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := tempArchive(t)
	_ = s.Put("/seq/10001/10001_1#30.bam", []byte("a"), testSidecar("10001", "1"))
	_ = s.Put("/seq/10001/10001_2#30.bam", []byte("b"), nil)
	_ = s.Put("/seq/10002/10002_1.bam", []byte("c"), testSidecar("10002", "0"))

	items, err := s.List(context.Background(), "/seq/10001")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"/seq/10001/10001_1#30.bam", "/seq/10001/10001_2#30.bam"}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %q, want %q", i, items[i], want[i])
		}
	}

	all, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}
}

func TestFind(t *testing.T) {
	s := tempArchive(t)
	_ = s.Put("/seq/10001/10001_1#30.bam", []byte("a"), testSidecar("10001", "1"))
	_ = s.Put("/seq/10002/10002_1.bam", []byte("c"), testSidecar("10002", "0"))
	_ = s.Put("/seq/10003/10003_1.bam", []byte("d"), nil)

	got, err := s.Find(context.Background(), Query{Match: []models.RawAnnotation{{Attribute: "manual_qc", Value: "1"}}})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0] != "/seq/10001/10001_1#30.bam" {
		t.Errorf("Find = %v", got)
	}

	got, _ = s.Find(context.Background(), Query{Collection: "/seq/10002"})
	if len(got) != 1 || got[0] != "/seq/10002/10002_1.bam" {
		t.Errorf("Find in collection = %v", got)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempArchive(t)
	ctx := context.Background()
	cases := []string{
		"../../etc/passwd",
		"/../outside.bam",
		"/seq/../../x.bam",
	}
	for _, p := range cases {
		if _, err := s.Open(ctx, p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Put(p, []byte("x"), nil); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempArchive(t)
	_ = s.Put("/seq/1/1_1.bam", []byte("original"), nil)
	if err := s.Put("/seq/1/1_1.bam", []byte("updated"), testSidecar("1", "1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(s.Root(), "seq", "1", "1_1.bam"))
	if string(data) != "updated" {
		t.Errorf("content = %q", data)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), "seq", "1", ".metacheck-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestArchivePath(t *testing.T) {
	s := tempArchive(t)
	got, err := s.ArchivePath(filepath.Join(s.Root(), "seq", "1", "1_1.bam"))
	if err != nil || got != "/seq/1/1_1.bam" {
		t.Errorf("ArchivePath = %q, %v", got, err)
	}
	if _, err := s.ArchivePath(filepath.Dir(s.Root())); err == nil {
		t.Error("expected error outside root")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/metacheck-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "metacheck-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestFingerprintChangesWithSidecar(t *testing.T) {
	s := tempArchive(t)
	_ = s.Put("/seq/1/1_1.bam", []byte("x"), testSidecar("1", "1"))
	before, err := s.Fingerprint("/seq/1/1_1.bam")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	again, _ := s.Fingerprint("/seq/1/1_1.bam")
	if before != again {
		t.Errorf("fingerprint not stable: %s vs %s", before, again)
	}
	_ = s.PutSidecar("/seq/1/1_1.bam", testSidecar("1", "0"))
	after, _ := s.Fingerprint("/seq/1/1_1.bam")
	if before == after {
		t.Error("fingerprint did not change after sidecar rewrite")
	}
	if _, err := s.Fingerprint("/seq/1/missing.bam"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
