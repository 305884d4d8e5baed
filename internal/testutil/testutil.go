// Package testutil provides shared test helpers for setting up archives and databases.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/starford/metacheck/internal/checksum"
	"github.com/starford/metacheck/internal/index"
	"github.com/starford/metacheck/internal/models"
	"github.com/starford/metacheck/internal/storage"
)

// Reference is the reference path every fixture file is aligned to.
const Reference = "/lustre/ref/Homo_sapiens/GRCh37/all/fasta/hs37d5.fa"

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "metacheck-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestArchive creates a temporary archive root with an FS provider.
func TestArchive(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// Lanelet describes one consistent fixture file.
type Lanelet struct {
	RunID  string
	Lane   string
	Tag    string
	Sample string // accession number
	// Library is the library internal id.
	Library string
	Study   string // accession number
	StudyID string
}

// DefaultLanelet returns a lanelet whose metadata agrees everywhere.
func DefaultLanelet() Lanelet {
	return Lanelet{
		RunID:   "10001",
		Lane:    "1",
		Tag:     "30",
		Sample:  "ERS12345",
		Library: "12345678",
		Study:   "ERP000123",
		StudyID: "619",
	}
}

// Name returns the bare lanelet name.
func (l Lanelet) Name() string {
	name := l.RunID + "_" + l.Lane
	if l.Tag != "" {
		name += "#" + l.Tag
	}
	return name
}

// Path returns the archive path of the SAM file.
func (l Lanelet) Path() string {
	return fmt.Sprintf("/seq/%s/%s.sam", l.RunID, l.Name())
}

// SAM renders a header followed by one alignment line.
func (l Lanelet) SAM() []byte {
	var b strings.Builder
	b.WriteString("@HD\tVN:1.6\tSO:coordinate\n")
	fmt.Fprintf(&b, "@SQ\tSN:1\tLN:249250621\tUR:file:%s\n", Reference)
	fmt.Fprintf(&b, "@RG\tID:%s_%s\tPU:%s\tLB:%s\tSM:%s\tDS:%s\n", l.Lane, l.Tag, l.Name(), l.Library, l.Sample, l.Study)
	b.WriteString("read1\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\tIIII\n")
	return []byte(b.String())
}

// Sidecar returns catalog metadata that agrees with the SAM content.
func (l Lanelet) Sidecar() *storage.Sidecar {
	sum := checksum.Sum(l.SAM())
	return &storage.Sidecar{
		Annotations: []models.RawAnnotation{
			{Attribute: "md5", Value: sum},
			{Attribute: "reference", Value: Reference},
			{Attribute: "id_run", Value: l.RunID},
			{Attribute: "lane", Value: l.Lane},
			{Attribute: "manual_qc", Value: "1"},
			{Attribute: "target", Value: "1"},
			{Attribute: "sample_accession_number", Value: l.Sample},
			{Attribute: "library_id", Value: l.Library},
			{Attribute: "study_accession_number", Value: l.Study},
			{Attribute: "study_id", Value: l.StudyID},
		},
		Replicas: []models.Replica{
			{Number: 0, Resource: "replResc", Checksum: sum, Valid: true},
		},
		ACL: []models.AccessControl{
			{Owner: "srpipe", Zone: "seq", Level: models.AccessOwn},
			{Owner: "ss_" + l.StudyID, Zone: "seq", Level: models.AccessRead},
		},
	}
}

// PutLanelet stores the lanelet content and sidecar and returns its path.
func PutLanelet(t *testing.T, store *storage.FS, l Lanelet) string {
	t.Helper()
	if err := store.Put(l.Path(), l.SAM(), l.Sidecar()); err != nil {
		t.Fatal(err)
	}
	return l.Path()
}
