package reconcile

import (
	"testing"

	"github.com/starford/metacheck/internal/lanelet"
	"github.com/starford/metacheck/internal/models"
)

func identityInput(storageAccessions ...string) Input {
	hdr := models.SourceRecord{
		Source:  models.SourceHeader,
		Samples: models.NewIdentifierSet(nil, []string{"ERS12345"}, nil),
	}
	return Input{
		Path:   testPath,
		Header: &hdr,
		Storage: models.SourceRecord{
			Source:  models.SourceStorage,
			Samples: models.NewIdentifierSet(nil, storageAccessions, nil),
		},
	}
}

func testReconciler(t *testing.T) *Reconciler {
	t.Helper()
	r, err := NewReconciler(DefaultPolicy(), ".fa")
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	return r
}

func TestIdentities_HeaderAccessionContained(t *testing.T) {
	r := testReconciler(t)
	got := filter(r.identities(identityInput("ERS12345")), models.KindIdentifierNotFound)
	if len(got) != 0 {
		t.Fatalf("expected no findings, got %v", got)
	}
}

func TestIdentities_HeaderAccessionMissing(t *testing.T) {
	r := testReconciler(t)
	got := filter(r.identities(identityInput()), models.KindIdentifierNotFound)
	if len(got) != 1 {
		t.Fatalf("expected one finding, got %v", got)
	}
	d := got[0]
	if d.Actual != "ERS12345" || d.Entity != models.EntitySample || d.IDClass != models.ClassAccessionNumber {
		t.Errorf("unexpected finding %v", d)
	}
	if d.SourceA != models.SourceHeader || d.SourceB != models.SourceStorage {
		t.Errorf("sources = %s/%s", d.SourceA, d.SourceB)
	}
}

func TestIdentities_ClassesAreIndependent(t *testing.T) {
	r := testReconciler(t)
	in := identityInput()
	// The same string under another class does not satisfy containment.
	in.Storage.Samples = models.NewIdentifierSet([]string{"ERS12345"}, nil, nil)
	if got := filter(r.identities(in), models.KindIdentifierNotFound); len(got) != 1 {
		t.Fatalf("expected one finding, got %v", got)
	}
}

func TestReconcile_AllChecksRunWithoutInputs(t *testing.T) {
	r := testReconciler(t)
	got := r.Reconcile(Input{Path: testPath})
	checks := map[string]bool{}
	for _, d := range got {
		if d.Kind != models.KindCheckSkipped {
			t.Errorf("unexpected finding %v", d)
		}
		checks[d.Check] = true
	}
	for _, c := range []string{
		models.CheckHeaderIDsInStorage, models.CheckHeaderIDsInLIMS, models.CheckStorageIDsInLIMS,
		models.CheckRunID, models.CheckLaneID, models.CheckLaneletName, models.CheckHeaderReference,
	} {
		if !checks[c] {
			t.Errorf("check %s not reported", c)
		}
	}
}

func TestLaneletName_AmbiguousHeader(t *testing.T) {
	r := testReconciler(t)
	hdr := models.SourceRecord{Source: models.SourceHeader, Lanelets: models.Values{"10001_1#30", "10001_2#30"}}
	dec := lanelet.Decoded{RunID: "10001", LaneID: "1", TagID: "30", BareName: "10001_1#30", HasTag: true}
	got := r.laneletName(Input{Path: testPath, Header: &hdr, Decoded: &dec})
	if len(got) != 1 || got[0].Kind != models.KindCheckSkipped {
		t.Fatalf("expected skipped check, got %v", got)
	}
	hdr.Lanelets = nil
	got = r.laneletName(Input{Path: testPath, Header: &hdr, Decoded: &dec})
	if len(got) != 1 || got[0].Kind != models.KindCheckSkipped {
		t.Fatalf("expected skipped check, got %v", got)
	}
}

func TestPolicyValidate(t *testing.T) {
	p := DefaultPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	p.Containment = "both"
	if err := p.Validate(); err == nil {
		t.Error("expected error for unknown containment")
	}
	p = DefaultPolicy()
	p.UnrecognizedSeverity = "fatal"
	if err := p.Validate(); err == nil {
		t.Error("expected error for unknown severity")
	}
}
