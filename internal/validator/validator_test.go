package validator

import (
	"errors"
	"testing"

	"github.com/starford/metacheck/internal/annotation"
	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/models"
)

const testPath = "/seq/10001/10001_1#30.bam"

func wellFormed() map[string][]string {
	return map[string][]string{
		"md5":       {"2b84f847c8418e5d1ccb26e8e5633c53"},
		"reference": {"/lustre/ref/Homo_sapiens/GRCh38/all/fasta/Homo_sapiens.GRCh38.fa"},
		"id_run":    {"10001"},
		"lane":      {"1"},
		"manual_qc": {"1"},
		"target":    {"1"},
		"sample":    {"s1", "s2"},
	}
}

func TestValidate_WellFormed(t *testing.T) {
	v := New(DefaultRules())
	got := v.Validate(annotation.FromMap(wellFormed()), testPath)
	if len(got) != 0 {
		t.Fatalf("expected no discrepancies, got %v", got)
	}
}

func TestValidate_MissingEachSingleton(t *testing.T) {
	v := New(DefaultRules())
	for _, attr := range DefaultAttributes().Singletons() {
		t.Run(attr, func(t *testing.T) {
			m := wellFormed()
			delete(m, attr)
			got := v.Validate(annotation.FromMap(m), testPath)
			if len(got) != 1 {
				t.Fatalf("got %d discrepancies, want 1: %v", len(got), got)
			}
			d := got[0]
			if d.Kind != models.KindAttributeFrequency || d.Attribute != attr {
				t.Errorf("discrepancy = %+v", d)
			}
			if d.Expected != "1" || d.Actual != "0" {
				t.Errorf("expected/actual = %q/%q", d.Expected, d.Actual)
			}
		})
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	v := New(DefaultRules())
	m := wellFormed()
	m["md5"] = []string{"a", "b"}
	m["id_run"] = []string{"10x01"}
	delete(m, "lane")
	m["manual_qc"] = []string{"pass"}

	got := v.Validate(annotation.FromMap(m), testPath)
	if len(got) != 4 {
		t.Fatalf("got %d discrepancies, want 4: %v", len(got), got)
	}
	wantKinds := []models.Kind{
		models.KindAttributeFrequency,
		models.KindWrongAttributeFormat,
		models.KindAttributeFrequency,
		models.KindWrongAttributeFormat,
	}
	wantAttrs := []string{"md5", "id_run", "lane", "manual_qc"}
	for i := range got {
		if got[i].Kind != wantKinds[i] || got[i].Attribute != wantAttrs[i] {
			t.Errorf("[%d] = %s/%s, want %s/%s", i, got[i].Kind, got[i].Attribute, wantKinds[i], wantAttrs[i])
		}
	}
	if got[0].Actual != "2" {
		t.Errorf("md5 count actual = %q, want 2", got[0].Actual)
	}
}

func TestValidate_ChecksumFormat(t *testing.T) {
	v := New(DefaultRules())
	for _, bad := range []string{"", "2B84F847C8418E5D1CCB26E8E5633C53", "2b84f847", "zz84f847c8418e5d1ccb26e8e5633c53"} {
		m := wellFormed()
		m["md5"] = []string{bad}
		got := v.Validate(annotation.FromMap(m), testPath)
		if len(got) != 1 || got[0].Kind != models.KindWrongAttributeFormat {
			t.Errorf("md5 %q: got %v", bad, got)
		}
	}
}

func TestValidate_TokensAreConfigurable(t *testing.T) {
	rules := DefaultRules()
	rules.QualityControlTokens = []string{"true", "false"}
	v := New(rules)

	m := wellFormed()
	m["manual_qc"] = []string{"true"}
	if got := v.Validate(annotation.FromMap(m), testPath); len(got) != 0 {
		t.Errorf("true should be accepted: %v", got)
	}
	m["manual_qc"] = []string{"1"}
	if got := v.Validate(annotation.FromMap(m), testPath); len(got) != 1 {
		t.Errorf("1 should be rejected under true/false tokens: %v", got)
	}
}

func TestValidate_BadReference(t *testing.T) {
	v := New(DefaultRules())
	m := wellFormed()
	m["reference"] = []string{"/lustre/ref/readme.txt"}
	got := v.Validate(annotation.FromMap(m), testPath)
	if len(got) != 1 || got[0].Kind != models.KindWrongReferenceFormat {
		t.Fatalf("got %v", got)
	}
}

func TestReduceReference(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/lustre/ref/Homo_sapiens/GRCh38/all/fasta/Homo_sapiens.GRCh38.fa", "Homo_sapiens.GRCh38"},
		{"/ref/hs37d5.fasta", "hs37d5"},
		{"/ref/GRCh37.fa.gz", "GRCh37"},
		{"phix.fa", "phix"},
	}
	for _, tc := range cases {
		got, err := ReduceReference(tc.in, ".fa")
		if err != nil {
			t.Errorf("ReduceReference(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ReduceReference(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReduceReference_Failures(t *testing.T) {
	for _, in := range []string{"", "/ref/genome.txt", "/ref/.fa", "/ref/dir/"} {
		_, err := ReduceReference(in, ".fa")
		if !errors.Is(err, apperr.ErrNotAReference) {
			t.Errorf("ReduceReference(%q) err = %v, want ErrNotAReference", in, err)
		}
	}
}

func TestRules_Validate(t *testing.T) {
	r := DefaultRules()
	if err := r.Validate(); err != nil {
		t.Fatalf("default rules: %v", err)
	}
	r.Attributes.Checksum = ""
	if err := r.Validate(); err == nil {
		t.Error("empty checksum attribute should fail")
	}
}
