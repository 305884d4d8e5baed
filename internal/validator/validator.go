package validator

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/metacheck/internal/annotation"
	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/models"
)

var (
	md5Re    = regexp.MustCompile(`^[0-9a-f]{32}$`)
	digitsRe = regexp.MustCompile(`^\d+$`)
)

type fieldRule struct {
	attribute string
	rules     []validation.Rule
}

// Validator checks a file's aggregated annotations. It holds no per-file
// state and is safe for concurrent use.
type Validator struct {
	attrs  Attributes
	marker string
	fields []fieldRule
}

// New builds a Validator from rules.
func New(r Rules) *Validator {
	a := r.Attributes
	return &Validator{
		attrs:  a,
		marker: r.ReferenceMarker,
		fields: []fieldRule{
			{a.Checksum, []validation.Rule{
				validation.Required,
				validation.Match(md5Re).Error("must be 32 lowercase hexadecimal characters"),
			}},
			{a.Reference, nil},
			{a.RunID, []validation.Rule{
				validation.Required,
				validation.Match(digitsRe).Error("must contain digits only"),
			}},
			{a.LaneID, []validation.Rule{
				validation.Required,
				validation.Match(digitsRe).Error("must contain digits only"),
			}},
			{a.QualityControl, []validation.Rule{validation.Required, validation.In(tokens(r.QualityControlTokens)...)}},
			{a.Target, []validation.Rule{validation.Required, validation.In(tokens(r.TargetTokens)...)}},
		},
	}
}

func tokens(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Attributes returns the attribute names the validator was built with.
func (v *Validator) Attributes() Attributes {
	return v.attrs
}

// Validate returns every arity and format violation found in annotations.
// Each singleton attribute is checked independently; entity attributes are
// not arity checked.
func (v *Validator) Validate(annotations annotation.Aggregated, fpath string) []models.Discrepancy {
	var out []models.Discrepancy
	for _, f := range v.fields {
		values := annotations.Values(f.attribute)
		if len(values) != 1 {
			out = append(out, models.AttributeFrequency(fpath, f.attribute, 1, len(values)))
			continue
		}
		value := values[0]
		if f.attribute == v.attrs.Reference {
			if _, err := ReduceReference(value, v.marker); err != nil {
				out = append(out, models.WrongReferenceFormat(fpath, f.attribute, value, err.Error()))
			}
			continue
		}
		if err := validation.Validate(value, f.rules...); err != nil {
			out = append(out, models.WrongAttributeFormat(fpath, f.attribute, value, err.Error()))
		}
	}
	return out
}

// IsChecksum reports whether s looks like an MD5 hex digest.
func IsChecksum(s string) bool {
	return md5Re.MatchString(s)
}

// ReduceReference turns a reference path such as
// /lustre/ref/Homo_sapiens/GRCh38/all/fasta/Homo_sapiens.GRCh38.fa into the
// genome name Homo_sapiens.GRCh38: directories are stripped and everything
// from the first occurrence of marker onward is dropped.
func ReduceReference(refPath, marker string) (string, error) {
	name := refPath
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	i := strings.Index(name, marker)
	if marker == "" || i < 0 {
		return "", fmt.Errorf("%w: %q has no %q marker", apperr.ErrNotAReference, refPath, marker)
	}
	name = name[:i]
	if name == "" {
		return "", fmt.Errorf("%w: %q reduces to an empty name", apperr.ErrNotAReference, refPath)
	}
	return name, nil
}
