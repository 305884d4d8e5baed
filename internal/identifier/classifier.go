// Package identifier decides which namespace a raw identifier string belongs to.
package identifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/metacheck/internal/models"
)

// DefaultAccessionPattern matches INSDC and EGA accession numbers for
// samples, studies, experiments and runs.
const DefaultAccessionPattern = `^(?:E|S|D)R[ASPRXZ]\d+$|^EGA[NSDC]\d+$|^SAM[END]A?\d+$`

// DefaultMissingValues are placeholders pipelines write instead of a value.
var DefaultMissingValues = []string{"N/A", "unspecified", "undefined"}

var internalIDRe = regexp.MustCompile(`^\d+$`)

// Rules configures a Classifier.
type Rules struct {
	AccessionPattern string   `yaml:"accession_pattern" toml:"accession_pattern"`
	MissingValues    []string `yaml:"missing_values" toml:"missing_values"`
}

// Classifier maps identifier strings to classes. It is safe for concurrent use.
type Classifier struct {
	accession *regexp.Regexp
	missing   map[string]struct{}
}

// New compiles rules into a Classifier. Empty fields fall back to defaults.
func New(r Rules) (*Classifier, error) {
	pattern := r.AccessionPattern
	if pattern == "" {
		pattern = DefaultAccessionPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("identifier: accession pattern: %w", err)
	}
	missing := r.MissingValues
	if missing == nil {
		missing = DefaultMissingValues
	}
	c := &Classifier{accession: re, missing: make(map[string]struct{}, len(missing))}
	for _, m := range missing {
		c.missing[m] = struct{}{}
	}
	return c, nil
}

// Default returns a Classifier built from the default rules.
func Default() *Classifier {
	c, err := New(Rules{})
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the class of raw. The first matching rule wins:
// accession pattern, all digits, then any other non-missing value is a name.
func (c *Classifier) Classify(raw string) models.IdentifierClass {
	trimmed := strings.TrimSpace(raw)
	switch {
	case c.accession.MatchString(trimmed):
		return models.ClassAccessionNumber
	case internalIDRe.MatchString(trimmed):
		return models.ClassInternalID
	case trimmed == "" || c.isMissing(trimmed):
		return models.ClassUnrecognized
	default:
		return models.ClassName
	}
}

func (c *Classifier) isMissing(s string) bool {
	_, ok := c.missing[s]
	return ok
}

// Separate classifies every value and splits them into an IdentifierSet.
// Values that fit no class are returned in unrecognized, in input order.
// Duplicates within a class are kept once.
func (c *Classifier) Separate(values []string) (set models.IdentifierSet, unrecognized []string) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		class := c.Classify(v)
		if class == models.ClassUnrecognized {
			unrecognized = append(unrecognized, v)
			continue
		}
		v = strings.TrimSpace(v)
		key := string(class) + "\x00" + v
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		switch class {
		case models.ClassName:
			set.Names = append(set.Names, v)
		case models.ClassAccessionNumber:
			set.AccessionNumbers = append(set.AccessionNumbers, v)
		case models.ClassInternalID:
			set.InternalIDs = append(set.InternalIDs, v)
		}
	}
	return set, unrecognized
}

// Filter keeps the values that are not missing-value placeholders and
// returns the rest separately. The class of the kept values is decided by
// the caller (the attribute they were stored under), so no reclassification
// happens here.
func (c *Classifier) Filter(values []string) (kept, unrecognized []string) {
	for _, v := range values {
		if c.Classify(v) == models.ClassUnrecognized {
			unrecognized = append(unrecognized, v)
			continue
		}
		kept = append(kept, strings.TrimSpace(v))
	}
	return kept, unrecognized
}
