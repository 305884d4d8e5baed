package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a discrepancy.
type Kind string

const (
	KindAttributeFrequency     Kind = "attribute_frequency"
	KindWrongAttributeFormat   Kind = "wrong_attribute_format"
	KindWrongReferenceFormat   Kind = "wrong_reference_format"
	KindUnrecognizedIdentifier Kind = "unrecognized_identifier"
	KindIdentifierNotFound     Kind = "identifier_not_found"
	KindFieldMismatch          Kind = "field_mismatch"
	KindChecksumMismatch       Kind = "checksum_mismatch"
	KindWrongReference         Kind = "wrong_reference"
	KindNotASequencingPath     Kind = "not_a_sequencing_path"
	KindNotALaneletName        Kind = "not_a_lanelet_name"
	KindAccessControl          Kind = "access_control"
	KindInvalidReplica         Kind = "invalid_replica"
	KindFetchFailed            Kind = "fetch_failed"
	KindCheckSkipped           Kind = "check_skipped"
)

// Severity grades a discrepancy for reporting.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Check names. Every discrepancy records the check that produced it.
const (
	CheckAttributeCount     = "attribute_count"
	CheckAttributeFormat    = "attribute_format"
	CheckReferenceFormat    = "reference_format"
	CheckIdentifierFormat   = "identifier_format"
	CheckPathFormat         = "path_format"
	CheckHeaderIDsInStorage = "header_ids_in_storage"
	CheckStorageIDsInHeader = "storage_ids_in_header"
	CheckHeaderIDsInLIMS    = "header_ids_in_lims"
	CheckStorageIDsInLIMS   = "storage_ids_in_lims"
	CheckRunID              = "run_id_vs_path"
	CheckLaneID             = "lane_id_vs_path"
	CheckLaneletName        = "lanelet_name_vs_header"
	CheckHeaderReference    = "reference_vs_header"
	CheckDesiredReference   = "desired_reference"
	CheckChecksum           = "checksum_vs_metadata"
	CheckReplicas           = "replicas"
	CheckAccessControl      = "access_control"
	CheckFetch              = "fetch"
)

// Discrepancy is one finding about one file. It is a value: checks return
// it, they never raise it.
type Discrepancy struct {
	Kind      Kind            `json:"kind"`
	Check     string          `json:"check"`
	Path      string          `json:"path"`
	Severity  Severity        `json:"severity"`
	Attribute string          `json:"attribute,omitempty"`
	Expected  string          `json:"expected,omitempty"`
	Actual    string          `json:"actual,omitempty"`
	Entity    EntityType      `json:"entity,omitempty"`
	IDClass   IdentifierClass `json:"id_class,omitempty"`
	SourceA   Source          `json:"source_a,omitempty"`
	SourceB   Source          `json:"source_b,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// String renders a one-line human readable description.
func (d Discrepancy) String() string {
	s := fmt.Sprintf("%s [%s] %s", d.Severity, d.Check, d.Kind)
	if detail := d.Detail(); detail != "" {
		if d.Attribute == "" && d.Entity == "" && d.Expected == "" && d.Actual == "" && d.SourceA == "" {
			return s + ": " + detail
		}
		s += " " + detail
	}
	return s
}

// Detail renders the attribute, values, sources and reason of d.
func (d Discrepancy) Detail() string {
	var b strings.Builder
	sep := func() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
	}
	if d.Attribute != "" {
		fmt.Fprintf(&b, "attribute=%s", d.Attribute)
	}
	if d.Entity != "" {
		sep()
		fmt.Fprintf(&b, "entity=%s/%s", d.Entity, d.IDClass)
	}
	if d.Expected != "" || d.Actual != "" {
		sep()
		fmt.Fprintf(&b, "expected=%q actual=%q", d.Expected, d.Actual)
	}
	if d.SourceA != "" {
		sep()
		fmt.Fprintf(&b, "(%s vs %s)", d.SourceA, d.SourceB)
	}
	if d.Reason != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(d.Reason)
	}
	return b.String()
}

// AttributeFrequency reports a singleton attribute that occurs a wrong number of times.
func AttributeFrequency(path, attribute string, expected, actual int) Discrepancy {
	return Discrepancy{
		Kind:      KindAttributeFrequency,
		Check:     CheckAttributeCount,
		Path:      path,
		Severity:  SeverityError,
		Attribute: attribute,
		Expected:  strconv.Itoa(expected),
		Actual:    strconv.Itoa(actual),
		SourceA:   SourceStorage,
	}
}

// WrongAttributeFormat reports a value that fails its syntax rule.
func WrongAttributeFormat(path, attribute, value, reason string) Discrepancy {
	return Discrepancy{
		Kind:      KindWrongAttributeFormat,
		Check:     CheckAttributeFormat,
		Path:      path,
		Severity:  SeverityError,
		Attribute: attribute,
		Actual:    value,
		SourceA:   SourceStorage,
		Reason:    reason,
	}
}

// WrongReferenceFormat reports a reference that cannot be reduced to a genome name.
func WrongReferenceFormat(path, attribute, value, reason string) Discrepancy {
	return Discrepancy{
		Kind:      KindWrongReferenceFormat,
		Check:     CheckReferenceFormat,
		Path:      path,
		Severity:  SeverityError,
		Attribute: attribute,
		Actual:    value,
		SourceA:   SourceStorage,
		Reason:    reason,
	}
}

// UnrecognizedIdentifier reports an identifier value that fits no class.
func UnrecognizedIdentifier(path string, src Source, entity EntityType, attribute, value string, sev Severity) Discrepancy {
	return Discrepancy{
		Kind:      KindUnrecognizedIdentifier,
		Check:     CheckIdentifierFormat,
		Path:      path,
		Severity:  sev,
		Attribute: attribute,
		Actual:    value,
		Entity:    entity,
		IDClass:   ClassUnrecognized,
		SourceA:   src,
	}
}

// IdentifierNotFound reports an identifier asserted by source a that source b lacks.
func IdentifierNotFound(path, check string, entity EntityType, class IdentifierClass, value string, a, b Source) Discrepancy {
	return Discrepancy{
		Kind:     KindIdentifierNotFound,
		Check:    check,
		Path:     path,
		Severity: SeverityError,
		Actual:   value,
		Entity:   entity,
		IDClass:  class,
		SourceA:  a,
		SourceB:  b,
		Reason:   fmt.Sprintf("%s %s %q present in %s but not in %s", entity, class, value, a, b),
	}
}

// FieldMismatch reports two sources disagreeing on a scalar field.
func FieldMismatch(path, check, field, valueA, valueB string, a, b Source) Discrepancy {
	return Discrepancy{
		Kind:      KindFieldMismatch,
		Check:     check,
		Path:      path,
		Severity:  SeverityError,
		Attribute: field,
		Expected:  valueB,
		Actual:    valueA,
		SourceA:   a,
		SourceB:   b,
	}
}

// ChecksumMismatch reports a metadata checksum that differs from the computed one.
func ChecksumMismatch(path, check, computed, recorded string, computedBy Source) Discrepancy {
	return Discrepancy{
		Kind:      KindChecksumMismatch,
		Check:     check,
		Path:      path,
		Severity:  SeverityError,
		Attribute: "checksum",
		Expected:  computed,
		Actual:    recorded,
		SourceA:   SourceStorage,
		SourceB:   computedBy,
	}
}

// WrongReference reports a reference genome other than the desired one.
func WrongReference(path, desired, actual string) Discrepancy {
	return Discrepancy{
		Kind:      KindWrongReference,
		Check:     CheckDesiredReference,
		Path:      path,
		Severity:  SeverityError,
		Attribute: "reference",
		Expected:  desired,
		Actual:    actual,
		SourceA:   SourceStorage,
		SourceB:   SourceCaller,
	}
}

// NotASequencingPath reports a path outside the sequencing zone conventions.
func NotASequencingPath(path, reason string) Discrepancy {
	return Discrepancy{
		Kind:     KindNotASequencingPath,
		Check:    CheckPathFormat,
		Path:     path,
		Severity: SeverityError,
		Actual:   path,
		SourceA:  SourcePath,
		Reason:   reason,
	}
}

// NotALaneletName reports a file name that is not a lanelet name.
func NotALaneletName(path, name, reason string) Discrepancy {
	return Discrepancy{
		Kind:     KindNotALaneletName,
		Check:    CheckPathFormat,
		Path:     path,
		Severity: SeverityError,
		Actual:   name,
		SourceA:  SourcePath,
		Reason:   reason,
	}
}

// TooFewReplicas reports a data object stored with fewer valid copies than required.
func TooFewReplicas(path string, expected, actual int) Discrepancy {
	return Discrepancy{
		Kind:      KindAttributeFrequency,
		Check:     CheckReplicas,
		Path:      path,
		Severity:  SeverityWarning,
		Attribute: "replicas",
		Expected:  strconv.Itoa(expected),
		Actual:    strconv.Itoa(actual),
		SourceA:   SourceStorage,
	}
}

// InvalidReplica reports a stale replica.
func InvalidReplica(path string, r Replica) Discrepancy {
	return Discrepancy{
		Kind:     KindInvalidReplica,
		Check:    CheckReplicas,
		Path:     path,
		Severity: SeverityWarning,
		Actual:   strconv.Itoa(r.Number),
		SourceA:  SourceStorage,
		Reason:   fmt.Sprintf("replica %d on %s is not valid", r.Number, r.Resource),
	}
}

// InvalidAccessEntry reports an ACL entry with a zone or level outside the
// accepted sets.
func InvalidAccessEntry(path, entry, reason string) Discrepancy {
	return Discrepancy{
		Kind:      KindWrongAttributeFormat,
		Check:     CheckAccessControl,
		Path:      path,
		Severity:  SeverityWarning,
		Attribute: "acl",
		Actual:    entry,
		SourceA:   SourceStorage,
		Reason:    reason,
	}
}

// AccessProblem reports a permission problem on the stored object.
func AccessProblem(path, actual, reason string) Discrepancy {
	return Discrepancy{
		Kind:     KindAccessControl,
		Check:    CheckAccessControl,
		Path:     path,
		Severity: SeverityWarning,
		Actual:   actual,
		SourceA:  SourceStorage,
		Reason:   reason,
	}
}

// FetchFailed reports a collaborator that could not deliver a file's metadata.
func FetchFailed(path string, src Source, reason string) Discrepancy {
	return Discrepancy{
		Kind:     KindFetchFailed,
		Check:    CheckFetch,
		Path:     path,
		Severity: SeverityError,
		SourceA:  src,
		Reason:   reason,
	}
}

// CheckSkipped records that a check could not run because its inputs were
// missing or ambiguous.
func CheckSkipped(path, check, reason string) Discrepancy {
	return Discrepancy{
		Kind:     KindCheckSkipped,
		Check:    check,
		Path:     path,
		Severity: SeverityWarning,
		Reason:   reason,
	}
}

// HasErrors reports whether any discrepancy has error severity.
func HasErrors(ds []Discrepancy) bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
