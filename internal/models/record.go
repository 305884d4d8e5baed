package models

import "slices"

// Values is the ordered list of values one source reports for a scalar
// field. More than one value is an arity violation the checks must see, so
// records never collapse it.
type Values []string

// Single returns the only value, or false when there are zero or several.
func (v Values) Single() (string, bool) {
	if len(v) != 1 {
		return "", false
	}
	return v[0], true
}

// SourceRecord is the metadata one source holds about one file. Records are
// built once by a factory and treated as read-only afterwards.
type SourceRecord struct {
	Source Source `json:"source"`
	Path   string `json:"path"`

	Samples   IdentifierSet `json:"samples"`
	Libraries IdentifierSet `json:"libraries"`
	Studies   IdentifierSet `json:"studies"`

	Checksums   Values `json:"checksums,omitempty"`
	References  Values `json:"references,omitempty"`
	RunIDs      Values `json:"run_ids,omitempty"`
	LaneIDs     Values `json:"lane_ids,omitempty"`
	QCFlags     Values `json:"qc_flags,omitempty"`
	TargetFlags Values `json:"target_flags,omitempty"`
	Lanelets    Values `json:"lanelets,omitempty"`
}

// Entities returns the identifier set for the given entity type.
func (r *SourceRecord) Entities(t EntityType) IdentifierSet {
	switch t {
	case EntitySample:
		return r.Samples
	case EntityLibrary:
		return r.Libraries
	case EntityStudy:
		return r.Studies
	}
	return IdentifierSet{}
}

// Clone returns a deep copy of the record.
func (r SourceRecord) Clone() SourceRecord {
	out := r
	out.Samples = NewIdentifierSet(r.Samples.Names, r.Samples.AccessionNumbers, r.Samples.InternalIDs)
	out.Libraries = NewIdentifierSet(r.Libraries.Names, r.Libraries.AccessionNumbers, r.Libraries.InternalIDs)
	out.Studies = NewIdentifierSet(r.Studies.Names, r.Studies.AccessionNumbers, r.Studies.InternalIDs)
	out.Checksums = slices.Clone(r.Checksums)
	out.References = slices.Clone(r.References)
	out.RunIDs = slices.Clone(r.RunIDs)
	out.LaneIDs = slices.Clone(r.LaneIDs)
	out.QCFlags = slices.Clone(r.QCFlags)
	out.TargetFlags = slices.Clone(r.TargetFlags)
	out.Lanelets = slices.Clone(r.Lanelets)
	return out
}
