// Package validator checks arity and syntax of the singleton annotations a
// sequencing data object must carry.
package validator

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Attributes maps field concepts to the attribute names the storage system
// uses for them.
type Attributes struct {
	Checksum       string `yaml:"checksum" toml:"checksum"`
	Reference      string `yaml:"reference" toml:"reference"`
	RunID          string `yaml:"run_id" toml:"run_id"`
	LaneID         string `yaml:"lane_id" toml:"lane_id"`
	QualityControl string `yaml:"quality_control_flag" toml:"quality_control_flag"`
	Target         string `yaml:"target_flag" toml:"target_flag"`

	SampleName      string `yaml:"sample" toml:"sample"`
	SampleID        string `yaml:"sample_id" toml:"sample_id"`
	SampleAccession string `yaml:"sample_accession_number" toml:"sample_accession_number"`
	LibraryName     string `yaml:"library" toml:"library"`
	LibraryID       string `yaml:"library_id" toml:"library_id"`
	StudyName       string `yaml:"study" toml:"study"`
	StudyID         string `yaml:"study_id" toml:"study_id"`
	StudyAccession  string `yaml:"study_accession_number" toml:"study_accession_number"`
}

// DefaultAttributes returns the attribute names used in the sequencing zone.
func DefaultAttributes() Attributes {
	return Attributes{
		Checksum:        "md5",
		Reference:       "reference",
		RunID:           "id_run",
		LaneID:          "lane",
		QualityControl:  "manual_qc",
		Target:          "target",
		SampleName:      "sample",
		SampleID:        "sample_id",
		SampleAccession: "sample_accession_number",
		LibraryName:     "library",
		LibraryID:       "library_id",
		StudyName:       "study",
		StudyID:         "study_id",
		StudyAccession:  "study_accession_number",
	}
}

// Singletons returns the attributes that must occur exactly once, in check order.
func (a Attributes) Singletons() []string {
	return []string{a.Checksum, a.Reference, a.RunID, a.LaneID, a.QualityControl, a.Target}
}

// Validate validates the attribute names.
func (a *Attributes) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Checksum, validation.Required),
		validation.Field(&a.Reference, validation.Required),
		validation.Field(&a.RunID, validation.Required),
		validation.Field(&a.LaneID, validation.Required),
		validation.Field(&a.QualityControl, validation.Required),
		validation.Field(&a.Target, validation.Required),
		validation.Field(&a.SampleName, validation.Required),
		validation.Field(&a.SampleID, validation.Required),
		validation.Field(&a.SampleAccession, validation.Required),
		validation.Field(&a.LibraryName, validation.Required),
		validation.Field(&a.LibraryID, validation.Required),
		validation.Field(&a.StudyName, validation.Required),
		validation.Field(&a.StudyID, validation.Required),
		validation.Field(&a.StudyAccession, validation.Required),
	)
}

// Rules configures the validator.
type Rules struct {
	Attributes           Attributes `yaml:"attributes" toml:"attributes"`
	QualityControlTokens []string   `yaml:"quality_control_tokens" toml:"quality_control_tokens"`
	TargetTokens         []string   `yaml:"target_tokens" toml:"target_tokens"`
	ReferenceMarker      string     `yaml:"reference_marker" toml:"reference_marker"`
}

// DefaultRules returns the conventions of the sequencing zone.
func DefaultRules() Rules {
	return Rules{
		Attributes:           DefaultAttributes(),
		QualityControlTokens: []string{"0", "1"},
		TargetTokens:         []string{"0", "1", "library"},
		ReferenceMarker:      ".fa",
	}
}

// Validate validates the rules.
func (r *Rules) Validate() error {
	if err := r.Attributes.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.QualityControlTokens, validation.Required),
		validation.Field(&r.TargetTokens, validation.Required),
		validation.Field(&r.ReferenceMarker, validation.Required),
	)
}
