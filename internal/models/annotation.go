// Package models defines the domain types shared by the metadata checks.
package models

// RawAnnotation is one attribute/value pair attached to a data object in the
// storage system. Attribute names are free-form and may repeat.
type RawAnnotation struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	Value     string `json:"value" yaml:"value"`
	Units     string `json:"units,omitempty" yaml:"units,omitempty"`
}

// Source names one of the independent places metadata is read from.
type Source string

const (
	SourceHeader  Source = "header"
	SourceStorage Source = "storage"
	SourceLIMS    Source = "lims"
	SourcePath    Source = "path"
	SourceCaller  Source = "caller"
)
