// Package annotation groups raw storage annotations by attribute name.
package annotation

import (
	"slices"

	"github.com/starford/metacheck/internal/models"
)

// Aggregated maps attribute names to their values in source order. Nothing
// is dropped or deduplicated; repeated values are left for the validator.
type Aggregated struct {
	values map[string][]string
	order  []string
}

// Aggregate groups raws by attribute, keeping the relative order of values.
func Aggregate(raws []models.RawAnnotation) Aggregated {
	a := Aggregated{values: make(map[string][]string)}
	for _, r := range raws {
		if _, ok := a.values[r.Attribute]; !ok {
			a.order = append(a.order, r.Attribute)
		}
		a.values[r.Attribute] = append(a.values[r.Attribute], r.Value)
	}
	return a
}

// FromMap builds an Aggregated from an already grouped mapping. Attributes
// are ordered by name since a map carries no order.
func FromMap(m map[string][]string) Aggregated {
	a := Aggregated{values: make(map[string][]string, len(m))}
	for k, v := range m {
		a.values[k] = slices.Clone(v)
		a.order = append(a.order, k)
	}
	slices.Sort(a.order)
	return a
}

// Values returns a copy of the values for attribute. A missing attribute
// yields an empty slice.
func (a Aggregated) Values(attribute string) []string {
	return slices.Clone(a.values[attribute])
}

// Count returns how many times attribute occurs.
func (a Aggregated) Count(attribute string) int {
	return len(a.values[attribute])
}

// Attributes returns attribute names in order of first appearance.
func (a Aggregated) Attributes() []string {
	return slices.Clone(a.order)
}

// Len returns the number of distinct attributes.
func (a Aggregated) Len() int {
	return len(a.order)
}

// Flatten returns the annotations back as raw pairs, grouped by attribute.
func (a Aggregated) Flatten() []models.RawAnnotation {
	var out []models.RawAnnotation
	for _, attr := range a.order {
		for _, v := range a.values[attr] {
			out = append(out, models.RawAnnotation{Attribute: attr, Value: v})
		}
	}
	return out
}
