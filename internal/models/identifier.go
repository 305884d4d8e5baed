package models

import "slices"

// IdentifierClass is the namespace a raw identifier string belongs to.
type IdentifierClass string

const (
	ClassName            IdentifierClass = "name"
	ClassAccessionNumber IdentifierClass = "accession_number"
	ClassInternalID      IdentifierClass = "internal_id"
	ClassUnrecognized    IdentifierClass = "unrecognized"
)

// IdentifierClasses lists the recognized classes in check order.
var IdentifierClasses = []IdentifierClass{ClassName, ClassAccessionNumber, ClassInternalID}

// EntityType is a biological entity concept that carries identifiers.
type EntityType string

const (
	EntitySample  EntityType = "sample"
	EntityLibrary EntityType = "library"
	EntityStudy   EntityType = "study"
)

// EntityTypes lists the entity types in check order.
var EntityTypes = []EntityType{EntitySample, EntityLibrary, EntityStudy}

// IdentifierSet holds the identifiers one source reports for one entity
// type, split by identifier class.
type IdentifierSet struct {
	Names            []string `json:"name,omitempty"`
	AccessionNumbers []string `json:"accession_number,omitempty"`
	InternalIDs      []string `json:"internal_id,omitempty"`
}

// NewIdentifierSet copies the given lists into a new set.
func NewIdentifierSet(names, accessions, internalIDs []string) IdentifierSet {
	return IdentifierSet{
		Names:            slices.Clone(names),
		AccessionNumbers: slices.Clone(accessions),
		InternalIDs:      slices.Clone(internalIDs),
	}
}

// ByClass returns the values recorded for the given class. Unrecognized
// values are never part of a set, so ClassUnrecognized yields nil.
func (s IdentifierSet) ByClass(c IdentifierClass) []string {
	switch c {
	case ClassName:
		return s.Names
	case ClassAccessionNumber:
		return s.AccessionNumbers
	case ClassInternalID:
		return s.InternalIDs
	}
	return nil
}

// Contains reports whether value is listed under class c.
func (s IdentifierSet) Contains(c IdentifierClass, value string) bool {
	return slices.Contains(s.ByClass(c), value)
}

// IsEmpty reports whether the set holds no identifiers at all.
func (s IdentifierSet) IsEmpty() bool {
	return len(s.Names) == 0 && len(s.AccessionNumbers) == 0 && len(s.InternalIDs) == 0
}

// Len returns the total number of identifiers in the set.
func (s IdentifierSet) Len() int {
	return len(s.Names) + len(s.AccessionNumbers) + len(s.InternalIDs)
}
