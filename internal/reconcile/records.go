// Package reconcile compares the metadata independent sources hold about a
// sequencing file and reports where they disagree.
package reconcile

import (
	"github.com/starford/metacheck/internal/annotation"
	"github.com/starford/metacheck/internal/header"
	"github.com/starford/metacheck/internal/identifier"
	"github.com/starford/metacheck/internal/models"
	"github.com/starford/metacheck/internal/validator"
)

// Factory builds source records from raw collaborator output. Records are
// complete when returned; nothing mutates them afterwards.
type Factory struct {
	Classifier *identifier.Classifier
	Attributes validator.Attributes
	// UnrecognizedSeverity grades identifiers that fit no class.
	UnrecognizedSeverity models.Severity
}

// StorageRecord builds the storage record of path from its annotations.
// Sample and study values are classed by the attribute they are stored
// under. Library names and ids are pooled and reclassified, since pipelines
// write library ids under the name attribute.
func (f Factory) StorageRecord(path string, agg annotation.Aggregated) (models.SourceRecord, []models.Discrepancy) {
	a := f.Attributes
	var found []models.Discrepancy

	keyed := func(entity models.EntityType, nameAttr, accAttr, idAttr string) models.IdentifierSet {
		var lists [3][]string
		for i, attr := range []string{nameAttr, accAttr, idAttr} {
			kept, bad := f.Classifier.Filter(agg.Values(attr))
			lists[i] = dedupe(kept)
			for _, v := range bad {
				found = append(found, models.UnrecognizedIdentifier(path, models.SourceStorage, entity, attr, v, f.severity()))
			}
		}
		return models.IdentifierSet{Names: lists[0], AccessionNumbers: lists[1], InternalIDs: lists[2]}
	}

	rec := models.SourceRecord{
		Source:  models.SourceStorage,
		Path:    path,
		Samples: keyed(models.EntitySample, a.SampleName, a.SampleAccession, a.SampleID),
		Studies: keyed(models.EntityStudy, a.StudyName, a.StudyAccession, a.StudyID),

		Checksums:   values(agg, a.Checksum),
		References:  values(agg, a.Reference),
		RunIDs:      values(agg, a.RunID),
		LaneIDs:     values(agg, a.LaneID),
		QCFlags:     values(agg, a.QualityControl),
		TargetFlags: values(agg, a.Target),
	}

	for _, attr := range []string{a.LibraryName, a.LibraryID} {
		for _, v := range agg.Values(attr) {
			if f.Classifier.Classify(v) == models.ClassUnrecognized {
				found = append(found, models.UnrecognizedIdentifier(path, models.SourceStorage, models.EntityLibrary, attr, v, f.severity()))
			}
		}
	}
	pooled := append(agg.Values(a.LibraryName), agg.Values(a.LibraryID)...)
	rec.Libraries, _ = f.Classifier.Separate(pooled)

	return rec, found
}

// HeaderRecord builds the header record of path from parsed header metadata.
// Every identifier is classified by its shape.
func (f Factory) HeaderRecord(path string, md *header.Metadata) (models.SourceRecord, []models.Discrepancy) {
	var found []models.Discrepancy
	separate := func(entity models.EntityType, tag string, vs []string) models.IdentifierSet {
		set, bad := f.Classifier.Separate(vs)
		for _, v := range bad {
			found = append(found, models.UnrecognizedIdentifier(path, models.SourceHeader, entity, tag, v, f.severity()))
		}
		return set
	}
	rec := models.SourceRecord{
		Source:     models.SourceHeader,
		Path:       path,
		Samples:    separate(models.EntitySample, "SM", md.Samples),
		Libraries:  separate(models.EntityLibrary, "LB", md.Libraries),
		Studies:    separate(models.EntityStudy, "DS", md.Studies),
		References: models.Values(append([]string(nil), md.References...)),
		Lanelets:   models.Values(append([]string(nil), md.Lanelets...)),
	}
	return rec, found
}

// LIMSRecord builds the laboratory database record of path from the
// entities a lookup returned.
func LIMSRecord(path string, entities []models.Entity) models.SourceRecord {
	var lists [3][3][]string
	for _, e := range entities {
		var i int
		switch e.Type {
		case models.EntitySample:
			i = 0
		case models.EntityLibrary:
			i = 1
		case models.EntityStudy:
			i = 2
		default:
			continue
		}
		if e.Name != "" {
			lists[i][0] = append(lists[i][0], e.Name)
		}
		if e.AccessionNumber != "" {
			lists[i][1] = append(lists[i][1], e.AccessionNumber)
		}
		if e.InternalID != "" {
			lists[i][2] = append(lists[i][2], e.InternalID)
		}
	}
	set := func(l [3][]string) models.IdentifierSet {
		return models.IdentifierSet{Names: dedupe(l[0]), AccessionNumbers: dedupe(l[1]), InternalIDs: dedupe(l[2])}
	}
	return models.SourceRecord{
		Source:    models.SourceLIMS,
		Path:      path,
		Samples:   set(lists[0]),
		Libraries: set(lists[1]),
		Studies:   set(lists[2]),
	}
}

func (f Factory) severity() models.Severity {
	if f.UnrecognizedSeverity == "" {
		return models.SeverityWarning
	}
	return f.UnrecognizedSeverity
}

func values(agg annotation.Aggregated, attr string) models.Values {
	vs := agg.Values(attr)
	if len(vs) == 0 {
		return nil
	}
	return models.Values(vs)
}

func dedupe(vs []string) []string {
	if len(vs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(vs))
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
