package reconcile

import (
	"errors"

	"github.com/starford/metacheck/internal/annotation"
	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/header"
	"github.com/starford/metacheck/internal/identifier"
	"github.com/starford/metacheck/internal/lanelet"
	"github.com/starford/metacheck/internal/models"
	"github.com/starford/metacheck/internal/validator"
)

// Rules bundles every rule set the engine is built from.
type Rules struct {
	Identifiers identifier.Rules
	Validation  validator.Rules
	Conventions lanelet.Conventions
	Policy      Policy
}

// DefaultRules returns the sequencing zone defaults.
func DefaultRules() Rules {
	return Rules{
		Validation: validator.DefaultRules(),
		Policy:     DefaultPolicy(),
	}
}

// FileInput is the raw collaborator output fetched for one file.
type FileInput struct {
	Path        string
	Annotations []models.RawAnnotation
	// Header is nil when the header was not read.
	Header *header.Metadata
	// LIMS holds the entities the laboratory database returned. It is only
	// consulted when LIMSFetched is set.
	LIMS        []models.Entity
	LIMSFetched bool

	DesiredReference string
	Checksum         string
	ChecksumSource   models.Source
	ChecksumFetched  bool

	Replicas        []models.Replica
	ReplicasFetched bool
	ACL             []models.AccessControl
	ACLFetched      bool
}

// Engine checks one file at a time. It holds only immutable rules and is
// safe for concurrent use.
type Engine struct {
	validator  *validator.Validator
	decoder    *lanelet.Decoder
	factory    Factory
	reconciler *Reconciler
}

// NewEngine compiles rules into an Engine.
func NewEngine(r Rules) (*Engine, error) {
	classifier, err := identifier.New(r.Identifiers)
	if err != nil {
		return nil, err
	}
	decoder, err := lanelet.NewDecoder(r.Conventions)
	if err != nil {
		return nil, err
	}
	reconciler, err := NewReconciler(r.Policy, r.Validation.ReferenceMarker)
	if err != nil {
		return nil, err
	}
	return &Engine{
		validator: validator.New(r.Validation),
		decoder:   decoder,
		factory: Factory{
			Classifier:           classifier,
			Attributes:           r.Validation.Attributes,
			UnrecognizedSeverity: r.Policy.UnrecognizedSeverity,
		},
		reconciler: reconciler,
	}, nil
}

// Classifier returns the classifier the engine uses.
func (e *Engine) Classifier() *identifier.Classifier {
	return e.factory.Classifier
}

// Decoder returns the path decoder the engine uses.
func (e *Engine) Decoder() *lanelet.Decoder {
	return e.decoder
}

// Attributes returns the storage attribute names the engine reads.
func (e *Engine) Attributes() validator.Attributes {
	return e.factory.Attributes
}

// Check returns every finding for one file, in check order.
func (e *Engine) Check(in FileInput) []models.Discrepancy {
	agg := annotation.Aggregate(in.Annotations)
	out := e.validator.Validate(agg, in.Path)

	storage, found := e.factory.StorageRecord(in.Path, agg)
	out = append(out, found...)

	ri := Input{
		Path:             in.Path,
		Storage:          storage,
		DesiredReference: in.DesiredReference,
		Checksum:         in.Checksum,
		ChecksumSource:   in.ChecksumSource,
		ChecksumFetched:  in.ChecksumFetched,
		Replicas:         in.Replicas,
		ReplicasFetched:  in.ReplicasFetched,
		ACL:              in.ACL,
		ACLFetched:       in.ACLFetched,
	}
	if in.Header != nil {
		hdr, found := e.factory.HeaderRecord(in.Path, in.Header)
		out = append(out, found...)
		ri.Header = &hdr
	}
	if in.LIMSFetched {
		rec := LIMSRecord(in.Path, in.LIMS)
		ri.LIMS = &rec
	}

	decoded, err := e.decoder.Decode(in.Path)
	if err != nil {
		out = append(out, decodeFinding(in.Path, err))
	} else {
		ri.Decoded = &decoded
	}

	return append(out, e.reconciler.Reconcile(ri)...)
}

func decodeFinding(path string, err error) models.Discrepancy {
	var de *lanelet.DecodeError
	switch {
	case errors.Is(err, apperr.ErrNotALaneletName):
		name := lanelet.BareName(path)
		if errors.As(err, &de) && de.Name != "" {
			name = de.Name
		}
		return models.NotALaneletName(path, name, err.Error())
	default:
		return models.NotASequencingPath(path, err.Error())
	}
}

// Identifiers returns, per entity type, the union of the identifiers the
// storage annotations and the header assert. It is the query sent to the
// laboratory database.
func (e *Engine) Identifiers(path string, raws []models.RawAnnotation, md *header.Metadata) map[models.EntityType]models.IdentifierSet {
	storage, _ := e.factory.StorageRecord(path, annotation.Aggregate(raws))
	recs := []models.SourceRecord{storage}
	if md != nil {
		hdr, _ := e.factory.HeaderRecord(path, md)
		recs = append(recs, hdr)
	}
	out := make(map[models.EntityType]models.IdentifierSet, len(models.EntityTypes))
	for _, entity := range models.EntityTypes {
		var names, accs, ids []string
		for _, r := range recs {
			set := r.Entities(entity)
			names = append(names, set.Names...)
			accs = append(accs, set.AccessionNumbers...)
			ids = append(ids, set.InternalIDs...)
		}
		out[entity] = models.IdentifierSet{Names: dedupe(names), AccessionNumbers: dedupe(accs), InternalIDs: dedupe(ids)}
	}
	return out
}
