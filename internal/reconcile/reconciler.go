package reconcile

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/starford/metacheck/internal/lanelet"
	"github.com/starford/metacheck/internal/models"
	"github.com/starford/metacheck/internal/validator"
)

// Input is everything known about one file when reconciliation starts.
// Nil records mean the source was not consulted.
type Input struct {
	Path    string
	Header  *models.SourceRecord
	Storage models.SourceRecord
	LIMS    *models.SourceRecord
	// Decoded is nil when the path could not be decoded.
	Decoded *lanelet.Decoded

	// DesiredReference, when set, must be contained in the storage reference.
	DesiredReference string
	// Checksum, when set, must equal the storage checksum.
	Checksum       string
	ChecksumSource models.Source
	// ChecksumFetched marks Checksum as asked of its source; an empty
	// answer then makes the check impossible to run.
	ChecksumFetched bool

	Replicas        []models.Replica
	ReplicasFetched bool
	ACL             []models.AccessControl
	ACLFetched      bool
}

// Reconciler runs the cross-source checks. It is immutable and safe for
// concurrent use.
type Reconciler struct {
	policy Policy
	marker string
	group  *regexp.Regexp
}

// NewReconciler builds a Reconciler. marker is the reference genome file
// extension used to reduce reference paths.
func NewReconciler(p Policy, marker string) (*Reconciler, error) {
	pattern := p.AccessGroupPattern
	if pattern == "" {
		pattern = DefaultAccessGroupPattern
	}
	group, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("reconcile: access group pattern: %w", err)
	}
	if p.Containment == "" {
		p.Containment = ContainHeaderInStorage
	}
	return &Reconciler{policy: p, marker: marker, group: group}, nil
}

// Reconcile runs every check against in and returns the combined findings
// in check order. No check stops another from running.
func (r *Reconciler) Reconcile(in Input) []models.Discrepancy {
	var out []models.Discrepancy
	out = append(out, r.identities(in)...)
	out = append(out, r.runID(in)...)
	out = append(out, r.laneID(in)...)
	out = append(out, r.laneletName(in)...)
	out = append(out, r.headerReference(in)...)
	out = append(out, r.desiredReference(in)...)
	out = append(out, r.checksum(in)...)
	out = append(out, r.replicas(in)...)
	out = append(out, r.accessControl(in)...)
	return out
}

// contained reports every identifier of a missing from b, per entity type
// and identifier class.
func contained(path, check string, a, b models.SourceRecord) []models.Discrepancy {
	var out []models.Discrepancy
	for _, entity := range models.EntityTypes {
		want, have := a.Entities(entity), b.Entities(entity)
		for _, class := range models.IdentifierClasses {
			for _, v := range want.ByClass(class) {
				if !have.Contains(class, v) {
					out = append(out, models.IdentifierNotFound(path, check, entity, class, v, a.Source, b.Source))
				}
			}
		}
	}
	return out
}

func (r *Reconciler) identities(in Input) []models.Discrepancy {
	var out []models.Discrepancy
	if in.Header == nil {
		out = append(out, models.CheckSkipped(in.Path, models.CheckHeaderIDsInStorage, "header not read"))
	} else {
		out = append(out, contained(in.Path, models.CheckHeaderIDsInStorage, *in.Header, in.Storage)...)
		if r.policy.Containment == ContainSymmetric {
			out = append(out, contained(in.Path, models.CheckStorageIDsInHeader, in.Storage, *in.Header)...)
		}
	}

	switch {
	case in.LIMS == nil:
		out = append(out,
			models.CheckSkipped(in.Path, models.CheckHeaderIDsInLIMS, "laboratory database not consulted"),
			models.CheckSkipped(in.Path, models.CheckStorageIDsInLIMS, "laboratory database not consulted"))
	default:
		if in.Header == nil {
			out = append(out, models.CheckSkipped(in.Path, models.CheckHeaderIDsInLIMS, "header not read"))
		} else {
			out = append(out, contained(in.Path, models.CheckHeaderIDsInLIMS, *in.Header, *in.LIMS)...)
		}
		out = append(out, contained(in.Path, models.CheckStorageIDsInLIMS, in.Storage, *in.LIMS)...)
	}
	return out
}

// single returns the only value of vs or a skip finding explaining why the
// check cannot run.
func single(path, check, field string, src models.Source, vs models.Values) (string, *models.Discrepancy) {
	v, ok := vs.Single()
	if ok {
		return v, nil
	}
	d := models.CheckSkipped(path, check, fmt.Sprintf("%s reports %d %s values", src, len(vs), field))
	return "", &d
}

func (r *Reconciler) runID(in Input) []models.Discrepancy {
	if in.Decoded == nil {
		return []models.Discrepancy{models.CheckSkipped(in.Path, models.CheckRunID, "path could not be decoded")}
	}
	v, skip := single(in.Path, models.CheckRunID, "run_id", models.SourceStorage, in.Storage.RunIDs)
	if skip != nil {
		return []models.Discrepancy{*skip}
	}
	if v != in.Decoded.RunID {
		return []models.Discrepancy{models.FieldMismatch(in.Path, models.CheckRunID, "run_id", v, in.Decoded.RunID, models.SourceStorage, models.SourcePath)}
	}
	return nil
}

func (r *Reconciler) laneID(in Input) []models.Discrepancy {
	switch {
	case in.Decoded == nil:
		return []models.Discrepancy{models.CheckSkipped(in.Path, models.CheckLaneID, "path could not be decoded")}
	case in.Decoded.LaneID == "":
		return []models.Discrepancy{models.CheckSkipped(in.Path, models.CheckLaneID, "file name carries no lane")}
	}
	v, skip := single(in.Path, models.CheckLaneID, "lane_id", models.SourceStorage, in.Storage.LaneIDs)
	if skip != nil {
		return []models.Discrepancy{*skip}
	}
	if v != in.Decoded.LaneID {
		return []models.Discrepancy{models.FieldMismatch(in.Path, models.CheckLaneID, "lane_id", v, in.Decoded.LaneID, models.SourceStorage, models.SourcePath)}
	}
	return nil
}

func (r *Reconciler) laneletName(in Input) []models.Discrepancy {
	switch {
	case in.Header == nil:
		return []models.Discrepancy{models.CheckSkipped(in.Path, models.CheckLaneletName, "header not read")}
	case in.Decoded == nil:
		return []models.Discrepancy{models.CheckSkipped(in.Path, models.CheckLaneletName, "path could not be decoded")}
	}
	v, skip := single(in.Path, models.CheckLaneletName, "lanelet", models.SourceHeader, in.Header.Lanelets)
	if skip != nil {
		return []models.Discrepancy{*skip}
	}
	if v != in.Decoded.BareName {
		return []models.Discrepancy{models.FieldMismatch(in.Path, models.CheckLaneletName, "lanelet_name", v, in.Decoded.BareName, models.SourceHeader, models.SourcePath)}
	}
	return nil
}

// reduce returns the genome name of the only reference in vs.
func (r *Reconciler) reduce(path, check string, src models.Source, vs models.Values) (string, *models.Discrepancy) {
	v, skip := single(path, check, "reference", src, vs)
	if skip != nil {
		return "", skip
	}
	name, err := validator.ReduceReference(v, r.marker)
	if err != nil {
		d := models.CheckSkipped(path, check, fmt.Sprintf("%s reference: %v", src, err))
		return "", &d
	}
	return name, nil
}

func (r *Reconciler) headerReference(in Input) []models.Discrepancy {
	if in.Header == nil {
		return []models.Discrepancy{models.CheckSkipped(in.Path, models.CheckHeaderReference, "header not read")}
	}
	hdr, skip := r.reduce(in.Path, models.CheckHeaderReference, models.SourceHeader, in.Header.References)
	if skip != nil {
		return []models.Discrepancy{*skip}
	}
	st, skip := r.reduce(in.Path, models.CheckHeaderReference, models.SourceStorage, in.Storage.References)
	if skip != nil {
		return []models.Discrepancy{*skip}
	}
	if hdr != st {
		return []models.Discrepancy{models.FieldMismatch(in.Path, models.CheckHeaderReference, "reference", st, hdr, models.SourceStorage, models.SourceHeader)}
	}
	return nil
}

func (r *Reconciler) desiredReference(in Input) []models.Discrepancy {
	if in.DesiredReference == "" {
		return nil
	}
	name, skip := r.reduce(in.Path, models.CheckDesiredReference, models.SourceStorage, in.Storage.References)
	if skip != nil {
		return []models.Discrepancy{*skip}
	}
	if !strings.Contains(name, in.DesiredReference) {
		return []models.Discrepancy{models.WrongReference(in.Path, in.DesiredReference, name)}
	}
	return nil
}

func (r *Reconciler) checksum(in Input) []models.Discrepancy {
	if in.Checksum == "" {
		if in.ChecksumFetched {
			return []models.Discrepancy{models.CheckSkipped(in.Path, models.CheckChecksum, "storage reports no checksum")}
		}
		return nil
	}
	v, skip := single(in.Path, models.CheckChecksum, "checksum", models.SourceStorage, in.Storage.Checksums)
	if skip != nil {
		return []models.Discrepancy{*skip}
	}
	if v != in.Checksum {
		src := in.ChecksumSource
		if src == "" {
			src = models.SourceCaller
		}
		return []models.Discrepancy{models.ChecksumMismatch(in.Path, models.CheckChecksum, in.Checksum, v, src)}
	}
	return nil
}

func (r *Reconciler) replicas(in Input) []models.Discrepancy {
	if !in.ReplicasFetched {
		return nil
	}
	var out []models.Discrepancy
	var valid []models.Replica
	for _, rep := range in.Replicas {
		if rep.Valid {
			valid = append(valid, rep)
		} else {
			out = append(out, models.InvalidReplica(in.Path, rep))
		}
	}
	if len(valid) < r.policy.MinReplicas {
		out = append(out, models.TooFewReplicas(in.Path, r.policy.MinReplicas, len(valid)))
	}
	if len(valid) == 0 {
		return out
	}
	recorded, skip := single(in.Path, models.CheckReplicas, "checksum", models.SourceStorage, in.Storage.Checksums)
	if skip != nil {
		return append(out, *skip)
	}
	for _, rep := range valid {
		if rep.Checksum != "" && rep.Checksum != recorded {
			out = append(out, models.ChecksumMismatch(in.Path, models.CheckReplicas, rep.Checksum, recorded, models.SourceStorage))
		}
	}
	return out
}

func (r *Reconciler) accessControl(in Input) []models.Discrepancy {
	if !in.ACLFetched {
		return nil
	}
	var out []models.Discrepancy
	grouped := false
	for _, e := range in.ACL {
		if len(r.policy.ValidZones) > 0 && !slices.Contains(r.policy.ValidZones, e.Zone) {
			out = append(out, models.InvalidAccessEntry(in.Path, e.String(), fmt.Sprintf("zone %q is not accepted", e.Zone)))
		}
		if len(r.policy.ValidPermissions) > 0 && !slices.Contains(r.policy.ValidPermissions, e.Level) {
			out = append(out, models.InvalidAccessEntry(in.Path, e.String(), fmt.Sprintf("permission %q is not accepted", e.Level)))
		}
		readable := e.Level == models.AccessRead || e.Level == models.AccessOwn
		if readable && r.group.MatchString(e.Owner) {
			grouped = true
		}
		if readable && e.Owner == "public" {
			out = append(out, models.AccessProblem(in.Path, e.String(), "readable by public"))
		}
	}
	if !grouped {
		out = append(out, models.AccessProblem(in.Path, "", fmt.Sprintf("no access group matching %s can read the file", r.group)))
	}
	return out
}
