// Package storage reads sequencing data objects and their catalog metadata
// from the archive.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/metacheck/internal/models"
)

// SidecarSuffix is appended to a data object's name to form the name of the
// YAML document holding its catalog metadata.
const SidecarSuffix = ".meta.yaml"

// Query selects data objects by their annotations.
type Query struct {
	// Collection restricts the search to objects below it. Empty means the
	// whole archive.
	Collection string `json:"collection,omitempty"`
	// Match lists attribute/value pairs an object must all carry.
	Match []models.RawAnnotation `json:"match,omitempty"`
}

// Provider is the interface to the archive. Paths are absolute archive
// paths such as /seq/10001/10001_1#30.bam.
type Provider interface {
	// List returns the data object paths below collection, sorted.
	List(ctx context.Context, collection string) ([]string, error)
	// Find returns the data objects matching q, sorted.
	Find(ctx context.Context, q Query) ([]string, error)
	// Annotations returns the catalog annotations of path in stored order.
	Annotations(ctx context.Context, path string) ([]models.RawAnnotation, error)
	// Checksum returns the checksum the archive computes for the content,
	// or "" when it has none.
	Checksum(ctx context.Context, path string) (string, error)
	// Replicas returns the stored copies of path.
	Replicas(ctx context.Context, path string) ([]models.Replica, error)
	// ACL returns the access control list of path.
	ACL(ctx context.Context, path string) ([]models.AccessControl, error)
	// Open streams the content of path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Sidecar is the catalog metadata stored next to a data object.
type Sidecar struct {
	Annotations []models.RawAnnotation `yaml:"annotations"`
	Replicas    []models.Replica       `yaml:"replicas,omitempty"`
	ACL         []models.AccessControl `yaml:"acl,omitempty"`
}

// ParseSidecar decodes a sidecar document.
func ParseSidecar(data []byte) (*Sidecar, error) {
	var s Sidecar
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("storage: parse sidecar: %w", err)
	}
	return &s, nil
}

// Marshal encodes the sidecar as YAML.
func (s *Sidecar) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Matches reports whether the sidecar carries every pair in q.Match.
func (s *Sidecar) Matches(q Query) bool {
	for _, want := range q.Match {
		found := false
		for _, a := range s.Annotations {
			if a.Attribute == want.Attribute && a.Value == want.Value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// IsSidecar reports whether name is a sidecar rather than a data object.
func IsSidecar(name string) bool {
	return strings.HasSuffix(name, SidecarSuffix)
}

// DataPath returns the data object a sidecar path belongs to.
func DataPath(sidecar string) string {
	return strings.TrimSuffix(sidecar, SidecarSuffix)
}
