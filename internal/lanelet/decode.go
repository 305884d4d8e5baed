// Package lanelet decodes sequencing-zone paths and lanelet file names.
package lanelet

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/metacheck/internal/apperr"
)

const (
	// DefaultPathPattern accepts /seq/<run>/<file>.
	DefaultPathPattern = `^/seq/\d+/[^/]+$`
	// DefaultNamePattern accepts <run>[_<lane>][#<tag>].
	DefaultNamePattern = `^(?P<run_id>\d+)(?:_(?P<lane_id>\d+))?(?:#(?P<tag_id>\d+))?$`
)

// Conventions configures the Decoder.
type Conventions struct {
	PathPattern string `yaml:"sequencing_path_pattern" toml:"sequencing_path_pattern"`
	NamePattern string `yaml:"lanelet_name_pattern" toml:"lanelet_name_pattern"`
}

// Validate validates the conventions.
func (c *Conventions) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PathPattern, validation.By(compiles)),
		validation.Field(&c.NamePattern, validation.By(compiles), validation.By(hasRunGroup)),
	)
}

func compiles(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	_, err := regexp.Compile(s)
	return err
}

func hasRunGroup(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return nil
	}
	if re.SubexpIndex("run_id") < 0 {
		return fmt.Errorf("must define a run_id group")
	}
	return nil
}

// Decoded is the result of decoding a lanelet path.
type Decoded struct {
	RunID    string `json:"run_id"`
	LaneID   string `json:"lane_id,omitempty"`
	TagID    string `json:"tag_id,omitempty"`
	BareName string `json:"bare_name"`
	HasTag   bool   `json:"has_tag"`
}

// DecodeError describes why a path could not be decoded. It wraps
// apperr.ErrNotASequencingPath or apperr.ErrNotALaneletName.
type DecodeError struct {
	Path string
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %q (file %s)", e.Err, e.Name, e.Path)
	}
	return fmt.Sprintf("%s: %q", e.Err, e.Path)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder decodes paths. It is immutable and safe for concurrent use.
type Decoder struct {
	path *regexp.Regexp
	name *regexp.Regexp
}

// NewDecoder compiles conventions. Empty patterns fall back to defaults.
func NewDecoder(c Conventions) (*Decoder, error) {
	pp, np := c.PathPattern, c.NamePattern
	if pp == "" {
		pp = DefaultPathPattern
	}
	if np == "" {
		np = DefaultNamePattern
	}
	pathRe, err := regexp.Compile(pp)
	if err != nil {
		return nil, fmt.Errorf("lanelet: path pattern: %w", err)
	}
	nameRe, err := regexp.Compile(np)
	if err != nil {
		return nil, fmt.Errorf("lanelet: name pattern: %w", err)
	}
	if nameRe.SubexpIndex("run_id") < 0 {
		return nil, fmt.Errorf("lanelet: name pattern has no run_id group")
	}
	return &Decoder{path: pathRe, name: nameRe}, nil
}

// DefaultDecoder returns a Decoder for the default conventions.
func DefaultDecoder() *Decoder {
	d, err := NewDecoder(Conventions{})
	if err != nil {
		panic(err)
	}
	return d
}

// Decode validates p against the sequencing path convention and decodes the
// lanelet name of its file.
func (d *Decoder) Decode(p string) (Decoded, error) {
	if !d.path.MatchString(p) {
		return Decoded{}, &DecodeError{Path: p, Err: apperr.ErrNotASequencingPath}
	}
	out, err := d.DecodeName(BareName(p))
	var de *DecodeError
	if errors.As(err, &de) {
		de.Path = p
	}
	return out, err
}

// DecodeName decodes a bare lanelet name such as 10001_1#30.
func (d *Decoder) DecodeName(name string) (Decoded, error) {
	m := d.name.FindStringSubmatch(name)
	if m == nil {
		return Decoded{}, &DecodeError{Name: name, Err: apperr.ErrNotALaneletName}
	}
	out := Decoded{BareName: name}
	if i := d.name.SubexpIndex("run_id"); i >= 0 {
		out.RunID = m[i]
	}
	if i := d.name.SubexpIndex("lane_id"); i >= 0 {
		out.LaneID = m[i]
	}
	if i := d.name.SubexpIndex("tag_id"); i >= 0 && m[i] != "" {
		out.TagID = m[i]
		out.HasTag = true
	}
	return out, nil
}

// FileName returns the last path element.
func FileName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// BareName returns the file name without any extension; everything from the
// first dot is removed, so 10001_1#30.bam.bai becomes 10001_1#30.
func BareName(p string) string {
	name := FileName(p)
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
