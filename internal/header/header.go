// Package header extracts provenance fields from SAM and BAM file headers.
package header

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/starford/metacheck/internal/apperr"
)

// Format is the container format of a sequencing file.
type Format string

const (
	FormatSAM     Format = "sam"
	FormatBAM     Format = "bam"
	FormatCRAM    Format = "cram"
	FormatUnknown Format = ""
)

// maxHeaderText bounds the header text a BAM file may declare.
const maxHeaderText = 64 << 20

var bamMagic = []byte("BAM\x01")

// Metadata is the provenance recorded in a file header. Every list holds
// distinct values in order of first appearance.
type Metadata struct {
	ReadGroups []string `json:"read_groups"`
	Samples    []string `json:"samples"`
	Libraries  []string `json:"libraries"`
	Studies    []string `json:"studies"`
	Lanelets   []string `json:"lanelets"`
	References []string `json:"references"`
}

// FormatFromPath guesses the format from the file extension.
func FormatFromPath(p string) Format {
	lower := strings.ToLower(p)
	switch {
	case strings.HasSuffix(lower, ".bam"):
		return FormatBAM
	case strings.HasSuffix(lower, ".sam"):
		return FormatSAM
	case strings.HasSuffix(lower, ".cram"):
		return FormatCRAM
	}
	return FormatUnknown
}

// Read parses the header of r in the given format.
func Read(r io.Reader, f Format) (*Metadata, error) {
	switch f {
	case FormatSAM:
		return ParseText(r)
	case FormatBAM:
		text, err := bamText(r)
		if err != nil {
			return nil, err
		}
		return ParseText(bytes.NewReader(text))
	}
	return nil, fmt.Errorf("header: %w: %q", apperr.ErrUnsupportedFormat, f)
}

// bamText returns the SAM header text embedded in a BAM stream. BGZF blocks
// are gzip members, so a multistream gzip reader walks them in order.
func bamText(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("header: open bgzf: %w", err)
	}
	defer zr.Close()

	magic := make([]byte, len(bamMagic))
	if _, err := io.ReadFull(zr, magic); err != nil {
		return nil, fmt.Errorf("header: read magic: %w", err)
	}
	if !bytes.Equal(magic, bamMagic) {
		return nil, fmt.Errorf("header: bad BAM magic %q", magic)
	}
	var n int32
	if err := binary.Read(zr, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("header: read text length: %w", err)
	}
	if n < 0 || n > maxHeaderText {
		return nil, fmt.Errorf("header: implausible text length %d", n)
	}
	text := make([]byte, n)
	if _, err := io.ReadFull(zr, text); err != nil {
		return nil, fmt.Errorf("header: read text: %w", err)
	}
	return bytes.TrimRight(text, "\x00"), nil
}

// ParseText parses SAM header lines. Reading stops at the first alignment
// line, so a whole SAM file can be passed in.
func ParseText(r io.Reader) (*Metadata, error) {
	md := &Metadata{}
	seen := make(map[string]struct{})
	add := func(list *[]string, kind, v string) {
		if v == "" {
			return
		}
		key := kind + "\x00" + v
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		*list = append(*list, v)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxHeaderText)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "@") {
			break
		}
		fields := strings.Split(line, "\t")
		tags := parseTags(fields[1:])
		switch fields[0] {
		case "@RG":
			add(&md.ReadGroups, "ID", tags["ID"])
			add(&md.Samples, "SM", tags["SM"])
			add(&md.Libraries, "LB", tags["LB"])
			add(&md.Studies, "DS", tags["DS"])
			add(&md.Lanelets, "PU", tags["PU"])
		case "@SQ":
			add(&md.References, "UR", tags["UR"])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("header: scan: %w", err)
	}
	return md, nil
}

// parseTags splits TAG:value fields. Values may contain further colons.
func parseTags(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, ":")
		if !ok || len(k) != 2 {
			continue
		}
		if _, dup := out[k]; !dup {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}
