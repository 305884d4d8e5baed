package header

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/starford/metacheck/internal/apperr"
)

const samHeader = "@HD\tVN:1.4\tSO:coordinate\n" +
	"@SQ\tSN:1\tLN:249250621\tUR:/lustre/ref/Homo_sapiens/GRCh37/all/fasta/hs37d5.fa\n" +
	"@SQ\tSN:2\tLN:243199373\tUR:/lustre/ref/Homo_sapiens/GRCh37/all/fasta/hs37d5.fa\n" +
	"@RG\tID:1#30\tPL:ILLUMINA\tPU:10001_1#30\tLB:12345678\tDS:ERP000123\tSM:ERS12345\tCN:SC\n" +
	"@RG\tID:1#30.1\tPL:ILLUMINA\tPU:10001_1#30\tLB:12345678\tSM:ERS12345\n" +
	"@PG\tID:bwa\tPN:bwa\tCL:bwa aln -q 15\n" +
	"read1\t0\t1\t100\t60\t10M\t*\t0\t0\tACGTACGTAC\tIIIIIIIIII\n"

func TestParseText(t *testing.T) {
	md, err := ParseText(strings.NewReader(samHeader))
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	check := func(name string, got []string, want ...string) {
		t.Helper()
		if len(got) != len(want) {
			t.Errorf("%s = %v, want %v", name, got, want)
			return
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s[%d] = %q, want %q", name, i, got[i], want[i])
			}
		}
	}
	check("samples", md.Samples, "ERS12345")
	check("libraries", md.Libraries, "12345678")
	check("studies", md.Studies, "ERP000123")
	check("lanelets", md.Lanelets, "10001_1#30")
	check("read groups", md.ReadGroups, "1#30", "1#30.1")
	check("references", md.References, "/lustre/ref/Homo_sapiens/GRCh37/all/fasta/hs37d5.fa")
}

func TestParseText_Empty(t *testing.T) {
	md, err := ParseText(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if len(md.Samples) != 0 || len(md.Lanelets) != 0 {
		t.Errorf("expected empty metadata, got %+v", md)
	}
}

func bamBytes(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("BAM\x01"))
	binary.Write(zw, binary.LittleEndian, int32(len(text)+1))
	zw.Write([]byte(text))
	zw.Write([]byte{0})
	binary.Write(zw, binary.LittleEndian, int32(0))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	// Trailing empty member, as BGZF writers emit.
	eof := gzip.NewWriter(&buf)
	if err := eof.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRead_BAM(t *testing.T) {
	data := bamBytes(t, samHeader[:strings.Index(samHeader, "read1")])
	md, err := Read(bytes.NewReader(data), FormatBAM)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(md.Samples) != 1 || md.Samples[0] != "ERS12345" {
		t.Errorf("samples = %v", md.Samples)
	}
	if len(md.Lanelets) != 1 || md.Lanelets[0] != "10001_1#30" {
		t.Errorf("lanelets = %v", md.Lanelets)
	}
}

func TestRead_BAMBadMagic(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("CRAM"))
	zw.Close()
	if _, err := Read(&buf, FormatBAM); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestRead_CRAMUnsupported(t *testing.T) {
	_, err := Read(strings.NewReader(""), FormatCRAM)
	if !errors.Is(err, apperr.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	cases := map[string]Format{
		"/seq/1/1_1.bam":  FormatBAM,
		"/seq/1/1_1.CRAM": FormatCRAM,
		"x.sam":           FormatSAM,
		"x.bai":           FormatUnknown,
	}
	for in, want := range cases {
		if got := FormatFromPath(in); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
