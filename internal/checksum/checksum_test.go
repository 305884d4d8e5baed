package checksum

import (
	"strings"
	"testing"
)

func TestSum(t *testing.T) {
	if got := Sum([]byte("")); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("Sum(empty) = %s", got)
	}
}

func TestReaderMatchesSum(t *testing.T) {
	data := strings.Repeat("ACGT", 10000)
	got, err := Reader(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	if want := Sum([]byte(data)); got != want {
		t.Errorf("Reader = %s, want %s", got, want)
	}
}
