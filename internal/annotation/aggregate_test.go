package annotation

import (
	"testing"

	"github.com/starford/metacheck/internal/models"
)

func TestAggregate_OrderPreserving(t *testing.T) {
	raws := []models.RawAnnotation{
		{Attribute: "sample", Value: "s2"},
		{Attribute: "md5", Value: "x"},
		{Attribute: "sample", Value: "s1"},
		{Attribute: "sample", Value: "s2"},
	}
	a := Aggregate(raws)

	got := a.Values("sample")
	want := []string{"s2", "s1", "s2"}
	if len(got) != len(want) {
		t.Fatalf("sample values = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if attrs := a.Attributes(); len(attrs) != 2 || attrs[0] != "sample" || attrs[1] != "md5" {
		t.Errorf("attributes = %v", attrs)
	}
}

func TestAggregate_Lossless(t *testing.T) {
	raws := []models.RawAnnotation{
		{Attribute: "a", Value: "1"},
		{Attribute: "b", Value: "2"},
		{Attribute: "a", Value: "1"},
		{Attribute: "c", Value: ""},
	}
	a := Aggregate(raws)
	count := map[models.RawAnnotation]int{}
	for _, r := range raws {
		count[r]++
	}
	for _, r := range a.Flatten() {
		count[r]--
	}
	for r, n := range count {
		if n != 0 {
			t.Errorf("multiset differs for %+v by %d", r, n)
		}
	}
}

func TestAggregate_Empty(t *testing.T) {
	a := Aggregate(nil)
	if a.Len() != 0 {
		t.Errorf("Len = %d, want 0", a.Len())
	}
	if v := a.Values("md5"); len(v) != 0 {
		t.Errorf("missing attribute values = %v, want empty", v)
	}
	if a.Count("md5") != 0 {
		t.Error("missing attribute count should be 0")
	}
}

func TestValues_ReturnsCopy(t *testing.T) {
	a := Aggregate([]models.RawAnnotation{{Attribute: "x", Value: "1"}})
	v := a.Values("x")
	v[0] = "changed"
	if a.Values("x")[0] != "1" {
		t.Error("Values must not expose internal storage")
	}
}

func TestFromMap(t *testing.T) {
	a := FromMap(map[string][]string{"b": {"2"}, "a": {"1", "1"}})
	if attrs := a.Attributes(); attrs[0] != "a" || attrs[1] != "b" {
		t.Errorf("attributes = %v", attrs)
	}
	if a.Count("a") != 2 {
		t.Errorf("count(a) = %d", a.Count("a"))
	}
}
