package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/metacheck/internal/models"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveFile(models.FileResult{Path: "/seq/1/1_1.bam"})
	m.ObserveFile(models.FileResult{Path: "/seq/1/1_2.bam", Discrepancies: []models.Discrepancy{
		models.AttributeFrequency("/seq/1/1_2.bam", "md5", 1, 2),
	}})
	m.ObserveRun(1500 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`metacheck_files_checked_total{outcome="clean"} 1`,
		`metacheck_files_checked_total{outcome="error"} 1`,
		`metacheck_discrepancies_total{kind="attribute_frequency",severity="error"} 1`,
		`metacheck_runs_total 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveFile(models.FileResult{})
	m.ObserveRun(time.Second)
}
