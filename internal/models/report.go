package models

import "time"

// FileResult holds the findings for one file, in check order.
type FileResult struct {
	Path          string        `json:"path"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Clean reports whether the file produced no findings at all.
func (f FileResult) Clean() bool { return len(f.Discrepancies) == 0 }

// Report is the outcome of one check run over a batch of files.
type Report struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Files      []FileResult `json:"files"`
}

// ByPath maps each checked path to its findings.
func (r *Report) ByPath() map[string][]Discrepancy {
	out := make(map[string][]Discrepancy, len(r.Files))
	for _, f := range r.Files {
		out[f.Path] = f.Discrepancies
	}
	return out
}

// HasErrors reports whether any file has an error-severity finding.
func (r *Report) HasErrors() bool {
	for _, f := range r.Files {
		if HasErrors(f.Discrepancies) {
			return true
		}
	}
	return false
}

// Summary counts a report's findings.
type Summary struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Files      int          `json:"files"`
	Clean      int          `json:"clean"`
	Errors     int          `json:"errors"`
	Warnings   int          `json:"warnings"`
	ByKind     map[Kind]int `json:"by_kind,omitempty"`
}

// Summarize counts the findings of r.
func (r *Report) Summarize() Summary {
	s := Summary{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Files:      len(r.Files),
		ByKind:     map[Kind]int{},
	}
	for _, f := range r.Files {
		if f.Clean() {
			s.Clean++
		}
		for _, d := range f.Discrepancies {
			s.ByKind[d.Kind]++
			if d.Severity == SeverityError {
				s.Errors++
			} else {
				s.Warnings++
			}
		}
	}
	return s
}
