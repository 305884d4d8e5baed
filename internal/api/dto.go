package api

import (
	"github.com/starford/metacheck/internal/checker"
	"github.com/starford/metacheck/internal/models"
)

// CheckRequest is the request body for starting a check run.
type CheckRequest = checker.Request

// Report is the response of a finished check run (aliased from the domain layer).
type Report = models.Report

// RunListResponse wraps paginated run listings.
type RunListResponse struct {
	Runs  []models.Summary `json:"runs" validate:"required"`
	Total int              `json:"total" example:"42" validate:"required"`
}

// ClassifyResponse is the identifier class of a single value.
type ClassifyResponse struct {
	Value string                 `json:"value" example:"ERS12345" validate:"required"`
	Class models.IdentifierClass `json:"class" example:"accession_number" validate:"required"`
}

// DecodeResponse is a decoded archive path. Kind and Reason are set when
// the path could not be decoded.
type DecodeResponse struct {
	Path     string      `json:"path" example:"/seq/10001/10001_1#30.bam" validate:"required"`
	Valid    bool        `json:"valid"`
	RunID    string      `json:"run_id,omitempty" example:"10001"`
	LaneID   string      `json:"lane_id,omitempty" example:"1"`
	TagID    string      `json:"tag_id,omitempty" example:"30"`
	BareName string      `json:"bare_name,omitempty" example:"10001_1#30"`
	Kind     models.Kind `json:"kind,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// HistoryResponse lists the findings recorded for one path.
type HistoryResponse struct {
	Path          string               `json:"path" validate:"required"`
	Discrepancies []models.Discrepancy `json:"discrepancies" validate:"required"`
}
