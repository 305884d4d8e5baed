package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Handler holds API route handlers.
type Handler struct {
	svc Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// CreateCheck handles POST /api/checks. The run executes synchronously and
// the full report is returned.
//
//	@Summary		Check a batch of files
//	@Tags			checks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CheckRequest	true	"Files to check"
//	@Success		201		{object}	Report
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/checks [post]
func (h *Handler) CreateCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rep, err := h.svc.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, errorDetail("invalid request", err))
		} else {
			slog.Error("check run failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List stored check runs, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset = max(offset, 0)

	runs, total, err := h.svc.ListRuns(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if runs == nil {
		runs = []models.Summary{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs, Total: total})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get a stored check run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run id"
//	@Success		200	{object}	Report
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get run failed", slog.String("run_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Classify handles GET /api/classify.
//
//	@Summary		Classify an identifier
//	@Tags			helpers
//	@Produce		json
//	@Param			value	query		string	true	"Raw identifier"
//	@Success		200		{object}	ClassifyResponse
//	@Security		BearerAuth
//	@Router			/classify [get]
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("value")
	writeJSON(w, http.StatusOK, ClassifyResponse{Value: v, Class: h.svc.Classify(v)})
}

// Decode handles GET /api/decode.
//
//	@Summary		Decode a sequencing path into run, lane and tag
//	@Tags			helpers
//	@Produce		json
//	@Param			path	query		string	true	"Archive path"
//	@Success		200		{object}	DecodeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decode [get]
func (h *Handler) Decode(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	resp := DecodeResponse{Path: path}
	d, err := h.svc.Decode(path)
	switch {
	case err == nil:
		resp.Valid = true
		resp.RunID, resp.LaneID, resp.TagID, resp.BareName = d.RunID, d.LaneID, d.TagID, d.BareName
	case errors.Is(err, apperr.ErrNotALaneletName):
		resp.Kind, resp.Reason = models.KindNotALaneletName, err.Error()
	default:
		resp.Kind, resp.Reason = models.KindNotASequencingPath, err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// History handles GET /api/history.
//
//	@Summary		Findings recorded for one file across runs
//	@Tags			runs
//	@Produce		json
//	@Param			path	query		string	true	"Archive path"
//	@Param			limit	query		int		false	"Max findings"
//	@Success		200		{object}	HistoryResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ds, err := h.svc.History(r.Context(), path, min(limit, maxPageSize))
	if err != nil {
		slog.Error("history failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if ds == nil {
		ds = []models.Discrepancy{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Path: path, Discrepancies: ds})
}
