package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/budgetbook/budgetbook/internal/api/middleware"
	"github.com/budgetbook/budgetbook/internal/csvimport"
	"github.com/budgetbook/budgetbook/internal/jobs"
)

// CSVSource resolves a previously uploaded file to its CSV text.
type CSVSource interface {
	FetchCSV(ctx context.Context, uploadID string) (string, error)
}

// ImportsHandler drives the interactive import flow: create a session from
// CSV text or an upload, adjust the mapping, validate, correct rows, and
// finally enqueue the commit.
type ImportsHandler struct {
	registry  *csvimport.Registry
	loader    csvimport.ReferenceLoader
	publisher jobs.Publisher
	uploads   CSVSource
	log       zerolog.Logger

	// committed guards against double-committing a session; a commit is not
	// idempotent.
	mu        sync.Mutex
	committed map[string]string
}

// NewImportsHandler creates a new imports handler. uploads may be nil when
// file uploads are disabled.
func NewImportsHandler(registry *csvimport.Registry, loader csvimport.ReferenceLoader, publisher jobs.Publisher, uploads CSVSource, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		registry:  registry,
		loader:    loader,
		publisher: publisher,
		uploads:   uploads,
		log:       log,
		committed: make(map[string]string),
	}
}

type sessionSummary struct {
	SessionID string            `json:"session_id"`
	Headers   []string          `json:"headers"`
	Mapping   csvimport.Mapping `json:"mapping"`
	Stats     csvimport.Stats   `json:"stats"`
	Validated bool              `json:"validated"`
	Warning   string            `json:"warning,omitempty"`
}

func summarize(s *csvimport.Session) sessionSummary {
	return sessionSummary{
		SessionID: s.ID,
		Headers:   s.Headers(),
		Mapping:   s.Mapping(),
		Stats:     s.Stats(),
		Validated: s.Validated(),
		Warning:   s.Warning,
	}
}

// CreateSession handles POST /api/imports
func (h *ImportsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CSVText   string `json:"csv_text"`
		UploadID  string `json:"upload_id"`
		HasHeader *bool  `json:"has_header"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	text := req.CSVText
	if text == "" && req.UploadID != "" {
		if h.uploads == nil {
			middleware.WriteError(w, http.StatusBadRequest, "File uploads are not configured")
			return
		}
		fetched, err := h.uploads.FetchCSV(ctx, req.UploadID)
		if err != nil {
			h.log.Error().Err(err).Str("upload_id", req.UploadID).Msg("Failed to fetch upload")
			middleware.WriteError(w, http.StatusNotFound, "Upload not found")
			return
		}
		text = fetched
	}
	if text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "csv_text or upload_id is required")
		return
	}

	hasHeader := true
	if req.HasHeader != nil {
		hasHeader = *req.HasHeader
	}

	parsed, err := csvimport.Parse(text, hasHeader)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := h.loader.LoadReferenceSnapshot(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load reference snapshot")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load reference data")
		return
	}

	session := csvimport.NewSession(parsed, ref)
	h.registry.Add(session)

	h.log.Info().
		Str("session_id", session.ID).
		Int("rows", session.Stats().Total).
		Msg("Import session created")

	middleware.WriteJSON(w, http.StatusCreated, summarize(session))
}

// GetSession handles GET /api/imports/{id}
func (h *ImportsHandler) GetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summarize(session))
}

// ListRows handles GET /api/imports/{id}/rows
func (h *ImportsHandler) ListRows(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}

	query := r.URL.Query()
	offset, _ := strconv.Atoi(query.Get("offset"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	rows := session.Rows(offset, limit)
	if rows == nil {
		rows = []*csvimport.ImportRow{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rows":  rows,
		"count": len(rows),
		"stats": session.Stats(),
	})
}

// SetMapping handles PUT /api/imports/{id}/mapping
func (h *ImportsHandler) SetMapping(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}

	var req struct {
		Column string `json:"column"`
		Field  string `json:"field"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := session.SetMapping(req.Column, csvimport.HeaderField(req.Field)); err != nil {
		var dup *csvimport.DuplicateFieldError
		if errors.As(err, &dup) {
			middleware.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summarize(session))
}

// Validate handles POST /api/imports/{id}/validate
func (h *ImportsHandler) Validate(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}

	if err := session.ValidateAll(); err != nil {
		var incomplete *csvimport.MappingIncompleteError
		if errors.As(err, &incomplete) {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   err.Error(),
				"missing": incomplete.Missing,
			})
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summarize(session))
}

// EditRow handles PATCH /api/imports/{id}/rows/{n}
func (h *ImportsHandler) EditRow(w http.ResponseWriter, r *http.Request, sessionID string, line int) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}

	var req struct {
		Column string `json:"column"`
		Value  string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	row, err := session.EditCell(line, req.Column, req.Value)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"row":   row,
		"stats": session.Stats(),
	})
}

// SetRowInclusion handles POST /api/imports/{id}/rows/{n}/include
func (h *ImportsHandler) SetRowInclusion(w http.ResponseWriter, r *http.Request, sessionID string, line int) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}

	var req struct {
		Included bool `json:"included"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	row, err := session.SetIncluded(line, req.Included)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"row":   row,
		"stats": session.Stats(),
	})
}

// SelectAll handles POST /api/imports/{id}/select-all
func (h *ImportsHandler) SelectAll(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}

	session.SelectAll()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stats": session.Stats(),
	})
}

// UnselectErrors handles POST /api/imports/{id}/unselect-errors
func (h *ImportsHandler) UnselectErrors(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}

	unselected := session.UnselectErrorRows()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"unselected": unselected,
		"stats":      session.Stats(),
	})
}

// Commit handles POST /api/imports/{id}/commit
func (h *ImportsHandler) Commit(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}

	if !session.Validated() {
		middleware.WriteError(w, http.StatusBadRequest, "Session must be validated before committing")
		return
	}
	if session.Stats().Included == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No rows are selected for import")
		return
	}

	h.mu.Lock()
	if jobID, done := h.committed[sessionID]; done {
		h.mu.Unlock()
		middleware.WriteJSON(w, http.StatusConflict, map[string]string{
			"error":  "Session has already been committed",
			"job_id": jobID,
		})
		return
	}

	job := &jobs.CommitImportJob{SessionID: sessionID}
	if err := h.publisher.PublishCommitImport(r.Context(), job); err != nil {
		h.mu.Unlock()
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to enqueue commit job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue commit job")
		return
	}
	h.committed[sessionID] = job.JobID
	h.mu.Unlock()

	h.log.Info().
		Str("job_id", job.JobID).
		Str("session_id", sessionID).
		Msg("Commit job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"session_id": sessionID,
		"status":     string(job.Status),
	})
}

// Sample handles GET /api/sample
func (h *ImportsHandler) Sample(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="import-sample.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(csvimport.SampleCSV))
}

// Route dispatches /api/imports/... paths that carry a session ID and an
// optional sub-resource. The bare collection endpoints are wired separately.
func (h *ImportsHandler) Route(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/imports/")
	if rest == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	parts := strings.Split(rest, "/")
	sessionID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.GetSession(w, r, sessionID)

	case len(parts) == 2 && parts[1] == "rows":
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.ListRows(w, r, sessionID)

	case len(parts) == 2 && parts[1] == "mapping":
		if r.Method != http.MethodPut {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.SetMapping(w, r, sessionID)

	case len(parts) == 2 && parts[1] == "validate":
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.Validate(w, r, sessionID)

	case len(parts) == 2 && parts[1] == "select-all":
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.SelectAll(w, r, sessionID)

	case len(parts) == 2 && parts[1] == "unselect-errors":
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.UnselectErrors(w, r, sessionID)

	case len(parts) == 2 && parts[1] == "commit":
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.Commit(w, r, sessionID)

	case len(parts) >= 3 && parts[1] == "rows":
		line, err := strconv.Atoi(parts[2])
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid row number")
			return
		}
		switch {
		case len(parts) == 3 && r.Method == http.MethodPatch:
			h.EditRow(w, r, sessionID, line)
		case len(parts) == 4 && parts[3] == "include" && r.Method == http.MethodPost:
			h.SetRowInclusion(w, r, sessionID, line)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}

	default:
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	}
}
