package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/budgetbook/budgetbook/internal/api/middleware"
	"github.com/budgetbook/budgetbook/internal/gcsuploader"
	infra "github.com/budgetbook/budgetbook/internal/infra/bigquery"
)

// UploadStore persists upload metadata.
type UploadStore interface {
	RecordUpload(ctx context.Context, row *infra.UploadRow) (string, error)
	GetUpload(ctx context.Context, uploadID string) (*infra.UploadRow, error)
	ListUploads(ctx context.Context) ([]*infra.UploadRow, error)
}

// UploadsHandler accepts CSV files, parks them in Cloud Storage and records
// their metadata for later import sessions.
type UploadsHandler struct {
	store    UploadStore
	gcs      *gcsuploader.Service
	maxBytes int64
	userID   string
	log      zerolog.Logger
}

// NewUploadsHandler creates a new uploads handler.
func NewUploadsHandler(store UploadStore, gcs *gcsuploader.Service, maxBytes int64, userID string, log zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{
		store:    store,
		gcs:      gcs,
		maxBytes: maxBytes,
		userID:   userID,
		log:      log,
	}
}

// Upload handles POST /api/uploads. The CSV travels as a multipart form file
// under the "file" field.
func (h *UploadsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A CSV file is required under the \"file\" form field")
		return
	}
	defer file.Close()

	if !allowedUploadExt(header.Filename) {
		middleware.WriteError(w, http.StatusBadRequest, "Only .csv and .txt files are accepted")
		return
	}

	if header.Size > h.maxBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the %d byte upload limit", h.maxBytes))
		return
	}

	ctx := r.Context()
	gcsURI, err := h.gcs.Upload(ctx, header.Filename, file)
	if err != nil {
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to upload file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	row := &infra.UploadRow{
		UserID:      h.userID,
		Filename:    header.Filename,
		GCSURI:      gcsURI,
		SizeBytes:   header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}
	uploadID, err := h.store.RecordUpload(ctx, row)
	if err != nil {
		h.log.Error().Err(err).Str("gcs_uri", gcsURI).Msg("Failed to record upload metadata")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save upload metadata")
		return
	}

	h.log.Info().
		Str("upload_id", uploadID).
		Str("gcs_uri", gcsURI).
		Int64("bytes", header.Size).
		Msg("File uploaded")

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"upload_id": uploadID,
		"filename":  header.Filename,
		"gcs_uri":   gcsURI,
		"size":      header.Size,
	})
}

// allowedUploadExt reports whether the filename carries one of the accepted
// upload extensions.
func allowedUploadExt(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return true
	}
	return false
}

// List handles GET /api/uploads
func (h *UploadsHandler) List(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.store.ListUploads(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list uploads")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list uploads")
		return
	}
	if uploads == nil {
		uploads = []*infra.UploadRow{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"uploads": uploads,
		"count":   len(uploads),
	})
}

// GCSUploadSource resolves upload IDs to CSV text by reading the stored
// object back from Cloud Storage. It implements CSVSource for the imports
// handler.
type GCSUploadSource struct {
	Store UploadStore
	GCS   *gcsuploader.Service
}

// FetchCSV implements CSVSource.
func (s *GCSUploadSource) FetchCSV(ctx context.Context, uploadID string) (string, error) {
	row, err := s.Store.GetUpload(ctx, uploadID)
	if err != nil {
		return "", fmt.Errorf("FetchCSV: %w", err)
	}
	if row == nil {
		return "", fmt.Errorf("FetchCSV: upload not found: %s", uploadID)
	}

	data, err := s.GCS.Fetch(ctx, row.GCSURI)
	if err != nil {
		return "", fmt.Errorf("FetchCSV: %w", err)
	}
	return string(data), nil
}

var _ CSVSource = (*GCSUploadSource)(nil)
