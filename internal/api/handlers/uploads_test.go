package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartFile(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &body, mw.FormDataContentType()
}

func TestUpload_RejectsUnsupportedExtension(t *testing.T) {
	h := NewUploadsHandler(nil, nil, 1<<20, "user-1", zerolog.Nop())

	body, contentType := multipartFile(t, "statement.pdf", "%PDF-1.4")
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ".csv")
}

func TestUpload_MissingFileField(t *testing.T) {
	h := NewUploadsHandler(nil, nil, 1<<20, "user-1", zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", bytes.NewBufferString(""))
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllowedUploadExt(t *testing.T) {
	tests := []struct {
		filename string
		allowed  bool
	}{
		{"transactions.csv", true},
		{"TRANSACTIONS.CSV", true},
		{"export.txt", true},
		{"statement.pdf", false},
		{"archive.csv.zip", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.allowed, allowedUploadExt(tt.filename))
		})
	}
}
