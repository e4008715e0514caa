package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetbook/budgetbook/internal/csvimport"
	"github.com/budgetbook/budgetbook/internal/domain"
	"github.com/budgetbook/budgetbook/internal/jobs"
)

type fakeLoader struct{}

func (fakeLoader) LoadReferenceSnapshot(context.Context) (*csvimport.ReferenceSnapshot, error) {
	return &csvimport.ReferenceSnapshot{
		Accounts: []domain.Account{
			{ID: "acc-1", Name: "Checking", Currency: "USD", Balance: decimal.NewFromInt(100)},
			{ID: "acc-2", Name: "Savings", Currency: "USD", Balance: decimal.NewFromInt(500)},
		},
		Categories: []domain.Category{
			{ID: "cat-1", Name: "Groceries", Type: domain.TypeExpense},
		},
	}, nil
}

type fakePublisher struct {
	published []*jobs.CommitImportJob
}

func (p *fakePublisher) PublishCommitImport(_ context.Context, job *jobs.CommitImportJob) error {
	job.JobID = "job-test"
	job.Status = jobs.JobStatusPending
	p.published = append(p.published, job)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newTestHandler() (*ImportsHandler, *fakePublisher) {
	pub := &fakePublisher{}
	h := NewImportsHandler(csvimport.NewRegistry(), fakeLoader{}, pub, nil, zerolog.Nop())
	return h, pub
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func createSession(t *testing.T, h *ImportsHandler, csvText string) sessionSummary {
	t.Helper()
	rec := postJSON(t, h.CreateSession, "/api/imports", map[string]interface{}{"csv_text": csvText})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var summary sessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	return summary
}

const flowCSV = "Type,Amount,Date,Account,Category\n" +
	"expense,12.50,2025-01-15,Checking,Groceries\n" +
	"expense,9.99,2025-01-16,Wallet,Groceries\n"

func TestCreateSession(t *testing.T) {
	h, _ := newTestHandler()
	summary := createSession(t, h, flowCSV)

	assert.NotEmpty(t, summary.SessionID)
	assert.Equal(t, []string{"Type", "Amount", "Date", "Account", "Category"}, summary.Headers)
	assert.Equal(t, 2, summary.Stats.Total)
	assert.False(t, summary.Validated)
}

func TestCreateSession_BadInput(t *testing.T) {
	h, _ := newTestHandler()

	rec := postJSON(t, h.CreateSession, "/api/imports", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.CreateSession, "/api/imports", map[string]interface{}{"csv_text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Upload source not configured.
	rec = postJSON(t, h.CreateSession, "/api/imports", map[string]interface{}{"upload_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func doRoute(h *ImportsHandler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.Route(rec, req)
	return rec
}

func TestImportFlow(t *testing.T) {
	h, pub := newTestHandler()
	summary := createSession(t, h, flowCSV)
	base := "/api/imports/" + summary.SessionID

	// Committing before validation is rejected.
	rec := doRoute(h, http.MethodPost, base+"/commit", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Validate: one row references an unknown account.
	rec = doRoute(h, http.MethodPost, base+"/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var validated sessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validated))
	assert.Equal(t, 1, validated.Stats.Invalid)

	// Fix the bad row via cell edit.
	rec = doRoute(h, http.MethodPatch, base+"/rows/2", map[string]string{"column": "Account", "value": "Savings"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Enqueue the commit.
	rec = doRoute(h, http.MethodPost, base+"/commit", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, pub.published, 1)
	assert.Equal(t, summary.SessionID, pub.published[0].SessionID)

	// A second commit of the same session conflicts.
	rec = doRoute(h, http.MethodPost, base+"/commit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, pub.published, 1)
}

func TestMappingEndpoint(t *testing.T) {
	h, _ := newTestHandler()
	summary := createSession(t, h, flowCSV)
	base := "/api/imports/" + summary.SessionID

	rec := doRoute(h, http.MethodPut, base+"/mapping", map[string]string{"column": "Category", "field": "skip"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Duplicate field assignment conflicts.
	rec = doRoute(h, http.MethodPut, base+"/mapping", map[string]string{"column": "Category", "field": "amount"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown field is a plain bad request.
	rec = doRoute(h, http.MethodPut, base+"/mapping", map[string]string{"column": "Category", "field": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidate_IncompleteMapping(t *testing.T) {
	h, _ := newTestHandler()
	summary := createSession(t, h, flowCSV)
	base := "/api/imports/" + summary.SessionID

	rec := doRoute(h, http.MethodPut, base+"/mapping", map[string]string{"column": "Amount", "field": "skip"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRoute(h, http.MethodPost, base+"/validate", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "amount")
}

func TestUnselectErrorsAndRows(t *testing.T) {
	h, _ := newTestHandler()
	summary := createSession(t, h, flowCSV)
	base := "/api/imports/" + summary.SessionID

	rec := doRoute(h, http.MethodPost, base+"/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRoute(h, http.MethodPost, base+"/unselect-errors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unselected":1`)

	rec = doRoute(h, http.MethodGet, base+"/rows?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Rows  []*csvimport.ImportRow `json:"rows"`
		Count int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Count)

	rec = doRoute(h, http.MethodPost, base+"/select-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRoute_UnknownSessionAndPaths(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRoute(h, http.MethodGet, "/api/imports/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	summary := createSession(t, h, flowCSV)
	base := "/api/imports/" + summary.SessionID

	rec = doRoute(h, http.MethodGet, base+"/bogus", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRoute(h, http.MethodPost, base+"/rows/abc/include", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRoute(h, http.MethodDelete, base+"/validate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSample(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/sample", nil)
	rec := httptest.NewRecorder()
	h.Sample(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Transaction Date")
}
