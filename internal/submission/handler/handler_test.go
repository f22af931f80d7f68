package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuclubit/certus/internal/audit"
	"github.com/zuclubit/certus/internal/engine"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/internal/submission/service"
	"github.com/zuclubit/certus/internal/submission/store"
	"github.com/zuclubit/certus/pkg/domain"
)

const testFileName = "APORTACIONES_GODE561231GR8_20250131_001.txt"

// errorValidator flags every submission with one fixed finding.
type errorValidator struct{}

func (errorValidator) Validate(_ context.Context, sub *models.Submission, _ []byte) (engine.Result, error) {
	return engine.Result{
		SubmissionID: sub.ID,
		Status:       domain.StatusError,
		Counts:       engine.Counts{TotalRecords: 3, ValidRecords: 2, ErrorRecords: 1, ErrorFindings: 1},
		Outcomes: []engine.RuleOutcome{{
			RuleCode:    "FMT-001",
			Criticality: domain.SeverityError,
			Findings: []engine.Finding{{
				RuleCode: "FMT-001",
				Severity: domain.SeverityError,
				Line:     2,
				Field:    "nss",
				Message:  "invalid NSS: check digit mismatch",
			}},
		}},
	}, nil
}

func newTestRouter(t *testing.T) (*chi.Mux, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	svc := service.New(st, errorValidator{}, audit.NewPublisher(audit.NewMemoryStore(), nil))
	r := chi.NewRouter()
	New(svc, nil).Register(r)
	return r, st
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSubmission(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/submissions", createSubmissionRequest{
		TenantID: domain.NewTenantID().String(),
		FileName: testFileName,
		Content:  "01001APOR20250131202501",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp validationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Submission.Status)
	assert.Equal(t, "APORTACIONES", resp.Submission.FileType)
	assert.Equal(t, 1, resp.Submission.VersionNumber)
	require.Len(t, resp.Findings, 1)
	assert.Equal(t, "FMT-001", resp.Findings[0].RuleCode)
	assert.Equal(t, 2, resp.Findings[0].Line)
}

func TestCreateSubmissionBadBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "invalid_input", env.Error.Code)
}

func TestCreateSubmissionBadTenant(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/submissions", createSubmissionRequest{
		TenantID: "not-a-uuid",
		FileName: testFileName,
		Content:  "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSubmissionBadFileName(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/submissions", createSubmissionRequest{
		TenantID: domain.NewTenantID().String(),
		FileName: "enero.txt",
		Content:  "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrectionEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	created := postJSON(t, router, "/submissions", createSubmissionRequest{
		TenantID: domain.NewTenantID().String(),
		FileName: testFileName,
		Content:  "v1",
	})
	require.Equal(t, http.StatusCreated, created.Code)
	var v1 validationResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &v1))

	rec := postJSON(t, router, "/submissions/"+v1.Submission.ID+"/corrections", correctionRequest{
		Reason:  "fixed NSS check digits",
		Content: "v2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var v2 validationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v2))
	assert.Equal(t, 2, v2.Submission.VersionNumber)
	assert.Equal(t, v1.Submission.ID, v2.Submission.OriginalSubmissionID)

	// Correcting the retired version again conflicts.
	rec = postJSON(t, router, "/submissions/"+v1.Submission.ID+"/corrections", correctionRequest{
		Reason:  "second fix",
		Content: "v3",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "conflict", env.Error.Code)
}

func TestGetSubmissionAndChain(t *testing.T) {
	router, _ := newTestRouter(t)

	created := postJSON(t, router, "/submissions", createSubmissionRequest{
		TenantID: domain.NewTenantID().String(),
		FileName: testFileName,
		Content:  "v1",
	})
	var v1 validationResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &v1))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/"+v1.Submission.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got validationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, v1.Submission.ID, got.Submission.ID)
	assert.Len(t, got.Findings, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/"+v1.Submission.ID+"/chain", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var chain []submissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chain))
	require.Len(t, chain, 1)
	assert.Equal(t, v1.Submission.ID, chain[0].ID)
}

func TestGetUnknownSubmission(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/"+domain.NewSubmissionID().String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMalformedID(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
