// Package handler exposes the submission lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zuclubit/certus/internal/engine"
	"github.com/zuclubit/certus/internal/platform/middleware"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/pkg/domain"
	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// Service defines the submission operations the handler needs.
type Service interface {
	Receive(ctx context.Context, tenantID domain.TenantID, fileName string, content []byte) (*models.Submission, *engine.Result, error)
	Correct(ctx context.Context, priorID domain.SubmissionID, reason string, content []byte) (*models.Submission, *engine.Result, error)
	Get(ctx context.Context, id domain.SubmissionID) (*models.Submission, *engine.Result, error)
	Chain(ctx context.Context, id domain.SubmissionID) ([]*models.Submission, error)
}

// Handler handles submission endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a submission Handler.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the submission routes on the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/submissions", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Get("/chain", h.handleChain)
			r.Post("/corrections", h.handleCorrect)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	tenantID, err := domain.ParseTenantID(req.TenantID)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, result, err := h.service.Receive(ctx, tenantID, req.FileName, []byte(req.Content))
	if err != nil {
		h.logger.WarnContext(ctx, "submission rejected",
			"request_id", requestID,
			"file_name", req.FileName,
			"error", err,
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, validationResponse{
		Submission: toSubmissionResponse(sub),
		Findings:   toFindingResponses(result),
	})
}

func (h *Handler) handleCorrect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	priorID, err := domain.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	sub, result, err := h.service.Correct(ctx, priorID, req.Reason, []byte(req.Content))
	if err != nil {
		h.logger.WarnContext(ctx, "correction rejected",
			"request_id", requestID,
			"prior_id", priorID,
			"error", err,
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, validationResponse{
		Submission: toSubmissionResponse(sub),
		Findings:   toFindingResponses(result),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	sub, result, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, validationResponse{
		Submission: toSubmissionResponse(sub),
		Findings:   toFindingResponses(result),
	})
}

func (h *Handler) handleChain(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	chain, err := h.service.Chain(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]submissionResponse, 0, len(chain))
	for _, sub := range chain {
		out = append(out, toSubmissionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}
