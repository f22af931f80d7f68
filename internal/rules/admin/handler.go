package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zuclubit/certus/internal/rules"
	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// changeService defines the operations the handler needs.
type changeService interface {
	Register(ctx context.Context, change rules.NormativeChange, ruleCodes []string) (rules.NormativeChange, error)
}

// Handler handles normative-change endpoints.
type Handler struct {
	service changeService
	logger  *slog.Logger
}

// NewHandler creates a normative-change Handler.
func NewHandler(service changeService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the normative-change routes on the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/normative-changes", h.handleRegister)
}

type registerChangeRequest struct {
	Reference     string     `json:"reference"`
	Description   string     `json:"description"`
	State         string     `json:"state"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	RuleCodes     []string   `json:"rule_codes"`
}

type registerChangeResponse struct {
	ID            string     `json:"id"`
	Reference     string     `json:"reference"`
	Description   string     `json:"description,omitempty"`
	State         string     `json:"state"`
	PublishedAt   time.Time  `json:"published_at"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	RuleCodes     []string   `json:"rule_codes"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	change := rules.NormativeChange{
		Reference:     req.Reference,
		Description:   req.Description,
		State:         rules.NormativeChangeState(req.State),
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
	}
	registered, err := h.service.Register(ctx, change, req.RuleCodes)
	if err != nil {
		h.logger.WarnContext(ctx, "normative change rejected", "reference", req.Reference, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerChangeResponse{
		ID:            registered.ID.String(),
		Reference:     registered.Reference,
		Description:   registered.Description,
		State:         string(registered.State),
		PublishedAt:   registered.PublishedAt,
		EffectiveFrom: registered.EffectiveFrom,
		EffectiveTo:   registered.EffectiveTo,
		RuleCodes:     req.RuleCodes,
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal error"
	var derr *dErrors.Error
	if errors.As(err, &derr) {
		message = derr.Message
	}
	writeJSON(w, dErrors.ToHTTPStatus(code), errorEnvelope{Error: errorBody{
		Code:    string(code),
		Message: message,
	}})
}
