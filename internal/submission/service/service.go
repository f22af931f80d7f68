// Package service orchestrates the submission lifecycle: intake, validation
// runs, and audit-immutable correction chains. Handlers stay thin; chain
// invariants live here and in the store's atomic supersede.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/zuclubit/certus/internal/audit"
	"github.com/zuclubit/certus/internal/engine"
	"github.com/zuclubit/certus/internal/layout"
	"github.com/zuclubit/certus/internal/platform/metrics"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/internal/submission/store"
	"github.com/zuclubit/certus/pkg/domain"
	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// Validator runs the rule catalog against a submission's content.
type Validator interface {
	Validate(ctx context.Context, sub *models.Submission, raw []byte) (engine.Result, error)
}

// Auditor records lifecycle events. Fail-closed: an Emit error fails the
// operation that produced it.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the submission application service.
type Service struct {
	store     store.Store
	validator Validator
	auditor   Auditor
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// Option configures optional Service collaborators.
type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, validator Validator, auditor Auditor, opts ...Option) *Service {
	s := &Service{
		store:     st,
		validator: validator,
		auditor:   auditor,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receive accepts an uploaded file, registers it as version 1 of a new
// chain, and validates it synchronously. The returned submission carries
// the verdict.
//
// The file name decides file type and reporting period; a name that does
// not parse is rejected up front since without a file type no layout or
// rule set can be chosen.
func (s *Service) Receive(ctx context.Context, tenantID domain.TenantID, fileName string, content []byte) (*models.Submission, *engine.Result, error) {
	info, serr := layout.ParseFileName(fileName)
	if serr != nil {
		return nil, nil, dErrors.Newf(dErrors.CodeInvalidInput, "unprocessable file name: %s", serr.Message)
	}
	if len(content) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "file content is empty")
	}

	now := s.now()
	sub := models.New(tenantID, fileName, info.FileType, info.OperationDate.Format("200601"), now)

	// One boundary for the row and its audit event: a submission the trail
	// cannot account for must not exist.
	err := s.store.Transact(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, sub, content); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Timestamp:    now,
			TenantID:     tenantID,
			SubmissionID: sub.ID,
			Action:       audit.ActionSubmissionReceived,
			Detail: map[string]string{
				"file_name": fileName,
				"file_type": info.FileType.String(),
				"period":    sub.Period,
				"version":   "1",
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}

	result, err := s.runValidation(ctx, sub, content)
	if err != nil {
		return nil, nil, err
	}
	return sub, result, nil
}

// runValidation executes the engine and persists the verdict.
func (s *Service) runValidation(ctx context.Context, sub *models.Submission, content []byte) (*engine.Result, error) {
	sub.Status = domain.StatusProcessing

	result, err := s.validator.Validate(ctx, sub, content)
	if err != nil {
		s.log.ErrorContext(ctx, "validation run failed",
			"submission_id", sub.ID, "error", err)
		return nil, err
	}

	sub.Status = result.Status
	sub.TotalRecords = result.Counts.TotalRecords
	sub.ValidRecords = result.Counts.ValidRecords
	sub.ErrorRecords = result.Counts.ErrorRecords
	sub.WarningRecords = result.Counts.WarningRecords

	err = s.store.Transact(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateResult(ctx, sub, result); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Timestamp:    s.now(),
			TenantID:     sub.TenantID,
			SubmissionID: sub.ID,
			Action:       audit.ActionValidationCompleted,
			Detail: map[string]string{
				"status":        result.Status.String(),
				"total_records": strconv.Itoa(result.Counts.TotalRecords),
				"error_records": strconv.Itoa(result.Counts.ErrorRecords),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Correct creates the next version of a chain from corrected content.
//
// Chain integrity: only the current head can be corrected, and a head whose
// validation succeeded is final for its period. Both rejections are audited
// so the attempt itself is part of the trail.
func (s *Service) Correct(ctx context.Context, priorID domain.SubmissionID, reason string, content []byte) (*models.Submission, *engine.Result, error) {
	if reason == "" {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "correction reason is required")
	}
	if len(content) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "file content is empty")
	}

	prior, err := s.store.Get(ctx, priorID)
	if err != nil {
		return nil, nil, err
	}

	if !prior.Active() {
		err := dErrors.Newf(dErrors.CodeConflict,
			"submission %s was superseded at version %d; correct the chain head instead", priorID, prior.VersionNumber)
		s.auditRejectedCorrection(ctx, prior, reason, "not the chain head")
		return nil, nil, err
	}
	if prior.Status == domain.StatusSuccess {
		err := dErrors.Newf(dErrors.CodeConflict,
			"submission %s passed validation; a successful filing is not correctable", priorID)
		s.auditRejectedCorrection(ctx, prior, reason, "head already succeeded")
		return nil, nil, err
	}

	now := s.now()
	successor := models.NewCorrection(prior, reason, now)

	// Supersede and its audit event share one boundary: the chain must not
	// move without the trail recording the move. The rejection audit stays
	// outside the boundary or a rollback would erase it.
	txErr := s.store.Transact(ctx, func(ctx context.Context) error {
		if err := s.store.Supersede(ctx, prior, successor, content, now); err != nil {
			return err
		}
		return s.auditor.Emit(ctx, audit.Event{
			Timestamp:    now,
			TenantID:     prior.TenantID,
			SubmissionID: prior.ID,
			Action:       audit.ActionVersionSuperseded,
			Detail: map[string]string{
				"superseded_by": successor.ID.String(),
				"version":       strconv.Itoa(successor.VersionNumber),
				"reason":        reason,
			},
		})
	})
	if txErr != nil {
		if dErrors.HasCode(txErr, dErrors.CodeConflict) {
			s.auditRejectedCorrection(ctx, prior, reason, "lost supersede race")
		}
		return nil, nil, txErr
	}
	if s.metrics != nil {
		s.metrics.IncrementCorrections()
	}

	result, err := s.runValidation(ctx, successor, content)
	if err != nil {
		return nil, nil, err
	}
	return successor, result, nil
}

func (s *Service) auditRejectedCorrection(ctx context.Context, prior *models.Submission, reason, cause string) {
	// Best effort: the rejection is already on its way to the caller.
	if err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:    s.now(),
		TenantID:     prior.TenantID,
		SubmissionID: prior.ID,
		Action:       audit.ActionCorrectionRejected,
		Detail:       map[string]string{"reason": reason, "cause": cause},
	}); err != nil {
		s.log.WarnContext(ctx, "audit of rejected correction failed",
			"submission_id", prior.ID, "error", err)
	}
}

// Get returns a submission and its stored validation result. The result is
// nil when validation has not completed.
func (s *Service) Get(ctx context.Context, id domain.SubmissionID) (*models.Submission, *engine.Result, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.store.Result(ctx, id)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return sub, nil, nil
		}
		return nil, nil, err
	}
	return sub, result, nil
}

// Chain returns the full version lineage of the chain the submission
// belongs to, version 1 first.
func (s *Service) Chain(ctx context.Context, id domain.SubmissionID) ([]*models.Submission, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.Chain(ctx, sub.OriginalSubmissionID)
}
