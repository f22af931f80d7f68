// Package admin exposes the normative-change surface: the operational entry
// point that activates, rewindows, or archives rule definitions. Validation
// runs never mutate the catalog; all change flows through here.
package admin

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/zuclubit/certus/internal/audit"
	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/pkg/domain"
	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// Registry applies a normative change to the rule catalog.
type Registry interface {
	RegisterChange(ctx context.Context, change rules.NormativeChange, ruleCodes []string) error
}

// Auditor records the change for the audit trail. Fail-closed: an Emit
// error fails the registration.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service validates and applies normative changes.
type Service struct {
	registry Registry
	auditor  Auditor
	log      *slog.Logger
	now      func() time.Time
}

// Option customizes the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates the admin service.
func New(registry Registry, auditor Auditor, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		auditor:  auditor,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the change, applies it to the named rules, and audits
// it. Normative changes are system-scoped: the audit event carries no
// tenant.
func (s *Service) Register(ctx context.Context, change rules.NormativeChange, ruleCodes []string) (rules.NormativeChange, error) {
	if change.Reference == "" {
		return rules.NormativeChange{}, dErrors.New(dErrors.CodeInvalidInput, "normative change reference is required")
	}
	switch change.State {
	case rules.NormativeDraft, rules.NormativeActive, rules.NormativeArchived:
	default:
		return rules.NormativeChange{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown normative state %q", change.State)
	}
	if change.EffectiveFrom.IsZero() {
		return rules.NormativeChange{}, dErrors.New(dErrors.CodeInvalidInput, "effective date is required")
	}
	if change.EffectiveTo != nil && !change.EffectiveTo.After(change.EffectiveFrom) {
		return rules.NormativeChange{}, dErrors.New(dErrors.CodeInvalidInput, "effective window must end after it starts")
	}

	if change.ID.IsNil() {
		change.ID = domain.NewNormativeChangeID()
	}
	if change.PublishedAt.IsZero() {
		change.PublishedAt = s.now()
	}

	if err := s.registry.RegisterChange(ctx, change, ruleCodes); err != nil {
		return rules.NormativeChange{}, err
	}

	err := s.auditor.Emit(ctx, audit.Event{
		Action: audit.ActionNormativeChange,
		Detail: map[string]string{
			"reference":      change.Reference,
			"state":          string(change.State),
			"effective_from": change.EffectiveFrom.Format(time.RFC3339),
			"rule_codes":     strings.Join(ruleCodes, ","),
			"rule_count":     strconv.Itoa(len(ruleCodes)),
		},
	})
	if err != nil {
		return rules.NormativeChange{}, err
	}

	s.log.InfoContext(ctx, "normative change registered",
		"reference", change.Reference,
		"state", change.State,
		"rules", len(ruleCodes),
	)
	return change, nil
}
