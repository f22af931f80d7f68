package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	dErrors "github.com/zuclubit/certus/pkg/domain-errors"

	"github.com/zuclubit/certus/internal/catalog"
	"github.com/zuclubit/certus/internal/layout"
	"github.com/zuclubit/certus/internal/platform/config"
	"github.com/zuclubit/certus/internal/platform/metrics"
	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/pkg/domain"
)

// RuleSource supplies the rule definitions active for a file type at a
// point in time, ordered by run order.
type RuleSource interface {
	ActiveRulesFor(ctx context.Context, ft domain.FileType, at time.Time) ([]rules.Definition, error)
}

// Engine runs the full validation pipeline: decode, rule dispatch,
// aggregation. It holds no per-run state; one Engine serves concurrent
// validations.
type Engine struct {
	rules    RuleSource
	lookup   catalog.Lookup
	external catalog.Lookup
	recon    *Reconciler
	cfg      config.EngineConfig

	metrics *metrics.Metrics
	log     *slog.Logger
	tracer  trace.Tracer
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithExternalLookup sets the lookup used by external-service rules. When
// unset those rules run against the catalog lookup.
func WithExternalLookup(l catalog.Lookup) Option {
	return func(e *Engine) { e.external = l }
}

// WithReconciler enables cross-file rules.
func WithReconciler(r *Reconciler) Option {
	return func(e *Engine) { e.recon = r }
}

// New builds an Engine.
func New(source RuleSource, lookup catalog.Lookup, cfg config.EngineConfig, opts ...Option) *Engine {
	if cfg.RuleParallelism <= 0 {
		cfg.RuleParallelism = 1
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 3 * time.Second
	}
	e := &Engine{
		rules:  source,
		lookup: lookup,
		cfg:    cfg,
		log:    slog.Default(),
		tracer: otel.Tracer("certus/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.external == nil {
		e.external = lookup
	}
	return e
}

// Validate decodes the raw file content and evaluates every active rule
// for the submission's file type. It is deterministic for a fixed rule
// catalog and reference data: re-running the same bytes yields the same
// findings and verdict. The only error return is failure to load the rule
// catalog; everything downstream is expressed as findings.
func (e *Engine) Validate(ctx context.Context, sub *models.Submission, raw []byte) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Validate",
		trace.WithAttributes(
			attribute.String("submission.id", sub.ID.String()),
			attribute.String("submission.file_type", sub.FileType.String()),
		))
	defer span.End()

	start := time.Now()

	defs, err := e.rules.ActiveRulesFor(ctx, sub.FileType, sub.UploadedAt)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "loading active rules")
	}

	lay, ok := layout.For(sub.FileType)
	if !ok {
		return Result{}, dErrors.Newf(dErrors.CodeInvalidInput, "no layout registered for file type %s", sub.FileType)
	}

	records, structural := layout.Decode(raw, sub.FileType)
	rc := newRunContext(sub.FileName, sub.FileType, lay, records, structural)

	outcomes := e.dispatch(ctx, defs, rc, sub)
	status, counts := Aggregate(records, outcomes)

	duration := time.Since(start)
	if e.metrics != nil {
		e.metrics.ObserveRun(status.String(), duration)
	}
	span.SetAttributes(
		attribute.String("submission.status", status.String()),
		attribute.Int("rules.evaluated", len(outcomes)),
	)
	e.log.InfoContext(ctx, "validation run completed",
		"submission_id", sub.ID,
		"file_type", sub.FileType,
		"status", status,
		"rules", len(outcomes),
		"records", counts.TotalRecords,
		"duration", duration,
	)

	return Result{
		SubmissionID: sub.ID,
		Status:       status,
		Counts:       counts,
		Outcomes:     outcomes,
	}, nil
}
