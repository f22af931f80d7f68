package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// Publisher appends audit events through the storage layer so tests can
// swap sinks easily.
//
// Fail-closed: an event that cannot be persisted fails the caller's
// operation. A regulator-facing system must not perform actions it cannot
// account for.
type Publisher struct {
	store Store
	log   *slog.Logger
}

func NewPublisher(store Store, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{store: store, log: log}
}

// Emit stamps and persists one event.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.log.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"submission_id", event.SubmissionID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "recording audit event")
	}
	return nil
}
