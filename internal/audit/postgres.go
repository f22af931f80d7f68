package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/zuclubit/certus/pkg/domain"
	"github.com/zuclubit/certus/pkg/platform/tx"
)

// PostgresStore persists audit events in an outbox table. Rows are written
// in the caller's transaction when one is in flight, so the audit record
// commits atomically with the domain change it describes. A worker drains
// unpublished rows to Kafka.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const appendEventStmt = `
INSERT INTO audit_events (id, occurred_at, tenant_id, submission_id, action, detail)
VALUES ($1, $2, $3, $4, $5, $6)`

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}

	var subID any
	if !event.SubmissionID.IsNil() {
		subID = event.SubmissionID.String()
	}

	if t, ok := tx.From(ctx); ok {
		_, err = t.ExecContext(ctx, appendEventStmt, event.ID, event.Timestamp, event.TenantID.String(), subID, event.Action, detail)
	} else {
		_, err = s.db.ExecContext(ctx, appendEventStmt, event.ID, event.Timestamp, event.TenantID.String(), subID, event.Action, detail)
	}
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

const listBySubmissionQuery = `
SELECT id, occurred_at, tenant_id, submission_id, action, detail
FROM audit_events
WHERE submission_id = $1
ORDER BY occurred_at, id`

func (s *PostgresStore) ListBySubmission(ctx context.Context, id domain.SubmissionID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, listBySubmissionQuery, id.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

const unpublishedQuery = `
SELECT id, occurred_at, tenant_id, submission_id, action, detail
FROM audit_events
WHERE published_at IS NULL
ORDER BY occurred_at, id
LIMIT $1`

// Unpublished returns up to limit events not yet drained to the broker.
func (s *PostgresStore) Unpublished(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, unpublishedQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

const markPublishedStmt = `
UPDATE audit_events SET published_at = now() WHERE id = ANY($1)`

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	if _, err := s.db.ExecContext(ctx, markPublishedStmt, pq.Array(strs)); err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var (
			e      Event
			tenant string
			subID  sql.NullString
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &tenant, &subID, &e.Action, &detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		t, err := domain.ParseTenantID(tenant)
		if err != nil {
			return nil, fmt.Errorf("scan audit event tenant: %w", err)
		}
		e.TenantID = t
		if subID.Valid {
			id, err := domain.ParseSubmissionID(subID.String)
			if err != nil {
				return nil, fmt.Errorf("scan audit event submission: %w", err)
			}
			e.SubmissionID = id
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
