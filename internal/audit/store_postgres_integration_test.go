//go:build integration

package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/zuclubit/certus/internal/audit"
	"github.com/zuclubit/certus/pkg/domain"
	"github.com/zuclubit/certus/pkg/platform/tx"
	"github.com/zuclubit/certus/pkg/testutil/containers"
)

type PostgresOutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
}

func TestPostgresOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresOutboxSuite))
}

func (s *PostgresOutboxSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = audit.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresOutboxSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "audit_events")
	s.Require().NoError(err)
}

func newStoredEvent(tenant domain.TenantID, sub domain.SubmissionID, action audit.Action, at time.Time) audit.Event {
	return audit.Event{
		ID:           uuid.New(),
		Timestamp:    at,
		TenantID:     tenant,
		SubmissionID: sub,
		Action:       action,
		Detail:       map[string]string{"file_type": "APORTACIONES"},
	}
}

func (s *PostgresOutboxSuite) TestAppendAndListBySubmission() {
	ctx := context.Background()
	tenant := domain.NewTenantID()
	subID := domain.NewSubmissionID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	received := newStoredEvent(tenant, subID, audit.ActionSubmissionReceived, base)
	completed := newStoredEvent(tenant, subID, audit.ActionValidationCompleted, base.Add(time.Second))
	other := newStoredEvent(tenant, domain.NewSubmissionID(), audit.ActionSubmissionReceived, base)

	s.Require().NoError(s.store.Append(ctx, received))
	s.Require().NoError(s.store.Append(ctx, completed))
	s.Require().NoError(s.store.Append(ctx, other))

	events, err := s.store.ListBySubmission(ctx, subID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionSubmissionReceived, events[0].Action)
	s.Equal(audit.ActionValidationCompleted, events[1].Action)
	s.Equal(tenant, events[0].TenantID)
	s.Equal(map[string]string{"file_type": "APORTACIONES"}, events[0].Detail)
}

// TestAppendJoinsCallerTransaction verifies the outbox property: an audit
// row written inside a rolled-back transaction never becomes visible.
func (s *PostgresOutboxSuite) TestAppendJoinsCallerTransaction() {
	ctx := context.Background()
	subID := domain.NewSubmissionID()
	event := newStoredEvent(domain.NewTenantID(), subID, audit.ActionVersionSuperseded,
		time.Now().UTC().Truncate(time.Microsecond))

	boom := errors.New("domain write failed")
	err := tx.Within(ctx, s.postgres.DB, func(ctx context.Context) error {
		if err := s.store.Append(ctx, event); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	events, err := s.store.ListBySubmission(ctx, subID)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *PostgresOutboxSuite) TestUnpublishedDrain() {
	ctx := context.Background()
	tenant := domain.NewTenantID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	first := newStoredEvent(tenant, domain.NewSubmissionID(), audit.ActionSubmissionReceived, base)
	second := newStoredEvent(tenant, domain.NewSubmissionID(), audit.ActionSubmissionReceived, base.Add(time.Second))
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	pending, err := s.store.Unpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{first.ID}))

	pending, err = s.store.Unpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second.ID, pending[0].ID)

	// Marking nothing is a no-op.
	s.Require().NoError(s.store.MarkPublished(ctx, nil))
}

func (s *PostgresOutboxSuite) TestUnpublishedRespectsLimit() {
	ctx := context.Background()
	tenant := domain.NewTenantID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		e := newStoredEvent(tenant, domain.NewSubmissionID(), audit.ActionSubmissionReceived,
			base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Append(ctx, e))
	}

	pending, err := s.store.Unpublished(ctx, 3)
	s.Require().NoError(err)
	s.Len(pending, 3)
}
