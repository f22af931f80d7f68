package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuclubit/certus/internal/audit"
	"github.com/zuclubit/certus/internal/engine"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/internal/submission/store"
	"github.com/zuclubit/certus/pkg/domain"
	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

const testFileName = "APORTACIONES_GODE561231GR8_20250131_001.txt"

// stubValidator returns a fixed verdict per call, in arrival order.
type stubValidator struct {
	verdicts []domain.SubmissionStatus
	calls    int
}

func (v *stubValidator) Validate(_ context.Context, sub *models.Submission, _ []byte) (engine.Result, error) {
	status := domain.StatusSuccess
	if v.calls < len(v.verdicts) {
		status = v.verdicts[v.calls]
	}
	v.calls++
	return engine.Result{
		SubmissionID: sub.ID,
		Status:       status,
		Counts:       engine.Counts{TotalRecords: 4, ValidRecords: 4},
	}, nil
}

func newService(t *testing.T, verdicts ...domain.SubmissionStatus) (*Service, *store.MemoryStore, *audit.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	auditStore := audit.NewMemoryStore()
	svc := New(st, &stubValidator{verdicts: verdicts}, audit.NewPublisher(auditStore, nil))
	return svc, st, auditStore
}

// flakyAuditor fails Emit for one action and forwards the rest.
type flakyAuditor struct {
	inner  *audit.Publisher
	failOn audit.Action
}

func (a *flakyAuditor) Emit(ctx context.Context, e audit.Event) error {
	if e.Action == a.failOn {
		return dErrors.New(dErrors.CodeInternal, "audit sink down")
	}
	return a.inner.Emit(ctx, e)
}

func newFlakyService(failOn audit.Action, verdicts ...domain.SubmissionStatus) (*Service, *store.MemoryStore) {
	st := store.NewMemoryStore()
	auditor := &flakyAuditor{
		inner:  audit.NewPublisher(audit.NewMemoryStore(), nil),
		failOn: failOn,
	}
	return New(st, &stubValidator{verdicts: verdicts}, auditor), st
}

func TestReceiveValidatesAndPersists(t *testing.T) {
	svc, st, auditStore := newService(t, domain.StatusSuccess)
	tenant := domain.NewTenantID()

	sub, result, err := svc.Receive(context.Background(), tenant, testFileName, []byte("content"))
	require.NoError(t, err)

	assert.Equal(t, domain.FileTypeAportaciones, sub.FileType)
	assert.Equal(t, "202501", sub.Period)
	assert.Equal(t, 1, sub.VersionNumber)
	assert.Equal(t, sub.ID, sub.OriginalSubmissionID)
	assert.Equal(t, domain.StatusSuccess, sub.Status)
	assert.Equal(t, domain.StatusSuccess, result.Status)

	stored, err := st.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, stored.Status)
	assert.Equal(t, 4, stored.TotalRecords)

	events, err := auditStore.ListBySubmission(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionSubmissionReceived, events[0].Action)
	assert.Equal(t, audit.ActionValidationCompleted, events[1].Action)
}

func TestReceiveRejectsBadFileName(t *testing.T) {
	svc, _, _ := newService(t)

	_, _, err := svc.Receive(context.Background(), domain.NewTenantID(), "enero.txt", []byte("content"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestReceiveRejectsEmptyContent(t *testing.T) {
	svc, _, _ := newService(t)

	_, _, err := svc.Receive(context.Background(), domain.NewTenantID(), testFileName, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestCorrectionFlow(t *testing.T) {
	// First upload fails validation, the corrected resubmission passes.
	svc, st, auditStore := newService(t, domain.StatusError, domain.StatusSuccess)
	ctx := context.Background()

	v1, _, err := svc.Receive(ctx, domain.NewTenantID(), testFileName, []byte("v1"))
	require.NoError(t, err)
	require.Equal(t, domain.StatusError, v1.Status)

	v2, result, err := svc.Correct(ctx, v1.ID, "fixed NSS check digits", []byte("v2"))
	require.NoError(t, err)

	assert.Equal(t, 2, v2.VersionNumber)
	assert.Equal(t, v1.OriginalSubmissionID, v2.OriginalSubmissionID)
	assert.Equal(t, "fixed NSS check digits", v2.CorrectionReason)
	assert.Equal(t, domain.StatusSuccess, result.Status)

	// v1 is retired and points at its successor.
	prior, err := st.Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.False(t, prior.Active())
	require.NotNil(t, prior.SupersededByID)
	assert.Equal(t, v2.ID, *prior.SupersededByID)

	// Exactly one active head in the chain.
	chain, err := svc.Chain(ctx, v1.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, 1, chain[0].VersionNumber)
	assert.Equal(t, 2, chain[1].VersionNumber)
	active := 0
	for _, s := range chain {
		if s.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)

	events, err := auditStore.ListBySubmission(ctx, v1.ID)
	require.NoError(t, err)
	var actions []audit.Action
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, audit.ActionVersionSuperseded)
}

func TestCorrectRejectsNonHead(t *testing.T) {
	svc, _, auditStore := newService(t, domain.StatusError, domain.StatusError)
	ctx := context.Background()

	v1, _, err := svc.Receive(ctx, domain.NewTenantID(), testFileName, []byte("v1"))
	require.NoError(t, err)
	_, _, err = svc.Correct(ctx, v1.ID, "first fix", []byte("v2"))
	require.NoError(t, err)

	// v1 is no longer the head; correcting it again must fail.
	_, _, err = svc.Correct(ctx, v1.ID, "second fix", []byte("v3"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	events, err := auditStore.ListBySubmission(ctx, v1.ID)
	require.NoError(t, err)
	var rejected bool
	for _, e := range events {
		if e.Action == audit.ActionCorrectionRejected {
			rejected = true
		}
	}
	assert.True(t, rejected)
}

func TestCorrectRejectsSucceededHead(t *testing.T) {
	svc, _, _ := newService(t, domain.StatusSuccess)
	ctx := context.Background()

	v1, _, err := svc.Receive(ctx, domain.NewTenantID(), testFileName, []byte("v1"))
	require.NoError(t, err)

	_, _, err = svc.Correct(ctx, v1.ID, "unnecessary fix", []byte("v2"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestCorrectRequiresReason(t *testing.T) {
	svc, _, _ := newService(t, domain.StatusError)
	ctx := context.Background()

	v1, _, err := svc.Receive(ctx, domain.NewTenantID(), testFileName, []byte("v1"))
	require.NoError(t, err)

	_, _, err = svc.Correct(ctx, v1.ID, "", []byte("v2"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestReceiveAuditFailureLeavesNoSubmission(t *testing.T) {
	svc, st := newFlakyService(audit.ActionSubmissionReceived)
	ctx := context.Background()
	tenant := domain.NewTenantID()

	_, _, err := svc.Receive(ctx, tenant, testFileName, []byte("v1"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	// The unaudited submission must not exist.
	head, raw, err := st.ActiveByPeriod(ctx, tenant, "202501", domain.FileTypeAportaciones)
	require.NoError(t, err)
	assert.Nil(t, head)
	assert.Nil(t, raw)
}

func TestCorrectAuditFailureKeepsPriorHead(t *testing.T) {
	svc, st := newFlakyService(audit.ActionVersionSuperseded, domain.StatusError)
	ctx := context.Background()

	v1, _, err := svc.Receive(ctx, domain.NewTenantID(), testFileName, []byte("v1"))
	require.NoError(t, err)

	_, _, err = svc.Correct(ctx, v1.ID, "fixed NSS check digits", []byte("v2"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	// The failed boundary rolls back the supersede: v1 is still the head
	// and no successor exists, so a retry is possible.
	prior, err := st.Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.True(t, prior.Active())
	assert.Nil(t, prior.SupersededByID)

	chain, err := st.Chain(ctx, v1.OriginalSubmissionID)
	require.NoError(t, err)
	assert.Len(t, chain, 1)

	// With the trail healthy again the same correction succeeds.
	svc2 := New(st, &stubValidator{}, audit.NewPublisher(audit.NewMemoryStore(), nil))
	v2, _, err := svc2.Correct(ctx, v1.ID, "fixed NSS check digits", []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)
}

func TestGetReturnsStoredResult(t *testing.T) {
	svc, _, _ := newService(t, domain.StatusWarning)
	ctx := context.Background()

	created, _, err := svc.Receive(ctx, domain.NewTenantID(), testFileName, []byte("v1"))
	require.NoError(t, err)

	sub, result, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWarning, sub.Status)
	require.NotNil(t, result)
	assert.Equal(t, domain.StatusWarning, result.Status)
}

func TestGetUnknownSubmission(t *testing.T) {
	svc, _, _ := newService(t)

	_, _, err := svc.Get(context.Background(), domain.NewSubmissionID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestClockInjection(t *testing.T) {
	st := store.NewMemoryStore()
	fixed := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	svc := New(st, &stubValidator{}, audit.NewPublisher(audit.NewMemoryStore(), nil),
		WithClock(func() time.Time { return fixed }))

	sub, _, err := svc.Receive(context.Background(), domain.NewTenantID(), testFileName, []byte("v1"))
	require.NoError(t, err)
	assert.Equal(t, fixed, sub.UploadedAt)
}
