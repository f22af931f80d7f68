// Package store persists submissions, their raw content, and their
// validation results. Version-chain transitions are atomic: supersede and
// create commit together or not at all.
package store

import (
	"context"
	"time"

	"github.com/zuclubit/certus/internal/engine"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/pkg/domain"
)

// Store is the submission persistence contract.
type Store interface {
	// Transact runs fn in one atomic boundary: every write made through
	// this store inside fn, and through any store that joins the same
	// transaction (the audit outbox), commits together or not at all.
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	// Create inserts a new submission together with its raw file content.
	Create(ctx context.Context, sub *models.Submission, raw []byte) error
	// Get returns one submission by ID.
	Get(ctx context.Context, id domain.SubmissionID) (*models.Submission, error)
	// Content returns the raw file bytes of a submission.
	Content(ctx context.Context, id domain.SubmissionID) ([]byte, error)
	// Chain returns every version sharing the submission's chain, ordered
	// by version number ascending.
	Chain(ctx context.Context, originalID domain.SubmissionID) ([]*models.Submission, error)
	// UpdateResult stores the validation verdict and counters on the
	// submission row and the detailed outcomes alongside it.
	UpdateResult(ctx context.Context, sub *models.Submission, result engine.Result) error
	// Result returns the stored outcomes of the submission's last run.
	Result(ctx context.Context, id domain.SubmissionID) (*engine.Result, error)
	// Supersede atomically marks prior superseded by successor and inserts
	// the successor with its content. Returns CodeConflict when prior is no
	// longer the chain head.
	Supersede(ctx context.Context, prior *models.Submission, successor *models.Submission, raw []byte, at time.Time) error
	// ActiveByPeriod returns the chain head for a tenant, period, and file
	// type, with its raw content. (nil, nil, nil) when none exists.
	ActiveByPeriod(ctx context.Context, tenantID domain.TenantID, period string, ft domain.FileType) (*models.Submission, []byte, error)
}
