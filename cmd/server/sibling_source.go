package main

import (
	"context"

	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/internal/submission/store"
	"github.com/zuclubit/certus/pkg/domain"
)

// siblingSource adapts the submission store to the engine's cross-file
// port: the active sibling of a run is the chain head for the same tenant
// and period under another file type.
type siblingSource struct {
	store store.Store
}

func (s siblingSource) ActiveSibling(ctx context.Context, tenantID domain.TenantID, period string, ft domain.FileType) (*models.Submission, []byte, error) {
	return s.store.ActiveByPeriod(ctx, tenantID, period, ft)
}
