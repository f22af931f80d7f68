package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zuclubit/certus/internal/engine"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/pkg/domain"
	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// MemoryStore is a map-backed Store for tests and single-node runs. One
// mutex guards all maps; the supersede-and-create transition holds it for
// the whole transition, which gives the same single-head guarantee the
// postgres store gets from its transaction.
type MemoryStore struct {
	// txMu serializes Transact boundaries so a rollback restores exactly
	// the state the transaction started from.
	txMu sync.Mutex

	mu      sync.RWMutex
	subs    map[domain.SubmissionID]*models.Submission
	content map[domain.SubmissionID][]byte
	results map[domain.SubmissionID]*engine.Result
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:    make(map[domain.SubmissionID]*models.Submission),
		content: make(map[domain.SubmissionID][]byte),
		results: make(map[domain.SubmissionID]*engine.Result),
	}
}

// Transact runs fn, restoring the pre-transaction snapshot when fn fails.
// Matches the postgres store's contract: a failed supersede-and-audit
// boundary leaves no partial state behind.
func (s *MemoryStore) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	subs, content, results := s.snapshot()
	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.subs, s.content, s.results = subs, content, results
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) snapshot() (map[domain.SubmissionID]*models.Submission, map[domain.SubmissionID][]byte, map[domain.SubmissionID]*engine.Result) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make(map[domain.SubmissionID]*models.Submission, len(s.subs))
	for id, sub := range s.subs {
		cp := *sub
		subs[id] = &cp
	}
	content := make(map[domain.SubmissionID][]byte, len(s.content))
	for id, raw := range s.content {
		content[id] = raw
	}
	results := make(map[domain.SubmissionID]*engine.Result, len(s.results))
	for id, res := range s.results {
		results[id] = res
	}
	return subs, content, results
}

func (s *MemoryStore) Create(_ context.Context, sub *models.Submission, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subs[sub.ID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "submission %s already exists", sub.ID)
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	s.content[sub.ID] = append([]byte(nil), raw...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "submission %s not found", id)
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) Content(_ context.Context, id domain.SubmissionID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.content[id]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "submission %s not found", id)
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) Chain(_ context.Context, originalID domain.SubmissionID) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Submission
	for _, sub := range s.subs {
		if sub.OriginalSubmissionID == originalID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	if len(out) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no chain rooted at %s", originalID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (s *MemoryStore) UpdateResult(_ context.Context, sub *models.Submission, result engine.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.subs[sub.ID]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "submission %s not found", sub.ID)
	}
	stored.Status = sub.Status
	stored.TotalRecords = sub.TotalRecords
	stored.ValidRecords = sub.ValidRecords
	stored.ErrorRecords = sub.ErrorRecords
	stored.WarningRecords = sub.WarningRecords
	cp := result
	s.results[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) Result(_ context.Context, id domain.SubmissionID) (*engine.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[id]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no validation result for submission %s", id)
	}
	cp := *res
	return &cp, nil
}

func (s *MemoryStore) Supersede(_ context.Context, prior *models.Submission, successor *models.Submission, raw []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.subs[prior.ID]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "submission %s not found", prior.ID)
	}
	if stored.SupersededAt != nil {
		return dErrors.Newf(dErrors.CodeConflict, "submission %s is already superseded", prior.ID)
	}

	when := at
	stored.SupersededAt = &when
	stored.SupersededByID = &successor.ID

	cp := *successor
	s.subs[successor.ID] = &cp
	s.content[successor.ID] = append([]byte(nil), raw...)
	return nil
}

func (s *MemoryStore) ActiveByPeriod(_ context.Context, tenantID domain.TenantID, period string, ft domain.FileType) (*models.Submission, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.TenantID == tenantID && sub.Period == period && sub.FileType == ft && sub.Active() {
			cp := *sub
			return &cp, append([]byte(nil), s.content[sub.ID]...), nil
		}
	}
	return nil, nil, nil
}
