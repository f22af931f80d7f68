package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/zuclubit/certus/pkg/domain"
)

// Store persists audit events. Append-only by contract.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubmission(ctx context.Context, id domain.SubmissionID) ([]Event, error)
}

// MemoryStore keeps events in memory for tests and single-node runs.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []Event
	published map[uuid.UUID]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListBySubmission(_ context.Context, id domain.SubmissionID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.SubmissionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every stored event in append order.
func (s *MemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Unpublished satisfies Outbox so tests can drive the worker without
// postgres.
func (s *MemoryStore) Unpublished(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if s.published == nil || !s.published[e.ID] {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published == nil {
		s.published = make(map[uuid.UUID]bool)
	}
	for _, id := range ids {
		s.published[id] = true
	}
	return nil
}
