// Package registry supplies the dated, versioned rule set: which rule
// definitions are active for a file type as of a submission's upload date.
// Rule activation is temporal configuration, so historical re-validation of
// an old submission reproducibly sees the rule set of its original date.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/pkg/domain"
	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// InMemoryRegistry holds the rule catalog in process. Used by tests and by
// deployments that load the catalog at startup.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	rules   map[string]rules.Definition // keyed by rule code
	changes map[domain.NormativeChangeID]rules.NormativeChange
}

// NewInMemory creates an empty registry.
func NewInMemory() *InMemoryRegistry {
	return &InMemoryRegistry{
		rules:   make(map[string]rules.Definition),
		changes: make(map[domain.NormativeChangeID]rules.NormativeChange),
	}
}

// Load replaces the catalog content. Intended for startup seeding.
func (r *InMemoryRegistry) Load(defs []rules.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range defs {
		r.rules[d.Code] = d
	}
}

// ActiveRulesFor returns the rules applicable to a file type whose effective
// window covers asOf, ordered by run order ascending with ties broken by
// rule code. The ordering is part of the engine contract: later rules assume
// structural and format rules already ran.
func (r *InMemoryRegistry) ActiveRulesFor(_ context.Context, ft domain.FileType, asOf time.Time) ([]rules.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []rules.Definition
	for _, d := range r.rules {
		if d.AppliesTo(ft) && d.ActiveAt(asOf) {
			active = append(active, d)
		}
	}
	sortDefinitions(active)
	return active, nil
}

// RegisterChange records a normative change and applies its window to the
// named rules. Lifecycle moves must follow Draft -> Active -> Archived.
func (r *InMemoryRegistry) RegisterChange(_ context.Context, change rules.NormativeChange, ruleCodes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.changes[change.ID]; ok && !existing.CanTransition(change.State) && existing.State != change.State {
		return dErrors.Newf(dErrors.CodeConflict,
			"normative change %s cannot move %s -> %s", change.Reference, existing.State, change.State)
	}
	r.changes[change.ID] = change

	for _, code := range ruleCodes {
		d, ok := r.rules[code]
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "rule %s not in catalog", code)
		}
		d.NormativeChangeID = change.ID
		from := change.EffectiveFrom
		d.EffectiveFrom = &from
		d.EffectiveTo = change.EffectiveTo
		r.rules[code] = d
	}
	return nil
}

// sortDefinitions orders by run order, ties broken by code lexical order.
func sortDefinitions(defs []rules.Definition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].RunOrder != defs[j].RunOrder {
			return defs[i].RunOrder < defs[j].RunOrder
		}
		return defs[i].Code < defs[j].Code
	})
}
