// Package rules defines the declarative rule catalog: rule definitions,
// their condition trees, and the pure evaluation primitives the dispatcher
// builds on.
package rules

import (
	"time"

	"github.com/zuclubit/certus/pkg/domain"
)

// Type is the closed set of rule kinds. Each kind maps to a built-in
// evaluation algorithm in the engine; the condition tree, when present,
// narrows which records a rule applies to.
type Type string

const (
	TypeStructure   Type = "structure"
	TypeFormat      Type = "format"
	TypeCatalog     Type = "catalog"
	TypeCalculation Type = "calculation"
	TypeLogic       Type = "logic"
	TypeExternalAPI Type = "external_api"
	TypeCrossFile   Type = "cross_file"
	TypeCompliance  Type = "compliance"
	TypeRange       Type = "range"
)

// Action declares what a rule failure does to the submission.
type Action string

const (
	ActionRejectRecord Action = "reject_record"
	ActionRejectFile   Action = "reject_file"
	ActionFlagOnly     Action = "flag_only"
)

// Definition is one validator in the catalog. Code is the stable identifier
// rules are addressed and audited by; everything else may change across
// normative updates.
type Definition struct {
	ID          domain.RuleID
	Code        string
	Name        string
	Descr       string
	Type        Type
	Criticality domain.Severity
	// FileTypes is the applicable file-type set.
	FileTypes []domain.FileType
	// Condition narrows candidate records. A nil condition means the
	// rule's built-in algorithm alone decides.
	Condition *ConditionGroup
	// Params carries per-rule algorithm inputs (field names, catalog
	// names, bounds) so the catalog stays data-driven.
	Params map[string]string
	// CategoryCode groups rules for ordering and reporting.
	CategoryCode string
	// RegulatoryRef cites the normative text behind the rule.
	RegulatoryRef string
	// RunOrder orders rules within a run; ties break by Code.
	RunOrder int
	Action   Action
	// NormativeChangeID links the rule to the dated regulatory update
	// that activated it, when any.
	NormativeChangeID domain.NormativeChangeID
	EffectiveFrom     *time.Time
	EffectiveTo       *time.Time
}

// AppliesTo reports whether the rule covers a file type.
func (d Definition) AppliesTo(ft domain.FileType) bool {
	for _, t := range d.FileTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the rule's effective window covers the instant.
// Rules without a window are always active. The window is half-open:
// [EffectiveFrom, EffectiveTo).
func (d Definition) ActiveAt(at time.Time) bool {
	if d.EffectiveFrom != nil && at.Before(*d.EffectiveFrom) {
		return false
	}
	if d.EffectiveTo != nil && !at.Before(*d.EffectiveTo) {
		return false
	}
	return true
}

// NormativeChangeState tracks the lifecycle of a dated regulatory update.
// Transitions are one-directional: Draft -> Active -> Archived.
type NormativeChangeState string

const (
	NormativeDraft    NormativeChangeState = "draft"
	NormativeActive   NormativeChangeState = "active"
	NormativeArchived NormativeChangeState = "archived"
)

// NormativeChange is a dated regulatory update that activates, rewindows,
// or archives rule definitions.
type NormativeChange struct {
	ID            domain.NormativeChangeID
	Reference     string
	Description   string
	State         NormativeChangeState
	PublishedAt   time.Time
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// CanTransition reports whether the lifecycle move is legal.
func (n NormativeChange) CanTransition(to NormativeChangeState) bool {
	switch n.State {
	case NormativeDraft:
		return to == NormativeActive
	case NormativeActive:
		return to == NormativeArchived
	}
	return false
}
