package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zuclubit/certus/internal/layout"
)

// The condition tree is a closed set of tagged variants: AND groups, OR
// groups, and leaf predicates. Evaluation is recursive descent with
// short-circuiting and no side effects; identical inputs always produce the
// same answer.

// LogicalOp joins a group's children.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
)

// Comparator is the closed set of leaf operators.
type Comparator string

const (
	CmpEq       Comparator = "eq"
	CmpNe       Comparator = "ne"
	CmpGt       Comparator = "gt"
	CmpGte      Comparator = "gte"
	CmpLt       Comparator = "lt"
	CmpLte      Comparator = "lte"
	CmpIn       Comparator = "in"
	CmpNotIn    Comparator = "not_in"
	CmpContains Comparator = "contains"
	CmpEmpty    Comparator = "empty"
	CmpNotEmpty Comparator = "not_empty"
)

// Predicate is a leaf: one field compared against a literal or another
// field of the same record.
type Predicate struct {
	Field      string
	Comparator Comparator
	// Value is the literal operand. For CmpIn/CmpNotIn it is a
	// pipe-separated list.
	Value string
	// FieldRef, when set, compares against another field instead of the
	// literal.
	FieldRef string
}

// ConditionGroup is an interior node.
type ConditionGroup struct {
	Op         LogicalOp
	Groups     []*ConditionGroup
	Predicates []Predicate
}

// Evaluate runs the tree against one record. An empty group evaluates to
// true, meaning the rule relies entirely on its built-in algorithm.
func (g *ConditionGroup) Evaluate(rec layout.Record) bool {
	if g == nil {
		return true
	}
	if len(g.Groups) == 0 && len(g.Predicates) == 0 {
		return true
	}

	if g.Op == OpOr {
		for _, p := range g.Predicates {
			if p.Evaluate(rec) {
				return true
			}
		}
		for _, child := range g.Groups {
			if child.Evaluate(rec) {
				return true
			}
		}
		return false
	}

	// AND is the default for unset operators.
	for _, p := range g.Predicates {
		if !p.Evaluate(rec) {
			return false
		}
	}
	for _, child := range g.Groups {
		if !child.Evaluate(rec) {
			return false
		}
	}
	return true
}

// EvaluateAny reports whether any record in the set satisfies the tree.
func (g *ConditionGroup) EvaluateAny(recs []layout.Record) bool {
	if g == nil {
		return true
	}
	for _, rec := range recs {
		if g.Evaluate(rec) {
			return true
		}
	}
	return len(recs) == 0 && len(g.Groups) == 0 && len(g.Predicates) == 0
}

// Evaluate applies the leaf comparison. A predicate on a field the layout
// does not define is false: rules must not pass on data that is not there.
func (p Predicate) Evaluate(rec layout.Record) bool {
	fv, ok := rec.Field(p.Field)
	if !ok {
		return false
	}

	switch p.Comparator {
	case CmpEmpty:
		return strings.TrimSpace(fv.Raw) == ""
	case CmpNotEmpty:
		return strings.TrimSpace(fv.Raw) != ""
	}

	operand := p.Value
	if p.FieldRef != "" {
		ref, ok := rec.Field(p.FieldRef)
		if !ok {
			return false
		}
		operand = compareText(ref)
	}

	switch p.Comparator {
	case CmpEq:
		return compare(fv, operand) == 0
	case CmpNe:
		return compare(fv, operand) != 0
	case CmpGt:
		return compare(fv, operand) > 0
	case CmpGte:
		return compare(fv, operand) >= 0
	case CmpLt:
		return compare(fv, operand) < 0
	case CmpLte:
		return compare(fv, operand) <= 0
	case CmpIn:
		return inList(compareText(fv), operand)
	case CmpNotIn:
		return !inList(compareText(fv), operand)
	case CmpContains:
		return strings.Contains(compareText(fv), operand)
	}
	return false
}

// compareText normalizes a field to its comparable text form.
func compareText(fv layout.FieldValue) string {
	switch fv.Kind {
	case layout.KindDecimal:
		if fv.Valid() {
			return fv.Dec.String()
		}
	case layout.KindDate:
		if fv.Valid() {
			return fv.Date.Format("20060102")
		}
	}
	return strings.TrimSpace(fv.Raw)
}

// compare orders a field value against a string operand, numerically when
// the field is numeric and both sides parse, lexically otherwise. Returns
// -1, 0, or 1.
func compare(fv layout.FieldValue, operand string) int {
	switch fv.Kind {
	case layout.KindInteger, layout.KindDecimal:
		if fv.Valid() {
			if rhs, err := decimal.NewFromString(strings.TrimSpace(operand)); err == nil {
				lhs := fv.Dec
				if fv.Kind == layout.KindInteger {
					lhs = decimal.NewFromInt(fv.Int)
				}
				return lhs.Cmp(rhs)
			}
		}
	}
	return strings.Compare(compareText(fv), strings.TrimSpace(operand))
}

func inList(v, pipeList string) bool {
	for _, item := range strings.Split(pipeList, "|") {
		if v == strings.TrimSpace(item) {
			return true
		}
	}
	return false
}
