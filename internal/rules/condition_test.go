package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuclubit/certus/internal/layout"
	"github.com/zuclubit/certus/pkg/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// detailRecord decodes one APORTACIONES detail line for predicate tests.
func detailRecord(t *testing.T, line string) layout.Record {
	t.Helper()
	header := "01" + "568" + "0312" + "20250131" + "202501"
	footer := "09" + "000000001" + "0000000001234500"
	records, _ := layout.Decode([]byte(header+"\n"+line+"\n"+footer+"\n"), domain.FileTypeAportaciones)
	require.Len(t, records, 3)
	return records[1]
}

func testRecord(t *testing.T) layout.Record {
	return detailRecord(t, "02"+"12345678903"+"GODE561231GR8"+"20250115"+"07"+"00000001234500")
}

func TestPredicate_Comparators(t *testing.T) {
	rec := testRecord(t)

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"eq code match", Predicate{Field: layout.FieldMovementType, Comparator: CmpEq, Value: "07"}, true},
		{"eq code mismatch", Predicate{Field: layout.FieldMovementType, Comparator: CmpEq, Value: "01"}, false},
		{"ne", Predicate{Field: layout.FieldMovementType, Comparator: CmpNe, Value: "01"}, true},
		{"numeric gt", Predicate{Field: layout.FieldAmount, Comparator: CmpGt, Value: "10000"}, true},
		{"numeric gt false", Predicate{Field: layout.FieldAmount, Comparator: CmpGt, Value: "12345.00"}, false},
		{"numeric gte boundary", Predicate{Field: layout.FieldAmount, Comparator: CmpGte, Value: "12345.00"}, true},
		{"numeric lt", Predicate{Field: layout.FieldAmount, Comparator: CmpLt, Value: "99999"}, true},
		{"in list", Predicate{Field: layout.FieldMovementType, Comparator: CmpIn, Value: "01|07|09"}, true},
		{"not in list", Predicate{Field: layout.FieldMovementType, Comparator: CmpNotIn, Value: "01|02"}, true},
		{"contains", Predicate{Field: layout.FieldRFC, Comparator: CmpContains, Value: "561231"}, true},
		{"not empty", Predicate{Field: layout.FieldNSS, Comparator: CmpNotEmpty}, true},
		{"date eq", Predicate{Field: layout.FieldMovementDate, Comparator: CmpEq, Value: "20250115"}, true},
		{"unknown field is false", Predicate{Field: "no_such_field", Comparator: CmpNotEmpty}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred.Evaluate(rec))
		})
	}
}

func TestPredicate_FieldRef(t *testing.T) {
	rec := testRecord(t)

	// Compare a field against another field of the same record.
	p := Predicate{Field: layout.FieldMovementDate, Comparator: CmpEq, FieldRef: layout.FieldMovementDate}
	assert.True(t, p.Evaluate(rec))

	p = Predicate{Field: layout.FieldNSS, Comparator: CmpEq, FieldRef: layout.FieldRFC}
	assert.False(t, p.Evaluate(rec))
}

func TestConditionGroup_ShortCircuit(t *testing.T) {
	rec := testRecord(t)

	andGroup := &ConditionGroup{
		Op: OpAnd,
		Predicates: []Predicate{
			{Field: layout.FieldMovementType, Comparator: CmpEq, Value: "07"},
			{Field: layout.FieldAmount, Comparator: CmpGt, Value: "1000"},
		},
	}
	assert.True(t, andGroup.Evaluate(rec))

	andGroup.Predicates[0].Value = "99"
	assert.False(t, andGroup.Evaluate(rec))

	orGroup := &ConditionGroup{
		Op: OpOr,
		Predicates: []Predicate{
			{Field: layout.FieldMovementType, Comparator: CmpEq, Value: "99"},
			{Field: layout.FieldAmount, Comparator: CmpGt, Value: "1000"},
		},
	}
	assert.True(t, orGroup.Evaluate(rec))
}

func TestConditionGroup_Nested(t *testing.T) {
	rec := testRecord(t)

	// (movement_type == 07 AND (amount > 100000 OR amount < 50000))
	group := &ConditionGroup{
		Op: OpAnd,
		Predicates: []Predicate{
			{Field: layout.FieldMovementType, Comparator: CmpEq, Value: "07"},
		},
		Groups: []*ConditionGroup{{
			Op: OpOr,
			Predicates: []Predicate{
				{Field: layout.FieldAmount, Comparator: CmpGt, Value: "100000"},
				{Field: layout.FieldAmount, Comparator: CmpLt, Value: "50000"},
			},
		}},
	}
	assert.True(t, group.Evaluate(rec))
}

func TestConditionGroup_EmptyEvaluatesTrue(t *testing.T) {
	rec := testRecord(t)

	var nilGroup *ConditionGroup
	assert.True(t, nilGroup.Evaluate(rec))
	assert.True(t, (&ConditionGroup{Op: OpAnd}).Evaluate(rec))
	assert.True(t, (&ConditionGroup{Op: OpOr}).Evaluate(rec))
}

func TestDefinition_ActiveWindow(t *testing.T) {
	from := date(2025, 1, 1)
	to := date(2025, 7, 1)

	windowed := Definition{Code: "F-100", EffectiveFrom: &from, EffectiveTo: &to}
	assert.False(t, windowed.ActiveAt(date(2024, 12, 31)))
	assert.True(t, windowed.ActiveAt(date(2025, 1, 1)))
	assert.True(t, windowed.ActiveAt(date(2025, 6, 30)))
	assert.False(t, windowed.ActiveAt(date(2025, 7, 1)), "window is half-open")

	open := Definition{Code: "F-101"}
	assert.True(t, open.ActiveAt(date(2020, 1, 1)))
}

func TestNormativeChange_Transitions(t *testing.T) {
	n := NormativeChange{State: NormativeDraft}
	assert.True(t, n.CanTransition(NormativeActive))
	assert.False(t, n.CanTransition(NormativeArchived))

	n.State = NormativeActive
	assert.True(t, n.CanTransition(NormativeArchived))
	assert.False(t, n.CanTransition(NormativeDraft))

	n.State = NormativeArchived
	assert.False(t, n.CanTransition(NormativeActive), "archiving is terminal")
	assert.False(t, n.CanTransition(NormativeDraft))
}
