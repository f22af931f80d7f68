package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zuclubit/certus/internal/layout"
	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/pkg/domain"
)

func outcome(code string, crit domain.Severity, passed bool, findings ...Finding) RuleOutcome {
	return RuleOutcome{
		RuleCode:    code,
		RuleType:    rules.TypeFormat,
		Criticality: crit,
		Passed:      passed,
		Findings:    findings,
	}
}

func TestAggregateStatusDerivation(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []RuleOutcome
		want     domain.SubmissionStatus
	}{
		{
			name: "all passed",
			outcomes: []RuleOutcome{
				outcome("R1", domain.SeverityCritical, true),
				outcome("R2", domain.SeverityError, true),
			},
			want: domain.StatusSuccess,
		},
		{
			name: "critical failure wins",
			outcomes: []RuleOutcome{
				outcome("R1", domain.SeverityCritical, false, Finding{Severity: domain.SeverityCritical}),
				outcome("R2", domain.SeverityWarning, false, Finding{Severity: domain.SeverityWarning}),
			},
			want: domain.StatusCritical,
		},
		{
			name: "error beats warning",
			outcomes: []RuleOutcome{
				outcome("R1", domain.SeverityError, false, Finding{Severity: domain.SeverityError}),
				outcome("R2", domain.SeverityWarning, false, Finding{Severity: domain.SeverityWarning}),
			},
			want: domain.StatusError,
		},
		{
			name: "warning only",
			outcomes: []RuleOutcome{
				outcome("R1", domain.SeverityWarning, false, Finding{Severity: domain.SeverityWarning}),
			},
			want: domain.StatusWarning,
		},
		{
			name: "info failures do not degrade the verdict",
			outcomes: []RuleOutcome{
				outcome("R1", domain.SeverityInfo, false, Finding{Severity: domain.SeverityInfo}),
				outcome("R2", domain.SeverityError, true),
			},
			want: domain.StatusSuccess,
		},
		{
			name: "skipped rules carry no weight",
			outcomes: []RuleOutcome{
				{RuleCode: "R1", Criticality: domain.SeverityCritical, Skipped: true},
				outcome("R2", domain.SeverityWarning, true),
			},
			want: domain.StatusSuccess,
		},
		{
			name:     "no rules",
			outcomes: nil,
			want:     domain.StatusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := Aggregate(nil, tt.outcomes)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestAggregateCounts(t *testing.T) {
	records := make([]layout.Record, 5)

	outcomes := []RuleOutcome{
		outcome("R1", domain.SeverityError, false,
			Finding{Severity: domain.SeverityError, Line: 2},
			Finding{Severity: domain.SeverityWarning, Line: 3},
		),
		outcome("R2", domain.SeverityWarning, false,
			// Same line as R1's error: the record counts once, at its
			// worst severity.
			Finding{Severity: domain.SeverityWarning, Line: 2},
			Finding{Severity: domain.SeverityInfo, Line: 0},
		),
	}

	status, counts := Aggregate(records, outcomes)

	assert.Equal(t, domain.StatusError, status)
	assert.Equal(t, 5, counts.TotalRecords)
	assert.Equal(t, 1, counts.ErrorRecords)
	assert.Equal(t, 1, counts.WarningRecords)
	assert.Equal(t, 3, counts.ValidRecords)
	assert.Equal(t, 1, counts.ErrorFindings)
	assert.Equal(t, 2, counts.WarningFindings)
	assert.Equal(t, 1, counts.InfoFindings)
}

func TestAggregateIsDeterministic(t *testing.T) {
	outcomes := []RuleOutcome{
		outcome("R1", domain.SeverityError, false, Finding{Severity: domain.SeverityError, Line: 4}),
		outcome("R2", domain.SeverityWarning, false, Finding{Severity: domain.SeverityWarning, Line: 7}),
	}

	s1, c1 := Aggregate(make([]layout.Record, 8), outcomes)
	s2, c2 := Aggregate(make([]layout.Record, 8), outcomes)

	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
}
