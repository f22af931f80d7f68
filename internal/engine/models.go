// Package engine evaluates the active rule catalog against decoded
// submissions and folds the outcomes into a submission verdict. Evaluation
// is deterministic and total: malformed input and infrastructure failures
// become findings, never aborted runs.
package engine

import (
	"fmt"
	"time"

	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/pkg/domain"
)

// Finding is one concrete reported violation. Findings are append-only
// facts: created during a run, never edited.
type Finding struct {
	RuleCode string
	Severity domain.Severity
	// Line is the offending line number, 0 when the finding concerns the
	// file as a whole.
	Line  int
	Field string
	// Value is the offending value as it appeared in the file.
	Value string
	// Expected describes the accepted value when the rule can name one.
	Expected      string
	Message       string
	Suggestion    string
	RegulatoryRef string
	// LookupUnavailable marks findings caused by a reference-service
	// failure rather than a defect in the submitted data.
	LookupUnavailable bool
}

// RuleOutcome is the result of evaluating one rule against one submission.
// Created fresh per validation run; a re-validation produces a new run, not
// an edit.
type RuleOutcome struct {
	RuleCode    string
	RuleType    rules.Type
	Criticality domain.Severity
	Passed      bool
	// Skipped marks Structure rules short-circuited by an earlier
	// Critical structural failure. A skipped rule counts as not passed
	// but contributes no findings.
	Skipped  bool
	Findings []Finding
	Duration time.Duration
}

// Counts partitions record and finding totals for a run.
type Counts struct {
	TotalRecords   int
	ValidRecords   int
	ErrorRecords   int
	WarningRecords int

	CriticalFindings int
	ErrorFindings    int
	WarningFindings  int
	InfoFindings     int
}

// Result is what Validate hands back: the single entry point report
// generators and dashboards consume.
type Result struct {
	SubmissionID domain.SubmissionID
	Status       domain.SubmissionStatus
	Counts       Counts
	Outcomes     []RuleOutcome
}

// findingf builds a finding with a formatted message.
func findingf(rule rules.Definition, severity domain.Severity, line int, field, value, expected, format string, args ...any) Finding {
	return Finding{
		RuleCode:      rule.Code,
		Severity:      severity,
		Line:          line,
		Field:         field,
		Value:         value,
		Expected:      expected,
		Message:       fmt.Sprintf(format, args...),
		RegulatoryRef: rule.RegulatoryRef,
	}
}
