package engine

import (
	"github.com/zuclubit/certus/internal/layout"
	"github.com/zuclubit/certus/pkg/domain"
)

// Aggregate folds all rule outcomes into one submission status plus counts.
// Pure and total: same outcomes, same verdict, no hidden state.
//
// Status derivation: any failed Critical rule -> critical; else any failed
// Error rule -> error; else any failed Warning rule -> warning; else
// success. Skipped rules carry no verdict weight of their own - the
// Critical structural failure that skipped them already decided the run.
func Aggregate(records []layout.Record, outcomes []RuleOutcome) (domain.SubmissionStatus, Counts) {
	counts := Counts{TotalRecords: len(records)}

	worst := domain.SeverityInfo
	anyFailed := false
	lineSeverity := make(map[int]domain.Severity)

	for _, out := range outcomes {
		if !out.Passed && !out.Skipped {
			anyFailed = true
			if out.Criticality.AtLeast(worst) {
				worst = out.Criticality
			}
		}
		for _, f := range out.Findings {
			switch f.Severity {
			case domain.SeverityCritical:
				counts.CriticalFindings++
			case domain.SeverityError:
				counts.ErrorFindings++
			case domain.SeverityWarning:
				counts.WarningFindings++
			default:
				counts.InfoFindings++
			}
			if f.Line > 0 {
				if cur, ok := lineSeverity[f.Line]; !ok || f.Severity.AtLeast(cur) {
					lineSeverity[f.Line] = f.Severity
				}
			}
		}
	}

	for _, sev := range lineSeverity {
		if sev.AtLeast(domain.SeverityError) {
			counts.ErrorRecords++
		} else if sev == domain.SeverityWarning {
			counts.WarningRecords++
		}
	}
	counts.ValidRecords = counts.TotalRecords - counts.ErrorRecords - counts.WarningRecords

	if !anyFailed {
		return domain.StatusSuccess, counts
	}
	switch worst {
	case domain.SeverityCritical:
		return domain.StatusCritical, counts
	case domain.SeverityError:
		return domain.StatusError, counts
	case domain.SeverityWarning:
		return domain.StatusWarning, counts
	}
	// Info-criticality failures flag without degrading the verdict.
	return domain.StatusSuccess, counts
}
