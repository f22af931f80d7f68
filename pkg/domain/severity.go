package domain

// Severity ranks findings and rule criticality. Ordering matters: the
// aggregator folds outcomes by the highest severity present.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities from most to least severe.
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityError:    3,
	SeverityWarning:  2,
	SeverityInfo:     1,
}

// AtLeast reports whether s is as severe as other or more so.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// IsValid checks membership in the supported set.
func (s Severity) IsValid() bool {
	return severityRank[s] != 0
}

func (s Severity) String() string { return string(s) }

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusPending    SubmissionStatus = "pending"
	StatusProcessing SubmissionStatus = "processing"
	StatusSuccess    SubmissionStatus = "success"
	StatusWarning    SubmissionStatus = "warning"
	StatusError      SubmissionStatus = "error"
	StatusCritical   SubmissionStatus = "critical"
)

// Terminal reports whether the status is a validation verdict rather than
// an in-flight marker.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusWarning, StatusError, StatusCritical:
		return true
	}
	return false
}

func (s SubmissionStatus) String() string { return string(s) }
