// Package audit records the regulatory trail: every submission lifecycle
// action is captured as an immutable event. Events are facts; they are
// appended, published, and never edited.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/zuclubit/certus/pkg/domain"
)

// Action identifies what happened.
type Action string

const (
	ActionSubmissionReceived  Action = "submission_received"
	ActionValidationCompleted Action = "validation_completed"
	ActionVersionSuperseded   Action = "version_superseded"
	ActionCorrectionRejected  Action = "correction_rejected"
	ActionNormativeChange     Action = "normative_change_registered"
)

// Event is one audit trail entry. Keep it transport-agnostic so stores and
// sinks can fan out.
type Event struct {
	ID           uuid.UUID           `json:"id"`
	Timestamp    time.Time           `json:"timestamp"`
	TenantID     domain.TenantID     `json:"tenant_id"`
	SubmissionID domain.SubmissionID `json:"submission_id,omitempty"`
	Action       Action              `json:"action"`
	// Detail carries action-specific facts (status, version numbers,
	// rejection reasons) without widening the event schema per action.
	Detail map[string]string `json:"detail,omitempty"`
}
