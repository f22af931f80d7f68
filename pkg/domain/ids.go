// Package domain holds the typed identifiers and closed enumerations shared
// across the validation engine. IDs are distinct types over uuid.UUID so a
// SubmissionID can never be passed where a TenantID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// SubmissionID identifies one uploaded file under validation.
type SubmissionID uuid.UUID

// TenantID identifies the reporting entity (AFORE) that owns a submission.
type TenantID uuid.UUID

// RuleID identifies a stored RuleDefinition row. Rules are addressed by
// their stable Code in the catalog; RuleID exists for persistence joins.
type RuleID uuid.UUID

// NormativeChangeID identifies a dated regulatory update.
type NormativeChangeID uuid.UUID

// NewSubmissionID returns a fresh random SubmissionID.
func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }

// NewTenantID returns a fresh random TenantID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewRuleID returns a fresh random RuleID.
func NewRuleID() RuleID { return RuleID(uuid.New()) }

// NewNormativeChangeID returns a fresh random NormativeChangeID.
func NewNormativeChangeID() NormativeChangeID { return NormativeChangeID(uuid.New()) }

func (id SubmissionID) String() string      { return uuid.UUID(id).String() }
func (id TenantID) String() string          { return uuid.UUID(id).String() }
func (id RuleID) String() string            { return uuid.UUID(id).String() }
func (id NormativeChangeID) String() string { return uuid.UUID(id).String() }

// MarshalText renders IDs as canonical UUID strings in JSON and logs.
func (id SubmissionID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id TenantID) MarshalText() ([]byte, error)          { return []byte(id.String()), nil }
func (id RuleID) MarshalText() ([]byte, error)            { return []byte(id.String()), nil }
func (id NormativeChangeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SubmissionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubmissionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TenantID) UnmarshalText(b []byte) error {
	parsed, err := ParseTenantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id SubmissionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id NormativeChangeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "nil id")
	}
	return u, nil
}

// ParseSubmissionID constructs a SubmissionID from external input.
// Rejects empty, malformed, and nil UUIDs at the trust boundary.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SubmissionID{}, err
	}
	return SubmissionID(u), nil
}

// ParseTenantID constructs a TenantID from external input.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(u), nil
}
