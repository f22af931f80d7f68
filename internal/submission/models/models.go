// Package models holds the submission aggregate: one uploaded regulatory
// file, its lifecycle status, and its position in a version chain.
package models

import (
	"time"

	"github.com/zuclubit/certus/pkg/domain"
)

// Submission is one uploaded file under validation.
//
// Version chain invariants: exactly one non-superseded submission exists per
// chain at any time; VersionNumber strictly increases along a chain; a
// superseded submission is never mutated again.
type Submission struct {
	ID        domain.SubmissionID
	TenantID  domain.TenantID
	FileName  string
	FileType  domain.FileType
	// Period is the reporting period (YYYYMM) the file covers. Cross-file
	// rules join siblings on TenantID+Period.
	Period     string
	UploadedAt time.Time
	Status     domain.SubmissionStatus

	TotalRecords   int
	ValidRecords   int
	ErrorRecords   int
	WarningRecords int

	VersionNumber int
	// OriginalSubmissionID is the root of the chain; for version 1 it
	// equals ID.
	OriginalSubmissionID domain.SubmissionID
	// CorrectionReason records why this version supersedes its
	// predecessor. Empty for version 1.
	CorrectionReason string
	// SupersededAt is nil while this version is the chain head.
	SupersededAt   *time.Time
	SupersededByID *domain.SubmissionID
}

// Active reports whether this version is the chain head.
func (s Submission) Active() bool {
	return s.SupersededAt == nil
}

// New builds a version-1 submission in pending state.
func New(tenantID domain.TenantID, fileName string, ft domain.FileType, period string, uploadedAt time.Time) *Submission {
	id := domain.NewSubmissionID()
	return &Submission{
		ID:                   id,
		TenantID:             tenantID,
		FileName:             fileName,
		FileType:             ft,
		Period:               period,
		UploadedAt:           uploadedAt,
		Status:               domain.StatusPending,
		VersionNumber:        1,
		OriginalSubmissionID: id,
	}
}

// NewCorrection builds the successor version of prior. The caller is
// responsible for marking prior superseded in the same transaction.
func NewCorrection(prior *Submission, reason string, now time.Time) *Submission {
	return &Submission{
		ID:                   domain.NewSubmissionID(),
		TenantID:             prior.TenantID,
		FileName:             prior.FileName,
		FileType:             prior.FileType,
		Period:               prior.Period,
		UploadedAt:           now,
		Status:               domain.StatusPending,
		VersionNumber:        prior.VersionNumber + 1,
		OriginalSubmissionID: prior.OriginalSubmissionID,
		CorrectionReason:     reason,
	}
}
