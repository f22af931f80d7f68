package handler

import (
	"time"

	"github.com/zuclubit/certus/internal/engine"
	"github.com/zuclubit/certus/internal/submission/models"
)

// createSubmissionRequest is the upload payload. Content carries the file
// body verbatim; regulatory files are plain fixed-width text.
type createSubmissionRequest struct {
	TenantID string `json:"tenant_id"`
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

type correctionRequest struct {
	Reason  string `json:"reason"`
	Content string `json:"content"`
}

type submissionResponse struct {
	ID                   string     `json:"id"`
	TenantID             string     `json:"tenant_id"`
	FileName             string     `json:"file_name"`
	FileType             string     `json:"file_type"`
	Period               string     `json:"period"`
	UploadedAt           time.Time  `json:"uploaded_at"`
	Status               string     `json:"status"`
	TotalRecords         int        `json:"total_records"`
	ValidRecords         int        `json:"valid_records"`
	ErrorRecords         int        `json:"error_records"`
	WarningRecords       int        `json:"warning_records"`
	VersionNumber        int        `json:"version_number"`
	OriginalSubmissionID string     `json:"original_submission_id"`
	CorrectionReason     string     `json:"correction_reason,omitempty"`
	SupersededAt         *time.Time `json:"superseded_at,omitempty"`
	SupersededBy         string     `json:"superseded_by,omitempty"`
}

type findingResponse struct {
	RuleCode      string `json:"rule_code"`
	Severity      string `json:"severity"`
	Line          int    `json:"line,omitempty"`
	Field         string `json:"field,omitempty"`
	Value         string `json:"value,omitempty"`
	Expected      string `json:"expected,omitempty"`
	Message       string `json:"message"`
	Suggestion    string `json:"suggestion,omitempty"`
	RegulatoryRef string `json:"regulatory_ref,omitempty"`
	// LookupUnavailable distinguishes infrastructure degradation from data
	// defects.
	LookupUnavailable bool `json:"lookup_unavailable,omitempty"`
}

type validationResponse struct {
	Submission submissionResponse `json:"submission"`
	Findings   []findingResponse  `json:"findings"`
}

func toSubmissionResponse(sub *models.Submission) submissionResponse {
	resp := submissionResponse{
		ID:                   sub.ID.String(),
		TenantID:             sub.TenantID.String(),
		FileName:             sub.FileName,
		FileType:             sub.FileType.String(),
		Period:               sub.Period,
		UploadedAt:           sub.UploadedAt,
		Status:               sub.Status.String(),
		TotalRecords:         sub.TotalRecords,
		ValidRecords:         sub.ValidRecords,
		ErrorRecords:         sub.ErrorRecords,
		WarningRecords:       sub.WarningRecords,
		VersionNumber:        sub.VersionNumber,
		OriginalSubmissionID: sub.OriginalSubmissionID.String(),
		CorrectionReason:     sub.CorrectionReason,
		SupersededAt:         sub.SupersededAt,
	}
	if sub.SupersededByID != nil {
		resp.SupersededBy = sub.SupersededByID.String()
	}
	return resp
}

func toFindingResponses(result *engine.Result) []findingResponse {
	if result == nil {
		return nil
	}
	var out []findingResponse
	for _, outcome := range result.Outcomes {
		for _, f := range outcome.Findings {
			out = append(out, findingResponse{
				RuleCode:          f.RuleCode,
				Severity:          f.Severity.String(),
				Line:              f.Line,
				Field:             f.Field,
				Value:             f.Value,
				Expected:          f.Expected,
				Message:           f.Message,
				Suggestion:        f.Suggestion,
				RegulatoryRef:     f.RegulatoryRef,
				LookupUnavailable: f.LookupUnavailable,
			})
		}
	}
	return out
}
