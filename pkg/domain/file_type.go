package domain

import dErrors "github.com/zuclubit/certus/pkg/domain-errors"

// FileType identifies the regulatory layout a submission must follow.
// Invariant: the value must be one of the supported file-type tags.
//
// Construct via ParseFileType at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type FileType string

// Supported regulatory file types.
const (
	// FileTypeCartera carries end-of-day portfolio positions per SIEFORE.
	FileTypeCartera FileType = "CARTERA"
	// FileTypeAportaciones carries worker contribution detail.
	FileTypeAportaciones FileType = "APORTACIONES"
	// FileTypeDerivados carries open derivative positions.
	FileTypeDerivados FileType = "DERIVADOS"
	// FileTypeTraspasos carries inter-AFORE account transfers.
	FileTypeTraspasos FileType = "TRASPASOS"
)

// validFileTypes is the single source of truth for supported layouts.
var validFileTypes = map[FileType]bool{
	FileTypeCartera:      true,
	FileTypeAportaciones: true,
	FileTypeDerivados:    true,
	FileTypeTraspasos:    true,
}

// ParseFileType constructs a FileType from external input.
//
// Errors: CodeInvalidInput when the tag is empty or unsupported.
func ParseFileType(s string) (FileType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "file type cannot be empty")
	}
	ft := FileType(s)
	if !ft.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported file type %q", s)
	}
	return ft, nil
}

// IsValid checks membership in the supported set.
func (ft FileType) IsValid() bool {
	return validFileTypes[ft]
}

// String returns the tag as written in file names.
func (ft FileType) String() string {
	return string(ft)
}
