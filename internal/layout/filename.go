package layout

import (
	"fmt"
	"regexp"
	"time"

	"github.com/zuclubit/certus/pkg/domain"
)

// fileNamePattern is the regulatory naming convention TYPE_RFC_YYYYMMDD_SEQ.ext.
// RFC is the reporting entity's 12-13 character tax identifier.
var fileNamePattern = regexp.MustCompile(`^([A-Z]+)_([A-Z&Ñ0-9]{12,13})_(\d{8})_(\d{3})\.[A-Za-z0-9]+$`)

// FileNameInfo is the metadata carried by a conforming file name.
type FileNameInfo struct {
	FileType      domain.FileType
	RFC           string
	OperationDate time.Time
	Sequence      string
}

// ParseFileName validates the naming convention and extracts its parts.
// A non-conforming name is a Structure-type finding for the caller, not a
// decode abort, so the error here is plain data for the dispatcher.
func ParseFileName(name string) (FileNameInfo, *StructuralError) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return FileNameInfo{}, &StructuralError{
			Code:    ErrFileName,
			Message: fmt.Sprintf("file name %q does not match TYPE_RFC_YYYYMMDD_SEQ.ext", name),
		}
	}

	ft, err := domain.ParseFileType(m[1])
	if err != nil {
		return FileNameInfo{}, &StructuralError{
			Code:    ErrFileName,
			Message: fmt.Sprintf("file name %q carries unsupported type tag %q", name, m[1]),
		}
	}

	date, err := time.Parse(dateFormat, m[3])
	if err != nil {
		return FileNameInfo{}, &StructuralError{
			Code:    ErrFileName,
			Message: fmt.Sprintf("file name %q carries invalid date %q", name, m[3]),
		}
	}

	return FileNameInfo{
		FileType:      ft,
		RFC:           m[2],
		OperationDate: date,
		Sequence:      m[4],
	}, nil
}
