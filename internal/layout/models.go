// Package layout decodes raw regulatory submission files into typed record
// sequences. Decoding is best-effort: malformed content never aborts a run,
// it surfaces as structural errors and unparsed records that downstream
// rules report on.
package layout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zuclubit/certus/pkg/domain"
)

// RecordRole classifies a decoded line within its file layout.
type RecordRole string

const (
	RoleHeader RecordRole = "header"
	RoleDetail RecordRole = "detail"
	RoleFooter RecordRole = "footer"
	// RoleUnparsed marks a line whose type marker matched no known role.
	// The record carries only raw text and line number so rules can still
	// report on it.
	RoleUnparsed RecordRole = "unparsed"
)

// Line type markers occupying the first two columns of every line.
const (
	markerHeader = "01"
	markerDetail = "02"
	markerFooter = "09"
)

// FieldKind is the closed set of field value types a layout can declare.
type FieldKind string

const (
	KindText    FieldKind = "text"
	KindInteger FieldKind = "integer"
	KindDecimal FieldKind = "decimal"
	KindDate    FieldKind = "date"
	KindCode    FieldKind = "code"
)

// dateFormat is the wire format for all date fields.
const dateFormat = "20060102"

// FieldSpec positions one typed field inside a fixed-width line.
type FieldSpec struct {
	Name   string
	Kind   FieldKind
	Start  int // zero-based column offset
	Length int
	// ImpliedDecimals shifts a decimal field's scale; amounts arrive as
	// zero-padded integers with two implied decimal places.
	ImpliedDecimals int32
}

func (f FieldSpec) end() int { return f.Start + f.Length }

// Layout describes the fixed-width record shapes for one file type.
type Layout struct {
	FileType domain.FileType
	// Delimiter is empty for fixed-width layouts. Kept so a delimited
	// layout is a data change, not a code change.
	Delimiter string
	Header    []FieldSpec
	Detail    []FieldSpec
	Footer    []FieldSpec
	// Tolerance is the maximum absolute difference accepted when the
	// declared footer total is reconciled against the summed detail
	// amounts.
	Tolerance decimal.Decimal
}

// lineLength returns the expected width for a role.
func (l Layout) lineLength(role RecordRole) int {
	max := len(markerHeader)
	for _, f := range l.fields(role) {
		if f.end() > max {
			max = f.end()
		}
	}
	return max
}

func (l Layout) fields(role RecordRole) []FieldSpec {
	switch role {
	case RoleHeader:
		return l.Header
	case RoleDetail:
		return l.Detail
	case RoleFooter:
		return l.Footer
	}
	return nil
}

// FieldValue is one extracted field. Raw always holds the original column
// slice; the typed members are only meaningful when ParseErr is empty.
type FieldValue struct {
	Name     string
	Kind     FieldKind
	Raw      string
	Text     string
	Int      int64
	Dec      decimal.Decimal
	Date     time.Time
	ParseErr string
}

// Valid reports whether the typed value parsed cleanly.
func (v FieldValue) Valid() bool { return v.ParseErr == "" }

// Record is one decoded line. Immutable once decoded.
type Record struct {
	LineNumber int
	Role       RecordRole
	Fields     []FieldValue
	Raw        string

	byName map[string]int
}

// Field returns the named field and whether the layout defines it.
func (r Record) Field(name string) (FieldValue, bool) {
	i, ok := r.byName[name]
	if !ok {
		return FieldValue{}, false
	}
	return r.Fields[i], true
}

// StructuralError is a malformed-file-shape finding. Always Critical: every
// downstream rule assumes the structural preconditions hold.
type StructuralError struct {
	Code    string
	Line    int
	Message string
}

// Structural error codes.
const (
	ErrMissingHeader    = "STRUCT_MISSING_HEADER"
	ErrDuplicateHeader  = "STRUCT_DUPLICATE_HEADER"
	ErrMissingFooter    = "STRUCT_MISSING_FOOTER"
	ErrDuplicateFooter  = "STRUCT_DUPLICATE_FOOTER"
	ErrFooterNotLast    = "STRUCT_FOOTER_NOT_LAST"
	ErrLineLength       = "STRUCT_LINE_LENGTH"
	ErrUnclassifiedLine = "STRUCT_UNCLASSIFIED_LINE"
	ErrEmptyFile        = "STRUCT_EMPTY_FILE"
	ErrUnknownLayout    = "STRUCT_UNKNOWN_LAYOUT"
	ErrFileName         = "STRUCT_FILE_NAME"
)
