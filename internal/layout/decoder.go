package layout

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zuclubit/certus/pkg/domain"
)

// Decode turns raw file bytes into an ordered record sequence plus the
// structural errors found along the way. It never fails on malformed
// content: unclassifiable lines become RoleUnparsed records and every
// structural defect is returned as data.
//
// Structural pre-checks performed here, not deferred to rules, because they
// are preconditions for everything else: exactly one header, exactly one
// footer positioned last, and per-line width match.
func Decode(raw []byte, ft domain.FileType) ([]Record, []StructuralError) {
	lay, ok := For(ft)
	if !ok {
		return nil, []StructuralError{{
			Code:    ErrUnknownLayout,
			Message: fmt.Sprintf("no layout registered for file type %q", ft),
		}}
	}

	lines := splitLines(raw)
	if len(lines) == 0 {
		return nil, []StructuralError{{Code: ErrEmptyFile, Message: "file contains no lines"}}
	}

	var (
		records    []Record
		structural []StructuralError
		headers    []int
		footers    []int
	)

	for i, line := range lines {
		lineNo := i + 1
		role := classify(line)
		if role == RoleUnparsed {
			records = append(records, Record{LineNumber: lineNo, Role: RoleUnparsed, Raw: line})
			structural = append(structural, StructuralError{
				Code:    ErrUnclassifiedLine,
				Line:    lineNo,
				Message: fmt.Sprintf("line %d: unrecognized type marker %q", lineNo, marker(line)),
			})
			continue
		}

		if want := lay.lineLength(role); len(line) != want {
			structural = append(structural, StructuralError{
				Code:    ErrLineLength,
				Line:    lineNo,
				Message: fmt.Sprintf("line %d: length %d, layout requires %d", lineNo, len(line), want),
			})
		}

		rec := extract(line, lineNo, role, lay)
		records = append(records, rec)

		switch role {
		case RoleHeader:
			headers = append(headers, lineNo)
		case RoleFooter:
			footers = append(footers, lineNo)
		}
	}

	structural = append(structural, checkShape(headers, footers, len(lines))...)
	return records, structural
}

// checkShape enforces the one-header / one-trailing-footer invariants.
func checkShape(headers, footers []int, totalLines int) []StructuralError {
	var errs []StructuralError

	switch {
	case len(headers) == 0:
		errs = append(errs, StructuralError{
			Code:    ErrMissingHeader,
			Message: "missing header (type 01)",
		})
	case len(headers) > 1:
		errs = append(errs, StructuralError{
			Code:    ErrDuplicateHeader,
			Line:    headers[1],
			Message: fmt.Sprintf("duplicate header (type 01) at line %d", headers[1]),
		})
	}

	switch {
	case len(footers) == 0:
		errs = append(errs, StructuralError{
			Code:    ErrMissingFooter,
			Message: "missing footer (type 09)",
		})
	case len(footers) > 1:
		errs = append(errs, StructuralError{
			Code:    ErrDuplicateFooter,
			Line:    footers[1],
			Message: fmt.Sprintf("duplicate footer (type 09) at line %d", footers[1]),
		})
	case footers[0] != totalLines:
		errs = append(errs, StructuralError{
			Code:    ErrFooterNotLast,
			Line:    footers[0],
			Message: fmt.Sprintf("footer (type 09) at line %d, expected last line %d", footers[0], totalLines),
		})
	}

	return errs
}

func splitLines(raw []byte) []string {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	// A trailing newline produces one empty tail element, not an empty line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func marker(line string) string {
	if len(line) < 2 {
		return line
	}
	return line[:2]
}

func classify(line string) RecordRole {
	switch marker(line) {
	case markerHeader:
		return RoleHeader
	case markerDetail:
		return RoleDetail
	case markerFooter:
		return RoleFooter
	}
	return RoleUnparsed
}

// extract slices the declared fields out of a fixed-width line. Short lines
// are padded so every declared field exists; the width mismatch has already
// been reported as a structural error.
func extract(line string, lineNo int, role RecordRole, lay Layout) Record {
	specs := lay.fields(role)
	rec := Record{
		LineNumber: lineNo,
		Role:       role,
		Raw:        line,
		Fields:     make([]FieldValue, 0, len(specs)),
		byName:     make(map[string]int, len(specs)),
	}

	padded := line
	if want := lay.lineLength(role); len(padded) < want {
		padded += strings.Repeat(" ", want-len(padded))
	}

	for _, spec := range specs {
		raw := padded[spec.Start:spec.end()]
		rec.byName[spec.Name] = len(rec.Fields)
		rec.Fields = append(rec.Fields, parseField(spec, raw))
	}
	return rec
}

func parseField(spec FieldSpec, raw string) FieldValue {
	v := FieldValue{Name: spec.Name, Kind: spec.Kind, Raw: raw}
	trimmed := strings.TrimSpace(raw)

	switch spec.Kind {
	case KindText, KindCode:
		v.Text = trimmed
		if spec.Kind == KindCode && trimmed == "" {
			v.ParseErr = "empty code"
		}
	case KindInteger:
		n, err := parseZeroPaddedInt(trimmed)
		if err != nil {
			v.ParseErr = err.Error()
			break
		}
		v.Int = n
	case KindDecimal:
		d, err := parseImpliedDecimal(trimmed, spec.ImpliedDecimals)
		if err != nil {
			v.ParseErr = err.Error()
			break
		}
		v.Dec = d
	case KindDate:
		t, err := time.Parse(dateFormat, trimmed)
		if err != nil {
			v.ParseErr = fmt.Sprintf("not a valid %s date", dateFormat)
			break
		}
		v.Date = t
	}
	return v
}

func parseZeroPaddedInt(s string) (int64, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("empty numeric field")
	}
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit character %q", c)
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

// parseImpliedDecimal reads a zero-padded integer wire value and shifts in
// the implied decimal places. All monetary values stay fixed-point.
func parseImpliedDecimal(s string, implied int32) (decimal.Decimal, error) {
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return decimal.Zero, fmt.Errorf("empty amount field")
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return decimal.Zero, fmt.Errorf("non-digit character %q in amount", c)
		}
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, err
	}
	d = d.Shift(-implied)
	if neg {
		d = d.Neg()
	}
	return d, nil
}
