package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zuclubit/certus/internal/catalog"
	"github.com/zuclubit/certus/internal/layout"
	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/pkg/domain"
)

// Rule param keys understood by the built-in algorithms. Kept as data so the
// catalog drives behavior without code changes.
const (
	ParamCheck     = "check"
	ParamField     = "field"
	ParamCatalog   = "catalog"
	ParamService   = "service"
	ParamCode      = "code"
	ParamMin       = "min"
	ParamMax       = "max"
	ParamSign      = "sign"
	ParamRequires  = "requires"
	ParamLimit     = "limit"
	ParamTolerance = "tolerance"
)

// Built-in check names.
const (
	CheckFileName    = "file_name"
	CheckNSS         = "nss"
	CheckRFC         = "rfc"
	CheckDate        = "date"
	CheckNumeric     = "numeric"
	CheckRecordCount = "record_count"
	CheckTotalAmount = "total_amount"
	CheckDuplicate   = "duplicate"
)

// runContext is the immutable decoded view of one submission a rule
// evaluates against.
type runContext struct {
	fileName   string
	fileType   domain.FileType
	lay        layout.Layout
	records    []layout.Record
	structural []layout.StructuralError
	details    []layout.Record
	header     *layout.Record
	footer     *layout.Record
}

func newRunContext(fileName string, ft domain.FileType, lay layout.Layout, records []layout.Record, structural []layout.StructuralError) *runContext {
	rc := &runContext{
		fileName:   fileName,
		fileType:   ft,
		lay:        lay,
		records:    records,
		structural: structural,
	}
	for i := range records {
		switch records[i].Role {
		case layout.RoleHeader:
			if rc.header == nil {
				rc.header = &records[i]
			}
		case layout.RoleDetail:
			rc.details = append(rc.details, records[i])
		case layout.RoleFooter:
			rc.footer = &records[i]
		}
	}
	return rc
}

// candidates returns the detail records the rule's condition admits.
func (rc *runContext) candidates(cond *rules.ConditionGroup) []layout.Record {
	if cond == nil {
		return rc.details
	}
	var out []layout.Record
	for _, rec := range rc.details {
		if cond.Evaluate(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// evalStructure reports decoder structural errors as findings. With
// check=file_name it validates the naming convention instead; with a code
// param it narrows to one structural error code.
func evalStructure(rule rules.Definition, rc *runContext) []Finding {
	if rule.Params[ParamCheck] == CheckFileName {
		if _, serr := layout.ParseFileName(rc.fileName); serr != nil {
			return []Finding{findingf(rule, rule.Criticality, 0, "", rc.fileName, "TYPE_RFC_YYYYMMDD_SEQ.ext", "%s", serr.Message)}
		}
		return nil
	}

	wantCode := rule.Params[ParamCode]
	var findings []Finding
	for _, serr := range rc.structural {
		if wantCode != "" && serr.Code != wantCode {
			continue
		}
		findings = append(findings, findingf(rule, rule.Criticality, serr.Line, "", "", "", "%s", serr.Message))
	}
	return findings
}

// evalFormat runs field-level format checks: national-ID check digits, date
// and numeric parses with sign constraints.
func evalFormat(rule rules.Definition, rc *runContext) []Finding {
	check := rule.Params[ParamCheck]
	field := rule.Params[ParamField]
	var findings []Finding

	for _, rec := range rc.candidates(rule.Condition) {
		fv, ok := rec.Field(field)
		if !ok {
			continue
		}
		value := strings.TrimSpace(fv.Raw)

		switch check {
		case CheckNSS:
			if err := rules.ValidateNSS(value); err != nil {
				f := findingf(rule, rule.Criticality, rec.LineNumber, field, value, "", "invalid NSS: %v", err)
				f.Suggestion = "verify the worker identifier against the IMSS registry"
				findings = append(findings, f)
			}
		case CheckRFC:
			if err := rules.ValidateRFC(value); err != nil {
				f := findingf(rule, rule.Criticality, rec.LineNumber, field, value, "", "invalid RFC: %v", err)
				f.Suggestion = "verify the tax identifier with SAT"
				findings = append(findings, f)
			}
		case CheckDate:
			if !fv.Valid() {
				findings = append(findings, findingf(rule, rule.Criticality, rec.LineNumber, field, value, "YYYYMMDD", "unparseable date: %s", fv.ParseErr))
			}
		case CheckNumeric:
			if !fv.Valid() {
				findings = append(findings, findingf(rule, rule.Criticality, rec.LineNumber, field, value, "", "unparseable number: %s", fv.ParseErr))
				continue
			}
			if sign := rule.Params[ParamSign]; sign != "" {
				findings = append(findings, checkSign(rule, rec, fv, sign)...)
			}
		}
	}
	return findings
}

func checkSign(rule rules.Definition, rec layout.Record, fv layout.FieldValue, sign string) []Finding {
	var n decimal.Decimal
	switch fv.Kind {
	case layout.KindInteger:
		n = decimal.NewFromInt(fv.Int)
	case layout.KindDecimal:
		n = fv.Dec
	default:
		return nil
	}

	switch sign {
	case "positive":
		if n.Sign() <= 0 {
			return []Finding{findingf(rule, rule.Criticality, rec.LineNumber, fv.Name, n.String(), "> 0", "value must be positive")}
		}
	case "non_negative":
		if n.Sign() < 0 {
			return []Finding{findingf(rule, rule.Criticality, rec.LineNumber, fv.Name, n.String(), ">= 0", "value must not be negative")}
		}
	}
	return nil
}

// evalRange checks a numeric or date field against inclusive min/max params.
func evalRange(rule rules.Definition, rc *runContext) []Finding {
	field := rule.Params[ParamField]
	minS, maxS := rule.Params[ParamMin], rule.Params[ParamMax]
	var findings []Finding

	for _, rec := range rc.candidates(rule.Condition) {
		fv, ok := rec.Field(field)
		if !ok || !fv.Valid() {
			continue // parse failures belong to Format rules
		}

		switch fv.Kind {
		case layout.KindDate:
			if minS != "" {
				if min, err := time.Parse("20060102", minS); err == nil && fv.Date.Before(min) {
					findings = append(findings, findingf(rule, rule.Criticality, rec.LineNumber, field, fv.Date.Format("20060102"), ">= "+minS, "date before allowed minimum"))
				}
			}
			if maxS != "" {
				if max, err := time.Parse("20060102", maxS); err == nil && fv.Date.After(max) {
					findings = append(findings, findingf(rule, rule.Criticality, rec.LineNumber, field, fv.Date.Format("20060102"), "<= "+maxS, "date after allowed maximum"))
				}
			}
		case layout.KindInteger, layout.KindDecimal:
			n := fv.Dec
			if fv.Kind == layout.KindInteger {
				n = decimal.NewFromInt(fv.Int)
			}
			if minS != "" {
				if min, err := decimal.NewFromString(minS); err == nil && n.LessThan(min) {
					findings = append(findings, findingf(rule, rule.Criticality, rec.LineNumber, field, n.String(), ">= "+minS, "value below allowed minimum"))
				}
			}
			if maxS != "" {
				if max, err := decimal.NewFromString(maxS); err == nil && n.GreaterThan(max) {
					findings = append(findings, findingf(rule, rule.Criticality, rec.LineNumber, field, n.String(), "<= "+maxS, "value above allowed maximum"))
				}
			}
		}
	}
	return findings
}

// evalCalculation reconciles footer declarations against the detail records:
// declared count vs actual count, declared total vs summed amounts within
// the layout tolerance.
func evalCalculation(rule rules.Definition, rc *runContext) []Finding {
	if rc.footer == nil {
		// Missing footer is a structural finding; nothing to reconcile.
		return nil
	}

	switch rule.Params[ParamCheck] {
	case CheckRecordCount:
		declared, ok := rc.footer.Field(layout.FieldRecordCount)
		if !ok || !declared.Valid() {
			return []Finding{findingf(rule, rule.Criticality, rc.footer.LineNumber, layout.FieldRecordCount, strings.TrimSpace(declared.Raw), "", "declared record count is unreadable")}
		}
		actual := int64(len(rc.details))
		if declared.Int != actual {
			return []Finding{findingf(rule, rule.Criticality, rc.footer.LineNumber, layout.FieldRecordCount,
				declared.Raw, "", "declared record count %d, file contains %d detail records", declared.Int, actual)}
		}
	case CheckTotalAmount:
		field := rule.Params[ParamField]
		if field == "" {
			field = layout.FieldAmount
		}
		declared, ok := rc.footer.Field(layout.FieldTotalAmount)
		if !ok || !declared.Valid() {
			return []Finding{findingf(rule, rule.Criticality, rc.footer.LineNumber, layout.FieldTotalAmount, strings.TrimSpace(declared.Raw), "", "declared total is unreadable")}
		}

		sum := decimal.Zero
		for _, rec := range rc.details {
			if fv, ok := rec.Field(field); ok && fv.Valid() {
				sum = sum.Add(fv.Dec)
			}
		}

		tolerance := rc.lay.Tolerance
		if t := rule.Params[ParamTolerance]; t != "" {
			if d, err := decimal.NewFromString(t); err == nil {
				tolerance = d
			}
		}

		delta := declared.Dec.Sub(sum).Abs()
		if delta.GreaterThan(tolerance) {
			return []Finding{findingf(rule, rule.Criticality, rc.footer.LineNumber, layout.FieldTotalAmount,
				declared.Dec.String(), sum.String(),
				"declared total %s differs from summed detail amounts %s by %s (tolerance %s)",
				declared.Dec.String(), sum.String(), delta.String(), tolerance.String())}
		}
	}
	return nil
}

// evalLogic detects duplicate keys in a single pass. A value repeated across
// n lines yields exactly one finding naming every line.
func evalLogic(rule rules.Definition, rc *runContext) []Finding {
	if rule.Params[ParamCheck] != CheckDuplicate {
		return nil
	}
	field := rule.Params[ParamField]

	seen := make(map[string][]int)
	var order []string
	for _, rec := range rc.candidates(rule.Condition) {
		fv, ok := rec.Field(field)
		if !ok {
			continue
		}
		key := strings.TrimSpace(fv.Raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; !dup {
			order = append(order, key)
		}
		seen[key] = append(seen[key], rec.LineNumber)
	}

	var findings []Finding
	for _, key := range order {
		lines := seen[key]
		if len(lines) < 2 {
			continue
		}
		f := findingf(rule, rule.Criticality, lines[0], field, key, "",
			"duplicate %s %q on lines %s", field, key, joinInts(lines))
		f.Suggestion = "keep one record per " + field + " and resubmit"
		findings = append(findings, f)
	}
	return findings
}

// evalCatalog checks coded fields against the reference-data service. A
// lookup infrastructure failure is reported as a distinct "lookup
// unavailable" finding - never silently treated as pass or fail.
func evalCatalog(ctx context.Context, rule rules.Definition, rc *runContext, lookup catalog.Lookup, timeout time.Duration) []Finding {
	field := rule.Params[ParamField]
	catalogName := rule.Params[ParamCatalog]
	if catalogName == "" {
		catalogName = rule.Params[ParamService]
	}

	var findings []Finding
	for _, rec := range rc.candidates(rule.Condition) {
		fv, ok := rec.Field(field)
		if !ok {
			continue
		}
		code := strings.TrimSpace(fv.Raw)
		if code == "" {
			continue // emptiness is a Format concern
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		exists, err := lookup.Exists(callCtx, catalogName, code)
		cancel()

		if err != nil {
			// One unavailable finding per rule: once the service is
			// down, scanning the remaining records adds nothing.
			findings = append(findings, lookupUnavailableFinding(rule, rec.LineNumber, field, catalogName, err))
			return findings
		}
		if !exists {
			findings = append(findings, findingf(rule, rule.Criticality, rec.LineNumber, field, code,
				"a code listed in catalog "+catalogName, "code %q not found in catalog %s", code, catalogName))
		}
	}
	return findings
}

// lookupUnavailableFinding is the shared failure-isolation outcome for
// Catalog and ExternalApi rules: a Warning unless the rule itself is
// Critical.
func lookupUnavailableFinding(rule rules.Definition, line int, field, service string, err error) Finding {
	severity := domain.SeverityWarning
	if rule.Criticality == domain.SeverityCritical {
		severity = domain.SeverityCritical
	}
	f := findingf(rule, severity, line, field, "", "", "lookup unavailable: %s: %v", service, err)
	f.Suggestion = "retry validation once the service recovers"
	f.LookupUnavailable = true
	return f
}

func joinInts(ns []int) string {
	var b strings.Builder
	for i, n := range ns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
