package engine

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zuclubit/certus/internal/catalog"
	"github.com/zuclubit/certus/internal/layout"
	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/pkg/domain"
)

// Configured limit names. Each is a code in the compliance_limits catalog;
// its metadata carries the threshold and criticality, so limits change by
// normative update, not by release.
const (
	LimitIssuerConcentration    = "issuer_concentration"
	LimitSectorConcentration    = "sector_concentration"
	LimitCountryConcentration   = "country_concentration"
	LimitCurrencyExposure       = "currency_exposure"
	LimitInternationalAggregate = "international_aggregate"
	LimitValueAtRisk            = "var_threshold"
	LimitExpectedShortfall      = "shortfall_threshold"
)

// Limit metadata field names.
const (
	limitFieldThreshold   = "threshold"
	limitFieldCriticality = "criticality"
)

// domesticCountryCode marks positions excluded from the international
// aggregate.
const domesticCountryCode = "MEX"

var hundred = decimal.NewFromInt(100)

// evalCompliance computes portfolio-level aggregates from the detail
// records and compares them against the configured threshold. All monetary
// aggregation is fixed-point decimal; a breach finding carries both the
// computed value and the allowed threshold so the discrepancy is
// self-explanatory.
func evalCompliance(ctx context.Context, rule rules.Definition, rc *runContext, lookup catalog.Lookup, timeout time.Duration) []Finding {
	limitName := rule.Params[ParamLimit]

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	meta, err := lookup.Metadata(callCtx, catalog.CatalogLimits, limitName)
	cancel()
	if err != nil {
		return []Finding{lookupUnavailableFinding(rule, 0, "", "limit table", err)}
	}
	if meta == nil {
		return []Finding{findingf(rule, domain.SeverityWarning, 0, "", limitName, "",
			"compliance limit %q is not configured in the limit table", limitName)}
	}

	threshold, err := decimal.NewFromString(meta[limitFieldThreshold])
	if err != nil {
		return []Finding{findingf(rule, domain.SeverityWarning, 0, "", meta[limitFieldThreshold], "",
			"compliance limit %q carries an unreadable threshold", limitName)}
	}

	severity := rule.Criticality
	if s := domain.Severity(meta[limitFieldCriticality]); s.IsValid() {
		severity = s
	}

	switch limitName {
	case LimitIssuerConcentration:
		return concentrationBreaches(rule, rc, layout.FieldIssuerCode, limitName, threshold, severity)
	case LimitSectorConcentration:
		return concentrationBreaches(rule, rc, layout.FieldSectorCode, limitName, threshold, severity)
	case LimitCountryConcentration:
		return concentrationBreaches(rule, rc, layout.FieldCountryCode, limitName, threshold, severity)
	case LimitCurrencyExposure:
		return concentrationBreaches(rule, rc, layout.FieldCurrencyCode, limitName, threshold, severity)
	case LimitInternationalAggregate:
		return internationalBreach(rule, rc, threshold, severity)
	case LimitValueAtRisk:
		return headerRatioBreach(rule, rc, layout.FieldValueAtRisk, "value at risk", threshold, severity)
	case LimitExpectedShortfall:
		return headerRatioBreach(rule, rc, layout.FieldExpectedShort, "expected shortfall", threshold, severity)
	}
	return []Finding{findingf(rule, domain.SeverityWarning, 0, "", limitName, "",
		"unknown compliance limit %q", limitName)}
}

// netAssetValue reads the portfolio NAV from the header.
func (rc *runContext) netAssetValue() (decimal.Decimal, bool) {
	if rc.header == nil {
		return decimal.Zero, false
	}
	fv, ok := rc.header.Field(layout.FieldNetAssetValue)
	if !ok || !fv.Valid() || fv.Dec.Sign() <= 0 {
		return decimal.Zero, false
	}
	return fv.Dec, true
}

// concentrationBreaches sums market value per group key, divides by NAV,
// and reports every group exceeding the threshold fraction.
func concentrationBreaches(rule rules.Definition, rc *runContext, groupField, limitName string, threshold decimal.Decimal, severity domain.Severity) []Finding {
	nav, ok := rc.netAssetValue()
	if !ok {
		return []Finding{findingf(rule, rule.Criticality, 0, layout.FieldNetAssetValue, "", "> 0",
			"cannot evaluate %s: header net asset value is missing or non-positive", limitName)}
	}

	sums := make(map[string]decimal.Decimal)
	var order []string
	for _, rec := range rc.candidates(rule.Condition) {
		key, mv, ok := groupedMarketValue(rec, groupField)
		if !ok {
			continue
		}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		sums[key] = sums[key].Add(mv)
	}

	allowed := nav.Mul(threshold)
	var findings []Finding
	for _, key := range order {
		sum := sums[key]
		// Exact comparison on fixed-point values; the percentage is
		// only computed for the message.
		if sum.GreaterThan(allowed) {
			pct := sum.Div(nav).Mul(hundred).Round(4)
			limit := threshold.Mul(hundred).Round(4)
			findings = append(findings, findingf(rule, severity, 0, groupField, key,
				limit.String()+"%",
				"%s breach: %s %q holds %s%% of net assets, limit is %s%%",
				limitName, groupField, key, pct.String(), limit.String()))
		}
	}
	return findings
}

// internationalBreach checks the aggregate share of non-domestic positions.
func internationalBreach(rule rules.Definition, rc *runContext, threshold decimal.Decimal, severity domain.Severity) []Finding {
	nav, ok := rc.netAssetValue()
	if !ok {
		return []Finding{findingf(rule, rule.Criticality, 0, layout.FieldNetAssetValue, "", "> 0",
			"cannot evaluate international aggregate: header net asset value is missing or non-positive")}
	}

	sum := decimal.Zero
	for _, rec := range rc.candidates(rule.Condition) {
		key, mv, ok := groupedMarketValue(rec, layout.FieldCountryCode)
		if !ok || key == domesticCountryCode {
			continue
		}
		sum = sum.Add(mv)
	}

	if sum.GreaterThan(nav.Mul(threshold)) {
		pct := sum.Div(nav).Mul(hundred).Round(4)
		limit := threshold.Mul(hundred).Round(4)
		return []Finding{findingf(rule, severity, 0, layout.FieldCountryCode, "",
			limit.String()+"%",
			"international investment %s%% of net assets exceeds the %s%% aggregate limit",
			pct.String(), limit.String())}
	}
	return nil
}

// headerRatioBreach compares a header-level risk ratio (VaR, shortfall)
// against its threshold fraction.
func headerRatioBreach(rule rules.Definition, rc *runContext, field, label string, threshold decimal.Decimal, severity domain.Severity) []Finding {
	if rc.header == nil {
		return nil
	}
	fv, ok := rc.header.Field(field)
	if !ok || !fv.Valid() {
		return []Finding{findingf(rule, rule.Criticality, rc.header.LineNumber, field, strings.TrimSpace(fv.Raw), "",
			"%s is missing or unreadable", label)}
	}

	if fv.Dec.GreaterThan(threshold) {
		return []Finding{findingf(rule, severity, rc.header.LineNumber, field,
			fv.Dec.String(), threshold.String(),
			"%s %s exceeds the allowed threshold %s", label, fv.Dec.String(), threshold.String())}
	}
	return nil
}

func groupedMarketValue(rec layout.Record, groupField string) (string, decimal.Decimal, bool) {
	keyField, ok := rec.Field(groupField)
	if !ok {
		return "", decimal.Zero, false
	}
	mv, ok := rec.Field(layout.FieldMarketValue)
	if !ok || !mv.Valid() {
		return "", decimal.Zero, false
	}
	key := strings.TrimSpace(keyField.Raw)
	if key == "" {
		return "", decimal.Zero, false
	}
	return key, mv.Dec, true
}
