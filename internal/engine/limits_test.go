package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zuclubit/certus/internal/catalog"
	"github.com/zuclubit/certus/internal/catalog/mocks"
	"github.com/zuclubit/certus/internal/layout"
	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/pkg/domain"
)

// CARTERA fixture: NAV 1,000,000.00, VaR 0.007, shortfall 0.009. ISSUERA
// holds 7% of net assets, ISSUERB 4% split across two positions, of which
// 1% sits outside MEX.
const (
	carteraHeader  = "01001CART2025013120250101" + "0000000100000000" + "00007000" + "00009000"
	carteraDetail1 = "02INST0001ISSUERAS01MEXMXN000000001000" + "0000000007000000"
	carteraDetail2 = "02INST0002ISSUERBS02MEXMXN000000002000" + "0000000003000000"
	carteraDetail3 = "02INST0003ISSUERBS02USAUSD000000000500" + "0000000001000000"
	carteraFooter  = "09000000003" + "0000000011000000"
)

func carteraContext(t *testing.T, lines ...string) *runContext {
	t.Helper()
	lay, ok := layout.For(domain.FileTypeCartera)
	require.True(t, ok)
	raw := []byte(strings.Join(lines, "\n"))
	records, structural := layout.Decode(raw, domain.FileTypeCartera)
	return newRunContext("CARTERA_GODE561231GR8_20250131_001.txt", domain.FileTypeCartera, lay, records, structural)
}

func complianceRule(limitName string) rules.Definition {
	return rules.Definition{
		ID:          domain.NewRuleID(),
		Code:        "LIM-" + limitName,
		Type:        rules.TypeCompliance,
		Criticality: domain.SeverityError,
		FileTypes:   []domain.FileType{domain.FileTypeCartera},
		Params:      map[string]string{ParamLimit: limitName},
	}
}

func limitLookup(limitName, threshold, criticality string) *catalog.InMemoryLookup {
	l := catalog.NewInMemory()
	l.Add(catalog.CatalogLimits, limitName, catalog.Fields{
		"threshold":   threshold,
		"criticality": criticality,
	})
	return l
}

func TestIssuerConcentrationBreach(t *testing.T) {
	rc := carteraContext(t, carteraHeader, carteraDetail1, carteraDetail2, carteraDetail3, carteraFooter)
	lookup := limitLookup(LimitIssuerConcentration, "0.05", "error")

	findings := evalCompliance(context.Background(), complianceRule(LimitIssuerConcentration), rc, lookup, lookupTimeout)

	// ISSUERA at 7% breaches the 5% cap; ISSUERB at 4% does not.
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityError, findings[0].Severity)
	assert.Equal(t, layout.FieldIssuerCode, findings[0].Field)
	assert.Equal(t, "ISSUERA", findings[0].Value)
	assert.Equal(t, "5%", findings[0].Expected)
	assert.Contains(t, findings[0].Message, "holds 7% of net assets")
	assert.Contains(t, findings[0].Message, "limit is 5%")
}

func TestIssuerConcentrationWithinLimit(t *testing.T) {
	rc := carteraContext(t, carteraHeader, carteraDetail1, carteraDetail2, carteraDetail3, carteraFooter)
	lookup := limitLookup(LimitIssuerConcentration, "0.10", "error")

	assert.Empty(t, evalCompliance(context.Background(), complianceRule(LimitIssuerConcentration), rc, lookup, lookupTimeout))
}

func TestConcentrationSeverityFromLimitTable(t *testing.T) {
	rc := carteraContext(t, carteraHeader, carteraDetail1, carteraDetail2, carteraDetail3, carteraFooter)
	lookup := limitLookup(LimitIssuerConcentration, "0.05", "critical")

	findings := evalCompliance(context.Background(), complianceRule(LimitIssuerConcentration), rc, lookup, lookupTimeout)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityCritical, findings[0].Severity)
}

func TestInternationalAggregate(t *testing.T) {
	rc := carteraContext(t, carteraHeader, carteraDetail1, carteraDetail2, carteraDetail3, carteraFooter)

	t.Run("within limit", func(t *testing.T) {
		lookup := limitLookup(LimitInternationalAggregate, "0.20", "error")
		assert.Empty(t, evalCompliance(context.Background(), complianceRule(LimitInternationalAggregate), rc, lookup, lookupTimeout))
	})

	t.Run("breach reports aggregate share", func(t *testing.T) {
		lookup := limitLookup(LimitInternationalAggregate, "0.005", "error")
		findings := evalCompliance(context.Background(), complianceRule(LimitInternationalAggregate), rc, lookup, lookupTimeout)

		require.Len(t, findings, 1)
		assert.Contains(t, findings[0].Message, "international investment 1%")
		assert.Contains(t, findings[0].Message, "0.5% aggregate limit")
	})
}

func TestValueAtRiskThreshold(t *testing.T) {
	rc := carteraContext(t, carteraHeader, carteraDetail1, carteraFooter)

	t.Run("at threshold passes", func(t *testing.T) {
		lookup := limitLookup(LimitValueAtRisk, "0.007", "critical")
		assert.Empty(t, evalCompliance(context.Background(), complianceRule(LimitValueAtRisk), rc, lookup, lookupTimeout))
	})

	t.Run("above threshold fails", func(t *testing.T) {
		lookup := limitLookup(LimitValueAtRisk, "0.0065", "critical")
		findings := evalCompliance(context.Background(), complianceRule(LimitValueAtRisk), rc, lookup, lookupTimeout)

		require.Len(t, findings, 1)
		assert.Equal(t, domain.SeverityCritical, findings[0].Severity)
		assert.Equal(t, "0.007", findings[0].Value)
		assert.Equal(t, "0.0065", findings[0].Expected)
	})
}

func TestConcentrationWithoutNetAssetValue(t *testing.T) {
	// APORTACIONES-shaped context has no NAV header field.
	rc := aportContext(t, aportHeader, aportDetail1, aportFooter)
	lookup := limitLookup(LimitIssuerConcentration, "0.05", "error")

	findings := evalCompliance(context.Background(), complianceRule(LimitIssuerConcentration), rc, lookup, lookupTimeout)

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "net asset value is missing")
}

func TestComplianceLimitNotConfigured(t *testing.T) {
	rc := carteraContext(t, carteraHeader, carteraDetail1, carteraFooter)
	lookup := catalog.NewInMemory()

	findings := evalCompliance(context.Background(), complianceRule(LimitIssuerConcentration), rc, lookup, lookupTimeout)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityWarning, findings[0].Severity)
	assert.Contains(t, findings[0].Message, "not configured")
}

func TestComplianceLimitTableUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	lookup := mocks.NewMockLookup(ctrl)
	lookup.EXPECT().
		Metadata(gomock.Any(), catalog.CatalogLimits, LimitIssuerConcentration).
		Return(nil, errors.New("connection reset"))

	rc := carteraContext(t, carteraHeader, carteraDetail1, carteraFooter)
	findings := evalCompliance(context.Background(), complianceRule(LimitIssuerConcentration), rc, lookup, lookupTimeout)

	require.Len(t, findings, 1)
	assert.True(t, findings[0].LookupUnavailable)
	assert.Equal(t, domain.SeverityWarning, findings[0].Severity)
}
