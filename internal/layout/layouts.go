package layout

import (
	"github.com/shopspring/decimal"

	"github.com/zuclubit/certus/pkg/domain"
)

// Field names shared across layouts. Rules address fields by these names, so
// they are part of the rule-catalog contract and must stay stable.
const (
	FieldAforeCode     = "afore_code"
	FieldFileTypeCode  = "file_type_code"
	FieldOperationDate = "operation_date"
	FieldPeriod        = "period"

	FieldNSS          = "nss"
	FieldRFC          = "rfc"
	FieldAmount       = "amount"
	FieldMovementDate = "movement_date"
	FieldMovementType = "movement_type"

	FieldInstrumentID = "instrument_id"
	FieldIssuerCode   = "issuer_code"
	FieldSectorCode   = "sector_code"
	FieldCountryCode  = "country_code"
	FieldCurrencyCode = "currency_code"
	FieldMarketValue  = "market_value"
	FieldShares       = "shares"

	FieldContractID     = "contract_id"
	FieldUnderlying     = "underlying_code"
	FieldCounterparty   = "counterparty_code"
	FieldNotional       = "notional"
	FieldMaturityDate   = "maturity_date"
	FieldOriginAfore    = "origin_afore"
	FieldDestAfore      = "destination_afore"
	FieldTransferDate   = "transfer_date"
	FieldRecordCount    = "record_count"
	FieldTotalAmount    = "total_amount"
	FieldSiefore        = "siefore_code"
	FieldValueAtRisk    = "value_at_risk"
	FieldNetAssetValue  = "net_asset_value"
	FieldExpectedShort  = "expected_shortfall"
	FieldOperationType  = "operation_type"
	FieldSettlementDate = "settlement_date"
)

// defaultTolerance is the reconciliation tolerance applied when a layout does
// not override it: one currency unit absorbs legitimate per-record rounding.
var defaultTolerance = decimal.NewFromInt(1)

// sharedHeader is identical across the four layouts: marker, AFORE code,
// file type code, operation date, reporting period.
var sharedHeader = []FieldSpec{
	{Name: FieldAforeCode, Kind: KindCode, Start: 2, Length: 3},
	{Name: FieldFileTypeCode, Kind: KindCode, Start: 5, Length: 4},
	{Name: FieldOperationDate, Kind: KindDate, Start: 9, Length: 8},
	{Name: FieldPeriod, Kind: KindCode, Start: 17, Length: 6},
}

// sharedFooter declares the detail count and control total every file closes
// with.
var sharedFooter = []FieldSpec{
	{Name: FieldRecordCount, Kind: KindInteger, Start: 2, Length: 9},
	{Name: FieldTotalAmount, Kind: KindDecimal, Start: 11, Length: 16, ImpliedDecimals: 2},
}

// builtinLayouts is the registry of supported fixed-width layouts.
var builtinLayouts = map[domain.FileType]Layout{
	domain.FileTypeCartera: {
		FileType: domain.FileTypeCartera,
		Header: append(append([]FieldSpec{}, sharedHeader...),
			FieldSpec{Name: FieldSiefore, Kind: KindCode, Start: 23, Length: 2},
			FieldSpec{Name: FieldNetAssetValue, Kind: KindDecimal, Start: 25, Length: 16, ImpliedDecimals: 2},
			FieldSpec{Name: FieldValueAtRisk, Kind: KindDecimal, Start: 41, Length: 8, ImpliedDecimals: 6},
			FieldSpec{Name: FieldExpectedShort, Kind: KindDecimal, Start: 49, Length: 8, ImpliedDecimals: 6},
		),
		Detail: []FieldSpec{
			{Name: FieldInstrumentID, Kind: KindCode, Start: 2, Length: 8},
			{Name: FieldIssuerCode, Kind: KindCode, Start: 10, Length: 7},
			{Name: FieldSectorCode, Kind: KindCode, Start: 17, Length: 3},
			{Name: FieldCountryCode, Kind: KindCode, Start: 20, Length: 3},
			{Name: FieldCurrencyCode, Kind: KindCode, Start: 23, Length: 3},
			{Name: FieldShares, Kind: KindInteger, Start: 26, Length: 12},
			{Name: FieldMarketValue, Kind: KindDecimal, Start: 38, Length: 16, ImpliedDecimals: 2},
		},
		Footer:    sharedFooter,
		Tolerance: defaultTolerance,
	},
	domain.FileTypeAportaciones: {
		FileType: domain.FileTypeAportaciones,
		Header:   sharedHeader,
		Detail: []FieldSpec{
			{Name: FieldNSS, Kind: KindCode, Start: 2, Length: 11},
			{Name: FieldRFC, Kind: KindCode, Start: 13, Length: 13},
			{Name: FieldMovementDate, Kind: KindDate, Start: 26, Length: 8},
			{Name: FieldMovementType, Kind: KindCode, Start: 34, Length: 2},
			{Name: FieldAmount, Kind: KindDecimal, Start: 36, Length: 14, ImpliedDecimals: 2},
		},
		Footer:    sharedFooter,
		Tolerance: defaultTolerance,
	},
	domain.FileTypeDerivados: {
		FileType: domain.FileTypeDerivados,
		Header:   sharedHeader,
		Detail: []FieldSpec{
			{Name: FieldContractID, Kind: KindCode, Start: 2, Length: 10},
			{Name: FieldUnderlying, Kind: KindCode, Start: 12, Length: 8},
			{Name: FieldCounterparty, Kind: KindCode, Start: 20, Length: 7},
			{Name: FieldCurrencyCode, Kind: KindCode, Start: 27, Length: 3},
			{Name: FieldMaturityDate, Kind: KindDate, Start: 30, Length: 8},
			{Name: FieldNotional, Kind: KindDecimal, Start: 38, Length: 16, ImpliedDecimals: 2},
			{Name: FieldMarketValue, Kind: KindDecimal, Start: 54, Length: 16, ImpliedDecimals: 2},
		},
		Footer:    sharedFooter,
		Tolerance: defaultTolerance,
	},
	domain.FileTypeTraspasos: {
		FileType: domain.FileTypeTraspasos,
		Header:   sharedHeader,
		Detail: []FieldSpec{
			{Name: FieldNSS, Kind: KindCode, Start: 2, Length: 11},
			{Name: FieldOriginAfore, Kind: KindCode, Start: 13, Length: 3},
			{Name: FieldDestAfore, Kind: KindCode, Start: 16, Length: 3},
			{Name: FieldTransferDate, Kind: KindDate, Start: 19, Length: 8},
			{Name: FieldOperationType, Kind: KindCode, Start: 27, Length: 2},
			{Name: FieldAmount, Kind: KindDecimal, Start: 29, Length: 14, ImpliedDecimals: 2},
		},
		Footer:    sharedFooter,
		Tolerance: defaultTolerance,
	},
}

// For returns the layout registered for a file type.
func For(ft domain.FileType) (Layout, bool) {
	l, ok := builtinLayouts[ft]
	return l, ok
}
