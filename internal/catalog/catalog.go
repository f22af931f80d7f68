// Package catalog defines the read-only reference-data contract the engine
// consumes. Catalog management is outside the system boundary; the engine
// only asks whether a code exists and what metadata it carries.
package catalog

import "context"

// Well-known catalog names referenced by rule params and the compliance
// limit table.
const (
	CatalogAfores      = "afores"
	CatalogBanks       = "banks"
	CatalogInstruments = "instruments"
	CatalogIssuers     = "issuers"
	CatalogSectors     = "sectors"
	CatalogCountries   = "countries"
	CatalogCurrencies  = "currencies"
	CatalogMovements   = "movement_types"
	// CatalogLimits holds the compliance thresholds. Sourced here, not
	// hardcoded, because limits change by normative update.
	CatalogLimits = "compliance_limits"
)

// Fields is the metadata attached to one catalog entry.
type Fields map[string]string

//go:generate mockgen -source=catalog.go -destination=mocks/mocks.go -package=mocks Lookup

// Lookup is the reference-data service contract. Implementations must be
// safe for concurrent use; the engine fans rules out in parallel.
//
// A lookup failure (network, timeout) is an error return, never a false:
// the engine reports "lookup unavailable" distinctly from "code invalid".
type Lookup interface {
	Exists(ctx context.Context, catalogName, code string) (bool, error)
	Metadata(ctx context.Context, catalogName, code string) (Fields, error)
}
