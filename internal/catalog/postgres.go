package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresLookup reads reference data from the catalog_entries table.
// Catalog content is loaded by operational tooling; this side only reads.
type PostgresLookup struct {
	db *sql.DB
}

func NewPostgresLookup(db *sql.DB) *PostgresLookup {
	return &PostgresLookup{db: db}
}

const existsQuery = `
SELECT EXISTS (SELECT 1 FROM catalog_entries WHERE catalog = $1 AND code = $2)`

func (l *PostgresLookup) Exists(ctx context.Context, catalogName, code string) (bool, error) {
	var exists bool
	if err := l.db.QueryRowContext(ctx, existsQuery, catalogName, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("catalog exists %s/%s: %w", catalogName, code, err)
	}
	return exists, nil
}

const metadataQuery = `
SELECT fields FROM catalog_entries WHERE catalog = $1 AND code = $2`

func (l *PostgresLookup) Metadata(ctx context.Context, catalogName, code string) (Fields, error) {
	var payload []byte
	err := l.db.QueryRowContext(ctx, metadataQuery, catalogName, code).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog metadata %s/%s: %w", catalogName, code, err)
	}
	f := Fields{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, fmt.Errorf("catalog metadata %s/%s: %w", catalogName, code, err)
		}
	}
	return f, nil
}
