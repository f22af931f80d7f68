package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/zuclubit/certus/internal/rules"
	"github.com/zuclubit/certus/pkg/domain"
	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

// PostgresRegistry reads the rule catalog from the rule_definitions table.
// Condition trees and params are stored as JSON so the catalog stays
// data-driven; effective windows live on the row, denormalized from the
// owning normative change.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgres creates a postgres-backed registry.
func NewPostgres(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

const activeRulesQuery = `
	SELECT id, code, name, description, rule_type, criticality, file_types,
	       condition_json, params_json, category_code, regulatory_ref,
	       run_order, action, normative_change_id, effective_from, effective_to
	FROM rule_definitions
	WHERE $1 = ANY(file_types)
	  AND (effective_from IS NULL OR effective_from <= $2)
	  AND (effective_to IS NULL OR effective_to > $2)
	ORDER BY run_order ASC, code ASC
`

// ActiveRulesFor returns the ordered active rule set for a file type as of
// the given instant.
func (r *PostgresRegistry) ActiveRulesFor(ctx context.Context, ft domain.FileType, asOf time.Time) ([]rules.Definition, error) {
	rows, err := r.db.QueryContext(ctx, activeRulesQuery, string(ft), asOf)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "query active rules")
	}
	defer rows.Close()

	var defs []rules.Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "iterate active rules")
	}
	return defs, nil
}

func scanDefinition(rows *sql.Rows) (rules.Definition, error) {
	var (
		d             rules.Definition
		id            uuid.UUID
		fileTypes     pq.StringArray
		conditionJSON []byte
		paramsJSON    []byte
		changeID      uuid.NullUUID
		from, to      sql.NullTime
	)

	err := rows.Scan(&id, &d.Code, &d.Name, &d.Descr, &d.Type, &d.Criticality,
		&fileTypes, &conditionJSON, &paramsJSON, &d.CategoryCode,
		&d.RegulatoryRef, &d.RunOrder, &d.Action, &changeID, &from, &to)
	if err != nil {
		return rules.Definition{}, dErrors.Wrap(err, dErrors.CodeInternal, "scan rule definition")
	}

	d.ID = domain.RuleID(id)
	for _, ft := range fileTypes {
		d.FileTypes = append(d.FileTypes, domain.FileType(ft))
	}
	if len(conditionJSON) > 0 && string(conditionJSON) != "null" {
		var cond rules.ConditionGroup
		if err := json.Unmarshal(conditionJSON, &cond); err != nil {
			return rules.Definition{}, dErrors.Wrap(err, dErrors.CodeInternal, "decode rule condition")
		}
		d.Condition = &cond
	}
	if len(paramsJSON) > 0 && string(paramsJSON) != "null" {
		if err := json.Unmarshal(paramsJSON, &d.Params); err != nil {
			return rules.Definition{}, dErrors.Wrap(err, dErrors.CodeInternal, "decode rule params")
		}
	}
	if changeID.Valid {
		d.NormativeChangeID = domain.NormativeChangeID(changeID.UUID)
	}
	if from.Valid {
		t := from.Time
		d.EffectiveFrom = &t
	}
	if to.Valid {
		t := to.Time
		d.EffectiveTo = &t
	}
	return d, nil
}

const registerChangeStmt = `
	INSERT INTO normative_changes (id, reference, description, state, published_at, effective_from, effective_to)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, effective_to = EXCLUDED.effective_to
`

const applyChangeToRulesStmt = `
	UPDATE rule_definitions
	SET normative_change_id = $1, effective_from = $2, effective_to = $3
	WHERE code = ANY($4)
`

// RegisterChange persists a normative change and stamps its window onto the
// named rules in one transaction.
func (r *PostgresRegistry) RegisterChange(ctx context.Context, change rules.NormativeChange, ruleCodes []string) error {
	t, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "begin normative change tx")
	}
	defer func() { _ = t.Rollback() }()

	var effectiveTo any
	if change.EffectiveTo != nil {
		effectiveTo = *change.EffectiveTo
	}
	_, err = t.ExecContext(ctx, registerChangeStmt,
		uuid.UUID(change.ID), change.Reference, change.Description,
		string(change.State), change.PublishedAt, change.EffectiveFrom, effectiveTo)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "insert normative change")
	}

	if len(ruleCodes) > 0 {
		res, err := t.ExecContext(ctx, applyChangeToRulesStmt,
			uuid.UUID(change.ID), change.EffectiveFrom, effectiveTo, pq.Array(ruleCodes))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "apply change to rules")
		}
		if n, _ := res.RowsAffected(); n != int64(len(ruleCodes)) {
			return dErrors.Newf(dErrors.CodeNotFound, "normative change names %d rules, %d found", len(ruleCodes), n)
		}
	}

	return dErrors.Wrap(t.Commit(), dErrors.CodeUnavailable, "commit normative change")
}
