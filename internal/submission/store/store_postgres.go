package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zuclubit/certus/internal/engine"
	"github.com/zuclubit/certus/internal/submission/models"
	"github.com/zuclubit/certus/pkg/domain"
	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
	"github.com/zuclubit/certus/pkg/platform/tx"
)

// PostgresStore persists submissions in PostgreSQL. Raw file content lives
// in a side table so listing submissions never drags file bodies along.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Transact opens one transaction for fn. Store methods called inside fn
// join it through the context, as does the audit outbox store, so a chain
// transition and its audit event commit atomically.
func (s *PostgresStore) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Within(ctx, s.db, fn)
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const insertSubmissionStmt = `
INSERT INTO submissions (
	id, tenant_id, file_name, file_type, period, uploaded_at, status,
	total_records, valid_records, error_records, warning_records,
	version_number, original_submission_id, correction_reason
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const insertContentStmt = `
INSERT INTO submission_content (submission_id, raw) VALUES ($1, $2)`

func (s *PostgresStore) Create(ctx context.Context, sub *models.Submission, raw []byte) error {
	return tx.Within(ctx, s.db, func(ctx context.Context) error {
		return s.insert(ctx, sub, raw)
	})
}

func (s *PostgresStore) insert(ctx context.Context, sub *models.Submission, raw []byte) error {
	ex := s.execer(ctx)
	_, err := ex.ExecContext(ctx, insertSubmissionStmt,
		sub.ID.String(), sub.TenantID.String(), sub.FileName, sub.FileType.String(),
		sub.Period, sub.UploadedAt, sub.Status.String(),
		sub.TotalRecords, sub.ValidRecords, sub.ErrorRecords, sub.WarningRecords,
		sub.VersionNumber, sub.OriginalSubmissionID.String(), sub.CorrectionReason,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	if _, err := ex.ExecContext(ctx, insertContentStmt, sub.ID.String(), raw); err != nil {
		return fmt.Errorf("insert submission content: %w", err)
	}
	return nil
}

const submissionColumns = `
	id, tenant_id, file_name, file_type, period, uploaded_at, status,
	total_records, valid_records, error_records, warning_records,
	version_number, original_submission_id, correction_reason,
	superseded_at, superseded_by`

const getSubmissionQuery = `
SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

func (s *PostgresStore) Get(ctx context.Context, id domain.SubmissionID) (*models.Submission, error) {
	row := s.db.QueryRowContext(ctx, getSubmissionQuery, id.String())
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "submission %s not found", id)
	}
	return sub, err
}

const getContentQuery = `
SELECT raw FROM submission_content WHERE submission_id = $1`

func (s *PostgresStore) Content(ctx context.Context, id domain.SubmissionID) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, getContentQuery, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "submission %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission content: %w", err)
	}
	return raw, nil
}

const chainQuery = `
SELECT ` + submissionColumns + `
FROM submissions
WHERE original_submission_id = $1
ORDER BY version_number`

func (s *PostgresStore) Chain(ctx context.Context, originalID domain.SubmissionID) ([]*models.Submission, error) {
	rows, err := s.db.QueryContext(ctx, chainQuery, originalID.String())
	if err != nil {
		return nil, fmt.Errorf("list chain: %w", err)
	}
	defer rows.Close()

	var out []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chain: %w", err)
	}
	if len(out) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no chain rooted at %s", originalID)
	}
	return out, nil
}

const updateResultStmt = `
UPDATE submissions
SET status = $2, total_records = $3, valid_records = $4,
	error_records = $5, warning_records = $6
WHERE id = $1`

const upsertOutcomesStmt = `
INSERT INTO submission_results (submission_id, result)
VALUES ($1, $2)
ON CONFLICT (submission_id) DO UPDATE SET result = EXCLUDED.result`

func (s *PostgresStore) UpdateResult(ctx context.Context, sub *models.Submission, result engine.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode validation result: %w", err)
	}
	return tx.Within(ctx, s.db, func(ctx context.Context) error {
		ex := s.execer(ctx)
		res, err := ex.ExecContext(ctx, updateResultStmt, sub.ID.String(),
			sub.Status.String(), sub.TotalRecords, sub.ValidRecords,
			sub.ErrorRecords, sub.WarningRecords)
		if err != nil {
			return fmt.Errorf("update submission result: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return dErrors.Newf(dErrors.CodeNotFound, "submission %s not found", sub.ID)
		}
		if _, err := ex.ExecContext(ctx, upsertOutcomesStmt, sub.ID.String(), payload); err != nil {
			return fmt.Errorf("store validation outcomes: %w", err)
		}
		return nil
	})
}

const getResultQuery = `
SELECT result FROM submission_results WHERE submission_id = $1`

func (s *PostgresStore) Result(ctx context.Context, id domain.SubmissionID) (*engine.Result, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, getResultQuery, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no validation result for submission %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get validation result: %w", err)
	}
	var result engine.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode validation result: %w", err)
	}
	return &result, nil
}

const supersedeStmt = `
UPDATE submissions
SET superseded_at = $2, superseded_by = $3
WHERE id = $1 AND superseded_at IS NULL`

// Supersede retires prior and inserts successor in one transaction. The
// superseded_at IS NULL guard makes the head check and the update a single
// atomic statement: two racing corrections cannot both retire the same
// head.
func (s *PostgresStore) Supersede(ctx context.Context, prior *models.Submission, successor *models.Submission, raw []byte, at time.Time) error {
	return tx.Within(ctx, s.db, func(ctx context.Context) error {
		ex := s.execer(ctx)
		res, err := ex.ExecContext(ctx, supersedeStmt, prior.ID.String(), at, successor.ID.String())
		if err != nil {
			return fmt.Errorf("supersede submission: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("supersede submission: %w", err)
		}
		if n == 0 {
			return dErrors.Newf(dErrors.CodeConflict, "submission %s is no longer the chain head", prior.ID)
		}
		return s.insert(ctx, successor, raw)
	})
}

const activeByPeriodQuery = `
SELECT ` + submissionColumns + `
FROM submissions
WHERE tenant_id = $1 AND period = $2 AND file_type = $3 AND superseded_at IS NULL
ORDER BY uploaded_at DESC
LIMIT 1`

func (s *PostgresStore) ActiveByPeriod(ctx context.Context, tenantID domain.TenantID, period string, ft domain.FileType) (*models.Submission, []byte, error) {
	row := s.db.QueryRowContext(ctx, activeByPeriodQuery, tenantID.String(), period, ft.String())
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	raw, err := s.Content(ctx, sub.ID)
	if err != nil {
		return nil, nil, err
	}
	return sub, raw, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub          models.Submission
		id           string
		tenant       string
		fileType     string
		status       string
		originalID   string
		supersededAt sql.NullTime
		supersededBy sql.NullString
	)
	err := row.Scan(&id, &tenant, &sub.FileName, &fileType, &sub.Period,
		&sub.UploadedAt, &status,
		&sub.TotalRecords, &sub.ValidRecords, &sub.ErrorRecords, &sub.WarningRecords,
		&sub.VersionNumber, &originalID, &sub.CorrectionReason,
		&supersededAt, &supersededBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}

	if sub.ID, err = domain.ParseSubmissionID(id); err != nil {
		return nil, fmt.Errorf("scan submission id: %w", err)
	}
	if sub.TenantID, err = domain.ParseTenantID(tenant); err != nil {
		return nil, fmt.Errorf("scan submission tenant: %w", err)
	}
	if sub.OriginalSubmissionID, err = domain.ParseSubmissionID(originalID); err != nil {
		return nil, fmt.Errorf("scan submission chain root: %w", err)
	}
	sub.FileType = domain.FileType(fileType)
	sub.Status = domain.SubmissionStatus(status)
	if supersededAt.Valid {
		t := supersededAt.Time
		sub.SupersededAt = &t
	}
	if supersededBy.Valid {
		by, err := domain.ParseSubmissionID(supersededBy.String)
		if err != nil {
			return nil, fmt.Errorf("scan superseded_by: %w", err)
		}
		sub.SupersededByID = &by
	}
	return &sub, nil
}
