package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/akulikov/autograder/internal/core/domain"
)

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SubmissionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	rubric TEXT NOT NULL,
	points_available DOUBLE PRECISION NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS submission_files (
	id TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	kind TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	position INT NOT NULL
);

CREATE TABLE IF NOT EXISTS submission_results (
	submission_id TEXT PRIMARY KEY REFERENCES submissions(id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	files JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_submission_files_submission ON submission_files(submission_id, position);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "create submission", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO submissions (id, rubric, points_available, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, sub.ID, sub.Rubric, sub.PointsAvailable, string(sub.Status), sub.Error, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "insert submission", err)
	}

	for _, f := range sub.Files {
		_, err = tx.ExecContext(ctx, `
INSERT INTO submission_files (id, submission_id, filename, kind, storage_path, size_bytes, position)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, f.ID, sub.ID, f.Filename, string(f.Kind), f.StoragePath, f.SizeBytes, f.Position)
		if err != nil {
			return domain.WrapError(domain.ErrStoreUnavailable, "insert submission file", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "commit submission", err)
	}
	return nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, rubric, points_available, status, error_message, created_at, updated_at
FROM submissions
WHERE id = $1
`, id)

	var sub domain.Submission
	var status string
	err := row.Scan(&sub.ID, &sub.Rubric, &sub.PointsAvailable, &status, &sub.Error, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapErrorf(domain.ErrSubmissionNotFound, "get submission", "submission %s not found", id)
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "scan submission", err)
	}
	sub.Status = domain.SubmissionStatus(status)

	rows, err := r.db.QueryContext(ctx, `
SELECT id, filename, kind, storage_path, size_bytes, position
FROM submission_files
WHERE submission_id = $1
ORDER BY position
`, id)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "query submission files", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.SubmissionFile
		var kind string
		if err := rows.Scan(&f.ID, &f.Filename, &kind, &f.StoragePath, &f.SizeBytes, &f.Position); err != nil {
			return nil, domain.WrapError(domain.ErrStoreUnavailable, "scan submission file", err)
		}
		f.Kind = domain.FileKind(kind)
		sub.Files = append(sub.Files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "iterate submission files", err)
	}
	return &sub, nil
}

func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "update submission status", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapErrorf(domain.ErrSubmissionNotFound, "update submission status", "submission %s not found", id)
	}
	return nil
}

// SaveResult writes the per-file results as a JSONB document and moves the
// submission to the result's terminal status in the same transaction.
func (r *SubmissionRepository) SaveResult(ctx context.Context, result *domain.SubmissionResult) error {
	filesJSON, err := json.Marshal(result.Files)
	if err != nil {
		return fmt.Errorf("marshal file results: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "save result", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO submission_results (submission_id, status, files, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (submission_id) DO UPDATE SET status = EXCLUDED.status, files = EXCLUDED.files, created_at = EXCLUDED.created_at
`, result.SubmissionID, string(result.Status), filesJSON, result.CreatedAt)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "insert result", err)
	}

	_, err = tx.ExecContext(ctx, `
UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1
`, result.SubmissionID, string(result.Status), time.Now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "update submission after result", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "commit result", err)
	}
	return nil
}

func (r *SubmissionRepository) GetResult(ctx context.Context, submissionID string) (*domain.SubmissionResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT submission_id, status, files, created_at
FROM submission_results
WHERE submission_id = $1
`, submissionID)

	var result domain.SubmissionResult
	var status string
	var filesRaw []byte
	err := row.Scan(&result.SubmissionID, &status, &filesRaw, &result.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapErrorf(domain.ErrSubmissionNotFound, "get result", "no result for submission %s", submissionID)
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "scan result", err)
	}
	result.Status = domain.SubmissionStatus(status)
	if err := json.Unmarshal(filesRaw, &result.Files); err != nil {
		return nil, fmt.Errorf("unmarshal file results: %w", err)
	}
	return &result, nil
}
