package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres. The owner_id column is plain text:
// it must accept both the canonical account id and legacy email owners
// without schema rejection.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis job.
func (r *PGRepo) Create(ctx context.Context, job AnalysisJob) error {
	const query = `
INSERT INTO analysis_jobs (
	id, owner_id, upload_id, title, document_refs, source_document_count,
	status, progress, result, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	refsPayload, err := marshalJSONB(job.DocumentRefs)
	if err != nil {
		return err
	}
	resultPayload, err := marshalJSONB(job.Result)
	if err != nil {
		return err
	}
	updatedAt := job.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = job.CreatedAt
	}
	_, err = r.DB.ExecContext(ctx, query,
		job.ID,
		job.OwnerID,
		nullString(job.UploadID),
		job.Title,
		refsPayload,
		job.SourceDocumentCount,
		job.Status,
		job.Progress,
		resultPayload,
		job.CreatedAt,
		updatedAt,
	)
	return err
}

// GetByID returns a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (AnalysisJob, error) {
	const query = `
SELECT id, owner_id, upload_id, title, document_refs, source_document_count,
       status, progress, result, created_at, updated_at, completed_at
FROM analysis_jobs
WHERE id = $1
LIMIT 1`
	return scanJob(r.DB.QueryRowContext(ctx, query, jobID))
}

// UpdateProgress raises the progress checkpoint of a processing job.
func (r *PGRepo) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	const query = `
UPDATE analysis_jobs
SET progress = GREATEST(progress, $2), updated_at = NOW()
WHERE id = $1 AND status = 'processing'`
	res, err := r.DB.ExecContext(ctx, query, jobID, progress)
	if err != nil {
		return err
	}
	return checkUpdated(ctx, r.DB, res, jobID)
}

// Complete transitions a processing job to completed with its result.
func (r *PGRepo) Complete(ctx context.Context, jobID string, result map[string]any, completedAt time.Time) error {
	const query = `
UPDATE analysis_jobs
SET status = 'completed', progress = 100, result = $2, completed_at = $3, updated_at = NOW()
WHERE id = $1 AND status = 'processing'`
	payload, err := marshalJSONB(result)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, jobID, payload, completedAt)
	if err != nil {
		return err
	}
	return checkUpdated(ctx, r.DB, res, jobID)
}

// Fail transitions a processing job to failed with a diagnostic payload.
func (r *PGRepo) Fail(ctx context.Context, jobID string, result map[string]any, completedAt time.Time) error {
	const query = `
UPDATE analysis_jobs
SET status = 'failed', result = $2, completed_at = $3, updated_at = NOW()
WHERE id = $1 AND status = 'processing'`
	payload, err := marshalJSONB(result)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, jobID, payload, completedAt)
	if err != nil {
		return err
	}
	return checkUpdated(ctx, r.DB, res, jobID)
}

// ListByOwner returns jobs for an owner, newest first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]AnalysisJob, error) {
	const query = `
SELECT id, owner_id, upload_id, title, document_refs, source_document_count,
       status, progress, result, created_at, updated_at, completed_at
FROM analysis_jobs
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]AnalysisJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a job, reporting whether a row was deleted.
func (r *PGRepo) Delete(ctx context.Context, jobID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM analysis_jobs WHERE id = $1`, jobID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (AnalysisJob, error) {
	var job AnalysisJob
	var uploadID sql.NullString
	var refs sql.NullString
	var result sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&uploadID,
		&job.Title,
		&refs,
		&job.SourceDocumentCount,
		&job.Status,
		&job.Progress,
		&result,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AnalysisJob{}, ErrNotFound
		}
		return AnalysisJob{}, err
	}
	if uploadID.Valid {
		job.UploadID = uploadID.String
	}
	if refs.Valid && refs.String != "" {
		if err := json.Unmarshal([]byte(refs.String), &job.DocumentRefs); err != nil {
			return AnalysisJob{}, err
		}
	}
	if result.Valid && result.String != "" {
		if err := json.Unmarshal([]byte(result.String), &job.Result); err != nil {
			return AnalysisJob{}, err
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

// checkUpdated distinguishes a missing row from a terminal one when a guarded
// update touched nothing.
func checkUpdated(ctx context.Context, db *sql.DB, res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var status string
	err = db.QueryRowContext(ctx, `SELECT status FROM analysis_jobs WHERE id = $1`, jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status == StatusCompleted || status == StatusFailed {
		return ErrTerminal
	}
	return nil
}

func marshalJSONB(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
