package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codequest/internal/common"
	"codequest/internal/domain/model"
)

type EvaluationJobRepository interface {
	Create(ctx context.Context, tx *sql.Tx, job *model.EvaluationJob) error
	FindByID(ctx context.Context, id string) (*model.EvaluationJob, error)
	FindBySubmissionID(ctx context.Context, submissionID string) (*model.EvaluationJob, error)
	UpdateStatus(ctx context.Context, id, status string, lastError *string) error
	IncrementAttempts(ctx context.Context, id string) (int, error)
}

type pgEvaluationJobRepository struct {
	db *sql.DB
}

func NewPgEvaluationJobRepository(db *sql.DB) EvaluationJobRepository {
	return &pgEvaluationJobRepository{db: db}
}

func (r *pgEvaluationJobRepository) Create(ctx context.Context, tx *sql.Tx, job *model.EvaluationJob) error {
	query := `INSERT INTO evaluation_jobs (id, submission_id, status, attempts)
	          VALUES ($1, $2, $3, $4)`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, job.ID, job.SubmissionID, job.Status, job.Attempts)
	} else {
		_, err = r.db.ExecContext(ctx, query, job.ID, job.SubmissionID, job.Status, job.Attempts)
	}
	if err != nil {
		return fmt.Errorf("pgEvaluationJobRepository.Create: %w", err)
	}
	return nil
}

func (r *pgEvaluationJobRepository) FindByID(ctx context.Context, id string) (*model.EvaluationJob, error) {
	query := `SELECT id, submission_id, status, attempts, last_error, created_at, updated_at
	          FROM evaluation_jobs WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *pgEvaluationJobRepository) FindBySubmissionID(ctx context.Context, submissionID string) (*model.EvaluationJob, error) {
	query := `SELECT id, submission_id, status, attempts, last_error, created_at, updated_at
	          FROM evaluation_jobs WHERE submission_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, submissionID))
}

func (r *pgEvaluationJobRepository) scanOne(row rowScanner) (*model.EvaluationJob, error) {
	job := &model.EvaluationJob{}
	var lastError sql.NullString
	err := row.Scan(&job.ID, &job.SubmissionID, &job.Status, &job.Attempts, &lastError, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgEvaluationJobRepository scan: %w", err)
	}
	if lastError.Valid {
		job.LastError = &lastError.String
	}
	return job, nil
}

func (r *pgEvaluationJobRepository) UpdateStatus(ctx context.Context, id, status string, lastError *string) error {
	query := `UPDATE evaluation_jobs SET status = $1, last_error = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, lastError, id)
	if err != nil {
		return fmt.Errorf("pgEvaluationJobRepository.UpdateStatus: %w", err)
	}
	return nil
}

// IncrementAttempts bumps the attempt counter atomically and returns the new
// value.
func (r *pgEvaluationJobRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query := `UPDATE evaluation_jobs SET attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $1 RETURNING attempts`
	var attempts int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("pgEvaluationJobRepository.IncrementAttempts: %w", err)
	}
	return attempts, nil
}
