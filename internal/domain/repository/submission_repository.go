package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"codequest/internal/common"
	"codequest/internal/domain/model"
)

type SubmissionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	FindByID(ctx context.Context, id string) (*model.Submission, error)
	List(ctx context.Context) ([]model.Submission, error)
	ListByUser(ctx context.Context, userID string) ([]model.Submission, error)
	ListByQuestion(ctx context.Context, questionID string) ([]model.Submission, error)
	ListByUserAndQuestion(ctx context.Context, userID, questionID string) ([]model.Submission, error)
	UpdateStatus(ctx context.Context, id string, status model.SubmissionStatus, feedback *string) error
	Finish(ctx context.Context, id string, status model.SubmissionStatus, executionTime float64, results []model.TestResult, feedback string, score int) error
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, user_id, question_id, code, language_slug, status, execution_time, results, feedback, score, submitted_at`

func (r *pgSubmissionRepository) Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, question_id, code, language_slug, status)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	args := []interface{}{sub.ID, sub.UserID, sub.QuestionID, sub.Code, sub.LanguageSlug, sub.Status}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	sub, err := scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) List(ctx context.Context) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions ORDER BY submitted_at DESC`
	return r.querySubmissions(ctx, query)
}

func (r *pgSubmissionRepository) ListByUser(ctx context.Context, userID string) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE user_id = $1 ORDER BY submitted_at DESC`
	return r.querySubmissions(ctx, query, userID)
}

func (r *pgSubmissionRepository) ListByQuestion(ctx context.Context, questionID string) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE question_id = $1 ORDER BY submitted_at DESC`
	return r.querySubmissions(ctx, query, questionID)
}

func (r *pgSubmissionRepository) ListByUserAndQuestion(ctx context.Context, userID, questionID string) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE user_id = $1 AND question_id = $2 ORDER BY submitted_at DESC`
	return r.querySubmissions(ctx, query, userID, questionID)
}

func (r *pgSubmissionRepository) UpdateStatus(ctx context.Context, id string, status model.SubmissionStatus, feedback *string) error {
	var err error
	if feedback != nil {
		_, err = r.db.ExecContext(ctx,
			`UPDATE submissions SET status = $1, feedback = $2 WHERE id = $3`, status, *feedback, id)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE submissions SET status = $1 WHERE id = $2`, status, id)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.UpdateStatus: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) Finish(ctx context.Context, id string, status model.SubmissionStatus, executionTime float64, results []model.TestResult, feedback string, score int) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Finish marshal results: %w", err)
	}
	// Terminal submissions are immutable; a stale retry must not rewrite an
	// outcome that already landed.
	query := `UPDATE submissions SET
	            status = $1, execution_time = $2, results = $3, feedback = $4, score = $5
	          WHERE id = $6 AND status IN ('pending', 'processing')`
	_, err = r.db.ExecContext(ctx, query, status, executionTime, resultsJSON, feedback, score, id)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Finish: %w", err)
	}
	return nil
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	sub := &model.Submission{}
	var (
		execTime sql.NullFloat64
		results  []byte
		feedback sql.NullString
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.QuestionID, &sub.Code, &sub.LanguageSlug, &sub.Status,
		&execTime, &results, &feedback, &sub.Score, &sub.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	if execTime.Valid {
		sub.ExecutionTime = &execTime.Float64
	}
	if feedback.Valid {
		sub.Feedback = &feedback.String
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &sub.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	return sub, nil
}

func (r *pgSubmissionRepository) querySubmissions(ctx context.Context, query string, args ...interface{}) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository query: %w", err)
	}
	defer rows.Close()

	submissions := []model.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository scan: %w", err)
		}
		submissions = append(submissions, *sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository rows.Err: %w", err)
	}
	return submissions, nil
}
