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

type QuestionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, question *model.Question) error
	Update(ctx context.Context, question *model.Question) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Question, error)
	FindByTitleAndTopic(ctx context.Context, title, topicID string) (*model.Question, error)
	ListByTopic(ctx context.Context, topicID string) ([]model.Question, error)
	ListByDifficulty(ctx context.Context, difficulty model.Difficulty) ([]model.Question, error)
	ListByTopicAndDifficulty(ctx context.Context, topicID string, difficulty model.Difficulty) ([]model.Question, error)
	List(ctx context.Context) ([]model.Question, error)
}

type pgQuestionRepository struct {
	db *sql.DB
}

func NewPgQuestionRepository(db *sql.DB) QuestionRepository {
	return &pgQuestionRepository{db: db}
}

const questionColumns = `id, title, description, difficulty, test_cases, solution, hints, time_limit_seconds, points_value, topic_id, created_at`

func (r *pgQuestionRepository) Create(ctx context.Context, tx *sql.Tx, q *model.Question) error {
	testCases, err := json.Marshal(q.TestCases)
	if err != nil {
		return fmt.Errorf("pgQuestionRepository.Create marshal test cases: %w", err)
	}
	hints, err := json.Marshal(q.Hints)
	if err != nil {
		return fmt.Errorf("pgQuestionRepository.Create marshal hints: %w", err)
	}

	query := `INSERT INTO questions (id, title, description, difficulty, test_cases, solution, hints, time_limit_seconds, points_value, topic_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	args := []interface{}{q.ID, q.Title, q.Description, q.Difficulty, testCases, q.Solution, hints, q.TimeLimitSeconds, q.PointsValue, q.TopicID}

	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("question with this title already exists for the topic: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgQuestionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgQuestionRepository) Update(ctx context.Context, q *model.Question) error {
	testCases, err := json.Marshal(q.TestCases)
	if err != nil {
		return fmt.Errorf("pgQuestionRepository.Update marshal test cases: %w", err)
	}
	hints, err := json.Marshal(q.Hints)
	if err != nil {
		return fmt.Errorf("pgQuestionRepository.Update marshal hints: %w", err)
	}

	query := `UPDATE questions SET
	            title = $1, description = $2, difficulty = $3, test_cases = $4,
	            solution = $5, hints = $6, time_limit_seconds = $7, points_value = $8
	          WHERE id = $9`
	res, err := r.db.ExecContext(ctx, query, q.Title, q.Description, q.Difficulty, testCases, q.Solution, hints, q.TimeLimitSeconds, q.PointsValue, q.ID)
	if err != nil {
		return fmt.Errorf("pgQuestionRepository.Update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgQuestionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgQuestionRepository.Delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgQuestionRepository) FindByID(ctx context.Context, id string) (*model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *pgQuestionRepository) FindByTitleAndTopic(ctx context.Context, title, topicID string) (*model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE title = $1 AND topic_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, title, topicID))
}

func (r *pgQuestionRepository) ListByTopic(ctx context.Context, topicID string) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE topic_id = $1 ORDER BY created_at ASC`
	return r.queryQuestions(ctx, query, topicID)
}

func (r *pgQuestionRepository) ListByDifficulty(ctx context.Context, difficulty model.Difficulty) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE difficulty = $1 ORDER BY created_at ASC`
	return r.queryQuestions(ctx, query, difficulty)
}

func (r *pgQuestionRepository) ListByTopicAndDifficulty(ctx context.Context, topicID string, difficulty model.Difficulty) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE topic_id = $1 AND difficulty = $2 ORDER BY created_at ASC`
	return r.queryQuestions(ctx, query, topicID, difficulty)
}

func (r *pgQuestionRepository) List(ctx context.Context) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions ORDER BY created_at ASC`
	return r.queryQuestions(ctx, query)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *pgQuestionRepository) scanOne(row rowScanner) (*model.Question, error) {
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgQuestionRepository scan: %w", err)
	}
	return q, nil
}

func scanQuestion(row rowScanner) (*model.Question, error) {
	q := &model.Question{}
	var (
		testCases []byte
		hints     []byte
		solution  sql.NullString
	)
	err := row.Scan(
		&q.ID, &q.Title, &q.Description, &q.Difficulty, &testCases,
		&solution, &hints, &q.TimeLimitSeconds, &q.PointsValue, &q.TopicID, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if solution.Valid {
		q.Solution = &solution.String
	}
	if len(testCases) > 0 {
		if err := json.Unmarshal(testCases, &q.TestCases); err != nil {
			return nil, fmt.Errorf("unmarshal test cases: %w", err)
		}
	}
	if len(hints) > 0 {
		if err := json.Unmarshal(hints, &q.Hints); err != nil {
			return nil, fmt.Errorf("unmarshal hints: %w", err)
		}
	}
	return q, nil
}

func (r *pgQuestionRepository) queryQuestions(ctx context.Context, query string, args ...interface{}) ([]model.Question, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgQuestionRepository query: %w", err)
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("pgQuestionRepository scan: %w", err)
		}
		questions = append(questions, *q)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgQuestionRepository rows.Err: %w", err)
	}
	return questions, nil
}
