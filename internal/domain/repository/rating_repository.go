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

type RatingRepository interface {
	Create(ctx context.Context, rating *model.Rating) error
	Update(ctx context.Context, rating *model.Rating) error
	FindByID(ctx context.Context, id string) (*model.Rating, error)
	FindByUserAndLanguage(ctx context.Context, userID, languageID string) (*model.Rating, error)
	ListByUser(ctx context.Context, userID string) ([]model.Rating, error)
	ListByLanguage(ctx context.Context, languageID string, limit int) ([]model.Rating, error)
	List(ctx context.Context) ([]model.Rating, error)
}

type pgRatingRepository struct {
	db *sql.DB
}

func NewPgRatingRepository(db *sql.DB) RatingRepository {
	return &pgRatingRepository{db: db}
}

const ratingColumns = `id, user_id, language_id, score, problems_solved, total_attempts, average_time, accuracy, difficulty_breakdown, last_updated`

func (r *pgRatingRepository) Create(ctx context.Context, rating *model.Rating) error {
	breakdown, err := json.Marshal(rating.DifficultyBreakdown)
	if err != nil {
		return fmt.Errorf("pgRatingRepository.Create marshal breakdown: %w", err)
	}
	query := `INSERT INTO ratings (id, user_id, language_id, score, problems_solved, total_attempts, average_time, accuracy, difficulty_breakdown)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.db.ExecContext(ctx, query,
		rating.ID, rating.UserID, rating.LanguageID, rating.Score, rating.ProblemsSolved,
		rating.TotalAttempts, rating.AverageTime, rating.Accuracy, breakdown,
	)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("rating for this user and language already exists: %w", common.ErrConflict)
		}
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("user or language for rating does not exist: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgRatingRepository.Create: %w", err)
	}
	return nil
}

func (r *pgRatingRepository) Update(ctx context.Context, rating *model.Rating) error {
	breakdown, err := json.Marshal(rating.DifficultyBreakdown)
	if err != nil {
		return fmt.Errorf("pgRatingRepository.Update marshal breakdown: %w", err)
	}
	query := `UPDATE ratings SET
	            score = $1, problems_solved = $2, total_attempts = $3, average_time = $4,
	            accuracy = $5, difficulty_breakdown = $6, last_updated = $7
	          WHERE id = $8`
	res, err := r.db.ExecContext(ctx, query,
		rating.Score, rating.ProblemsSolved, rating.TotalAttempts, rating.AverageTime,
		rating.Accuracy, breakdown, rating.LastUpdated, rating.ID,
	)
	if err != nil {
		return fmt.Errorf("pgRatingRepository.Update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgRatingRepository) FindByID(ctx context.Context, id string) (*model.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE id = $1`
	rating, err := scanRating(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgRatingRepository.FindByID: %w", err)
	}
	return rating, nil
}

func (r *pgRatingRepository) FindByUserAndLanguage(ctx context.Context, userID, languageID string) (*model.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE user_id = $1 AND language_id = $2`
	rating, err := scanRating(r.db.QueryRowContext(ctx, query, userID, languageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgRatingRepository.FindByUserAndLanguage: %w", err)
	}
	return rating, nil
}

func (r *pgRatingRepository) ListByUser(ctx context.Context, userID string) ([]model.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE user_id = $1 ORDER BY score DESC`
	return r.queryRatings(ctx, query, userID)
}

// ListByLanguage returns ratings for a language ordered by score descending.
// A non-positive limit returns all rows. Ties keep the storage order, which
// is stable for a fixed table state.
func (r *pgRatingRepository) ListByLanguage(ctx context.Context, languageID string, limit int) ([]model.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE language_id = $1 ORDER BY score DESC, id ASC`
	if limit > 0 {
		return r.queryRatings(ctx, query+` LIMIT $2`, languageID, limit)
	}
	return r.queryRatings(ctx, query, languageID)
}

func (r *pgRatingRepository) List(ctx context.Context) ([]model.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings ORDER BY score DESC`
	return r.queryRatings(ctx, query)
}

func scanRating(row rowScanner) (*model.Rating, error) {
	rating := &model.Rating{}
	var breakdown []byte
	err := row.Scan(
		&rating.ID, &rating.UserID, &rating.LanguageID, &rating.Score, &rating.ProblemsSolved,
		&rating.TotalAttempts, &rating.AverageTime, &rating.Accuracy, &breakdown, &rating.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &rating.DifficultyBreakdown); err != nil {
			return nil, fmt.Errorf("unmarshal difficulty breakdown: %w", err)
		}
	}
	return rating, nil
}

func (r *pgRatingRepository) queryRatings(ctx context.Context, query string, args ...interface{}) ([]model.Rating, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgRatingRepository query: %w", err)
	}
	defer rows.Close()

	ratings := []model.Rating{}
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("pgRatingRepository scan: %w", err)
		}
		ratings = append(ratings, *rating)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgRatingRepository rows.Err: %w", err)
	}
	return ratings, nil
}
