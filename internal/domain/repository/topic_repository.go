package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codequest/internal/common"
	"codequest/internal/domain/model"
)

type TopicRepository interface {
	Create(ctx context.Context, topic *model.Topic) error
	FindByID(ctx context.Context, id string) (*model.Topic, error)
	FindByNameAndLanguage(ctx context.Context, name, languageID string) (*model.Topic, error)
	ListByLanguage(ctx context.Context, languageID string) ([]model.Topic, error)
	List(ctx context.Context) ([]model.Topic, error)
}

type pgTopicRepository struct {
	db *sql.DB
}

func NewPgTopicRepository(db *sql.DB) TopicRepository {
	return &pgTopicRepository{db: db}
}

func (r *pgTopicRepository) Create(ctx context.Context, topic *model.Topic) error {
	query := `INSERT INTO topics (id, name, description, language_id) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, topic.ID, topic.Name, topic.Description, topic.LanguageID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("topic with this name already exists for the language: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTopicRepository.Create: %w", err)
	}
	return nil
}

func (r *pgTopicRepository) FindByID(ctx context.Context, id string) (*model.Topic, error) {
	query := `SELECT id, name, description, language_id, created_at FROM topics WHERE id = $1`
	topic := &model.Topic{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&topic.ID, &topic.Name, &topic.Description, &topic.LanguageID, &topic.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTopicRepository.FindByID: %w", err)
	}
	return topic, nil
}

func (r *pgTopicRepository) FindByNameAndLanguage(ctx context.Context, name, languageID string) (*model.Topic, error) {
	query := `SELECT id, name, description, language_id, created_at
	          FROM topics WHERE name = $1 AND language_id = $2`
	topic := &model.Topic{}
	err := r.db.QueryRowContext(ctx, query, name, languageID).Scan(
		&topic.ID, &topic.Name, &topic.Description, &topic.LanguageID, &topic.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTopicRepository.FindByNameAndLanguage: %w", err)
	}
	return topic, nil
}

func (r *pgTopicRepository) ListByLanguage(ctx context.Context, languageID string) ([]model.Topic, error) {
	query := `SELECT id, name, description, language_id, created_at
	          FROM topics WHERE language_id = $1 ORDER BY name ASC`
	return r.queryTopics(ctx, query, languageID)
}

func (r *pgTopicRepository) List(ctx context.Context) ([]model.Topic, error) {
	query := `SELECT id, name, description, language_id, created_at FROM topics ORDER BY name ASC`
	return r.queryTopics(ctx, query)
}

func (r *pgTopicRepository) queryTopics(ctx context.Context, query string, args ...interface{}) ([]model.Topic, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgTopicRepository query: %w", err)
	}
	defer rows.Close()

	topics := []model.Topic{}
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.LanguageID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgTopicRepository scan: %w", err)
		}
		topics = append(topics, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTopicRepository rows.Err: %w", err)
	}
	return topics, nil
}
