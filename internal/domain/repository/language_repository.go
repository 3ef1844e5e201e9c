package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codequest/internal/common"
	"codequest/internal/domain/model"
)

type LanguageRepository interface {
	Create(ctx context.Context, lang *model.Language) error
	FindByID(ctx context.Context, id string) (*model.Language, error)
	FindBySlug(ctx context.Context, slug string) (*model.Language, error)
	List(ctx context.Context) ([]model.Language, error)
}

type pgLanguageRepository struct {
	db *sql.DB
}

func NewPgLanguageRepository(db *sql.DB) LanguageRepository {
	return &pgLanguageRepository{db: db}
}

func (r *pgLanguageRepository) Create(ctx context.Context, lang *model.Language) error {
	query := `INSERT INTO languages (id, name, slug) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, lang.ID, lang.Name, lang.Slug)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("language with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgLanguageRepository.Create: %w", err)
	}
	return nil
}

func (r *pgLanguageRepository) FindByID(ctx context.Context, id string) (*model.Language, error) {
	return r.findBy(ctx, "id", id)
}

func (r *pgLanguageRepository) FindBySlug(ctx context.Context, slug string) (*model.Language, error) {
	return r.findBy(ctx, "slug", slug)
}

func (r *pgLanguageRepository) findBy(ctx context.Context, column, value string) (*model.Language, error) {
	query := `SELECT id, name, slug, created_at FROM languages WHERE ` + column + ` = $1`
	lang := &model.Language{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(&lang.ID, &lang.Name, &lang.Slug, &lang.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgLanguageRepository.findBy %s: %w", column, err)
	}
	return lang, nil
}

func (r *pgLanguageRepository) List(ctx context.Context) ([]model.Language, error) {
	query := `SELECT id, name, slug, created_at FROM languages ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgLanguageRepository.List query: %w", err)
	}
	defer rows.Close()

	languages := []model.Language{}
	for rows.Next() {
		var lang model.Language
		if err := rows.Scan(&lang.ID, &lang.Name, &lang.Slug, &lang.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgLanguageRepository.List scan: %w", err)
		}
		languages = append(languages, lang)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgLanguageRepository.List rows.Err: %w", err)
	}
	return languages, nil
}
