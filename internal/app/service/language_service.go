package service

import (
	"context"

	"codequest/internal/common"
	"codequest/internal/domain/model"
	"codequest/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type LanguageService struct {
	languageRepo repository.LanguageRepository
}

func NewLanguageService(languageRepo repository.LanguageRepository) *LanguageService {
	return &LanguageService{languageRepo: languageRepo}
}

func (s *LanguageService) List(ctx context.Context) ([]model.Language, error) {
	return s.languageRepo.List(ctx)
}

func (s *LanguageService) Get(ctx context.Context, id string) (*model.Language, error) {
	return s.languageRepo.FindByID(ctx, id)
}

func (s *LanguageService) GetBySlug(ctx context.Context, languageSlug string) (*model.Language, error) {
	return s.languageRepo.FindBySlug(ctx, languageSlug)
}

// Create registers a language. The slug is derived from the name unless one
// is given explicitly (e.g. "cpp" for "C++").
func (s *LanguageService) Create(ctx context.Context, name, languageSlug string) (*model.Language, error) {
	if name == "" {
		return nil, common.Errorf("language name is required: %w", common.ErrBadRequest)
	}
	if languageSlug == "" {
		languageSlug = slug.Make(name)
	}
	lang := &model.Language{
		ID:   uuid.NewString(),
		Name: name,
		Slug: languageSlug,
	}
	if err := s.languageRepo.Create(ctx, lang); err != nil {
		return nil, err
	}
	return lang, nil
}
