package service

import (
	"context"

	"codequest/internal/common"
	"codequest/internal/domain/model"
	"codequest/internal/domain/repository"

	"github.com/google/uuid"
)

type TopicService struct {
	topicRepo    repository.TopicRepository
	languageRepo repository.LanguageRepository
}

func NewTopicService(topicRepo repository.TopicRepository, languageRepo repository.LanguageRepository) *TopicService {
	return &TopicService{topicRepo: topicRepo, languageRepo: languageRepo}
}

func (s *TopicService) List(ctx context.Context, languageID string) ([]model.Topic, error) {
	if languageID != "" {
		return s.topicRepo.ListByLanguage(ctx, languageID)
	}
	return s.topicRepo.List(ctx)
}

func (s *TopicService) Get(ctx context.Context, id string) (*model.Topic, error) {
	return s.topicRepo.FindByID(ctx, id)
}

func (s *TopicService) Create(ctx context.Context, name, description, languageID string) (*model.Topic, error) {
	if name == "" || languageID == "" {
		return nil, common.Errorf("topic name and language are required: %w", common.ErrBadRequest)
	}
	if _, err := s.languageRepo.FindByID(ctx, languageID); err != nil {
		return nil, common.Errorf("language not found: %w", err)
	}

	topic := &model.Topic{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		LanguageID:  languageID,
	}
	if err := s.topicRepo.Create(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// FindByNameAndLanguage is used by the seeder to keep topic creation
// idempotent alongside the storage-level uniqueness constraint.
func (s *TopicService) FindByNameAndLanguage(ctx context.Context, name, languageID string) (*model.Topic, error) {
	return s.topicRepo.FindByNameAndLanguage(ctx, name, languageID)
}
