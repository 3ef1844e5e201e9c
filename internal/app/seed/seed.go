package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"codequest/internal/app/service"
	"codequest/internal/common"
	"codequest/internal/common/logger"
	"codequest/internal/domain/model"
	"codequest/internal/domain/repository"
	"codequest/internal/platform/completion"

	"go.uber.org/zap"
)

var languagesToSeed = []struct {
	Name string
	Slug string
}{
	{"Python", "python"},
	{"Java", "java"},
	{"JavaScript", "javascript"},
	{"C++", "cpp"},
}

type topicData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Seeder populates an empty database with languages, topics and one question
// per (topic, difficulty). It is idempotent: existing rows are detected and
// skipped, so it is safe to run on every boot with RUN_SEEDER=true.
type Seeder struct {
	languageService   *service.LanguageService
	topicService      *service.TopicService
	questionService   *service.QuestionService
	questionRepo      repository.QuestionRepository
	completions       completion.Client
	topicsPerLanguage int
	log               *zap.SugaredLogger
}

func NewSeeder(
	languageService *service.LanguageService,
	topicService *service.TopicService,
	questionService *service.QuestionService,
	questionRepo repository.QuestionRepository,
	completions completion.Client,
	topicsPerLanguage int,
) *Seeder {
	return &Seeder{
		languageService:   languageService,
		topicService:      topicService,
		questionService:   questionService,
		questionRepo:      questionRepo,
		completions:       completions,
		topicsPerLanguage: topicsPerLanguage,
		log:               logger.NewNamedLogger("seeder"),
	}
}

func (s *Seeder) Run(ctx context.Context) error {
	s.log.Info("Starting database seeding...")

	if err := s.seedLanguages(ctx); err != nil {
		return fmt.Errorf("seeder.Run: %w", err)
	}
	if err := s.seedTopics(ctx); err != nil {
		return fmt.Errorf("seeder.Run: %w", err)
	}
	if err := s.seedQuestions(ctx); err != nil {
		return fmt.Errorf("seeder.Run: %w", err)
	}

	s.log.Info("Database seeding completed successfully")
	return nil
}

func (s *Seeder) seedLanguages(ctx context.Context) error {
	s.log.Info("Seeding languages...")
	for _, lang := range languagesToSeed {
		existing, err := s.languageService.GetBySlug(ctx, lang.Slug)
		if err == nil {
			s.log.Infof("Language already exists: %s", existing.Name)
			continue
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}
		created, err := s.languageService.Create(ctx, lang.Name, lang.Slug)
		if err != nil {
			return err
		}
		s.log.Infof("Created language: %s", created.Name)
	}
	return nil
}

func (s *Seeder) seedTopics(ctx context.Context) error {
	s.log.Info("Seeding topics...")

	languages, err := s.languageService.List(ctx)
	if err != nil {
		return err
	}

	for _, language := range languages {
		existing, err := s.topicService.List(ctx, language.ID)
		if err != nil {
			return err
		}
		if len(existing) >= s.topicsPerLanguage {
			s.log.Infof("Skipping topics for %s, already has %d", language.Name, len(existing))
			continue
		}
		needed := s.topicsPerLanguage - len(existing)

		topics := s.generateTopics(ctx, &language, needed)
		if len(topics) == 0 {
			s.log.Warnf("No topics generated for %s", language.Name)
			continue
		}

		created := 0
		for _, t := range topics {
			if _, err := s.topicService.FindByNameAndLanguage(ctx, t.Name, language.ID); err == nil {
				continue
			} else if !errors.Is(err, common.ErrNotFound) {
				return err
			}
			if _, err := s.topicService.Create(ctx, t.Name, t.Description, language.ID); err != nil {
				if errors.Is(err, common.ErrConflict) {
					continue
				}
				return err
			}
			created++
		}
		s.log.Infof("Created %d new topics for %s", created, language.Name)
	}
	return nil
}

// generateTopics asks the completion provider for a curriculum; when the
// provider is unavailable or fails, the built-in topic lists are used, with
// numeric suffixes once the list is exhausted.
func (s *Seeder) generateTopics(ctx context.Context, language *model.Language, count int) []topicData {
	if s.completions != nil && s.completions.IsAvailable() {
		if topics := s.generateTopicsWithProvider(ctx, language, count); len(topics) > 0 {
			return topics
		}
	}

	base, ok := mockTopics[language.Slug]
	if !ok {
		base = mockTopics["python"]
	}
	topics := make([]topicData, 0, count)
	for len(topics) < count {
		for _, t := range base {
			if len(topics) >= count {
				break
			}
			name := t.Name
			if round := len(topics) / len(base); round > 0 {
				name = fmt.Sprintf("%s %d", t.Name, round+1)
			}
			topics = append(topics, topicData{Name: name, Description: t.Description})
		}
	}
	return topics
}

func (s *Seeder) generateTopicsWithProvider(ctx context.Context, language *model.Language, count int) []topicData {
	prompt := fmt.Sprintf(`You are an expert curriculum developer. Generate a list of %d core programming topics for the %s language, suitable for a learning platform. Focus on fundamental concepts progressing to slightly more advanced ones. Respond with a JSON object of the form {"topics": [{"name": "Variables", "description": "Learn how to store data using variables in %s."}, ...]} where each name is a concise topic title and each description a brief one-sentence explanation.`,
		count, language.Name, language.Name)

	raw, err := s.completions.Complete(ctx, prompt)
	if err != nil {
		s.log.Warnf("Provider topic generation for %s failed: %v", language.Name, err)
		return nil
	}

	var topics []topicData
	var parsed struct {
		Topics []topicData `json:"topics"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && len(parsed.Topics) > 0 {
		topics = parsed.Topics
	} else if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		s.log.Warnf("Provider returned unparseable topics for %s", language.Name)
		return nil
	}

	valid := topics[:0]
	for _, t := range topics {
		if t.Name != "" && t.Description != "" {
			valid = append(valid, t)
		}
	}
	if len(valid) > count {
		valid = valid[:count]
	}
	return valid
}

func (s *Seeder) seedQuestions(ctx context.Context) error {
	s.log.Info("Seeding questions...")

	topics, err := s.topicService.List(ctx, "")
	if err != nil {
		return err
	}

	created := 0
	for _, topic := range topics {
		existing, err := s.questionRepo.ListByTopic(ctx, topic.ID)
		if err != nil {
			return err
		}
		if len(existing) >= len(model.Difficulties()) {
			continue
		}
		have := make(map[model.Difficulty]bool, len(existing))
		for _, q := range existing {
			have[q.Difficulty] = true
		}

		language, err := s.languageService.Get(ctx, topic.LanguageID)
		if err != nil {
			s.log.Warnf("Could not find language for topic %q, skipping: %v", topic.Name, err)
			continue
		}

		for _, difficulty := range model.Difficulties() {
			if have[difficulty] {
				continue
			}
			question := s.questionService.Generate(ctx, &topic, language, difficulty)
			if _, err := s.questionService.EnsurePersisted(ctx, question); err != nil {
				s.log.Errorf("Failed to persist %s question for topic %q: %v", difficulty, topic.Name, err)
				continue
			}
			created++
		}
	}

	s.log.Infof("Total questions created: %d", created)
	return nil
}
