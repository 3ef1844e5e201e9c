package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"codequest/internal/common"
	"codequest/internal/common/logger"
	"codequest/internal/domain/model"
	"codequest/internal/domain/repository"
	"codequest/internal/platform/completion"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Per-difficulty generation policy: suggested time-limit range in seconds and
// points value.
var difficultyPolicies = map[model.Difficulty]struct {
	MinTimeLimit int
	MaxTimeLimit int
	PointsValue  int
}{
	model.DifficultyEasy:   {120, 240, 10},
	model.DifficultyMedium: {300, 480, 20},
	model.DifficultyHard:   {600, 900, 30},
}

// Fallback templates used when the completion provider cannot synthesize a
// question. {{topic}} and {{language}} are substituted before use.
var questionTemplates = map[model.Difficulty]struct {
	Title       string
	Description string
	TestCases   []model.TestCase
}{
	model.DifficultyEasy: {
		Title:       "Basic {{topic}}",
		Description: "Write a simple program that demonstrates {{topic}} in {{language}}.",
		TestCases: []model.TestCase{
			{Input: "sample input", ExpectedOutput: "sample output"},
		},
	},
	model.DifficultyMedium: {
		Title:       "Intermediate {{topic}}",
		Description: "Create a more complex implementation using {{topic}} in {{language}}.",
		TestCases: []model.TestCase{
			{Input: "sample input", ExpectedOutput: "sample output"},
			{Input: "sample input 2", ExpectedOutput: "sample output 2"},
		},
	},
	model.DifficultyHard: {
		Title:       "Advanced {{topic}}",
		Description: "Solve this challenging problem using {{topic}} concepts in {{language}}.",
		TestCases: []model.TestCase{
			{Input: "sample input", ExpectedOutput: "sample output"},
			{Input: "sample input 2", ExpectedOutput: "sample output 2"},
			{Input: "sample input 3", ExpectedOutput: "sample output 3"},
		},
	},
}

type QuestionService struct {
	questionRepo repository.QuestionRepository
	topicRepo    repository.TopicRepository
	languageRepo repository.LanguageRepository
	completions  completion.Client
	log          *zap.SugaredLogger
}

func NewQuestionService(
	questionRepo repository.QuestionRepository,
	topicRepo repository.TopicRepository,
	languageRepo repository.LanguageRepository,
	completions completion.Client,
) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		topicRepo:    topicRepo,
		languageRepo: languageRepo,
		completions:  completions,
		log:          logger.NewNamedLogger("question-service"),
	}
}

// GetOrGenerate returns a question for (topicID, difficulty). Persisted
// questions win: one is picked uniformly at random. When none exist, one is
// synthesized through the completion provider, degrading to a deterministic
// template when the provider is unavailable. Generated questions are returned
// unpersisted (empty ID). The only error exposed is a missing topic or
// language.
func (s *QuestionService) GetOrGenerate(ctx context.Context, topicID string, difficulty model.Difficulty) (*model.Question, error) {
	if !difficulty.Valid() {
		return nil, common.Errorf("invalid difficulty %q: %w", difficulty, common.ErrBadRequest)
	}

	existing, err := s.questionRepo.ListByTopicAndDifficulty(ctx, topicID, difficulty)
	if err != nil {
		return nil, common.Errorf("failed to list questions: %w", err)
	}
	if len(existing) > 0 {
		// The shared top-level source is safe under concurrent handler calls.
		return &existing[rand.Intn(len(existing))], nil
	}

	topic, err := s.topicRepo.FindByID(ctx, topicID)
	if err != nil {
		return nil, common.Errorf("topic not found: %w", err)
	}
	language, err := s.languageRepo.FindByID(ctx, topic.LanguageID)
	if err != nil {
		return nil, common.Errorf("language not found for topic: %w", err)
	}

	return s.Generate(ctx, topic, language, difficulty), nil
}

// Generate synthesizes a new ephemeral question for a topic. It never fails:
// provider unavailability and malformed responses degrade to the template
// fallback.
func (s *QuestionService) Generate(ctx context.Context, topic *model.Topic, language *model.Language, difficulty model.Difficulty) *model.Question {
	if s.completions.IsAvailable() {
		if q := s.generateWithProvider(ctx, topic, language, difficulty); q != nil {
			return q
		}
	}
	return s.generateFromTemplate(topic, language, difficulty)
}

// generatedQuestion is the typed shape expected from the provider. Parsing is
// defensive: anything structurally off falls back to the template.
type generatedQuestion struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	TestCases   []model.TestCase `json:"testCases"`
	Solution    string           `json:"solution"`
	Hints       []string         `json:"hints"`
	TimeLimit   int              `json:"timeLimit"`
	PointsValue int              `json:"pointsValue"`
}

func (s *QuestionService) generateWithProvider(ctx context.Context, topic *model.Topic, language *model.Language, difficulty model.Difficulty) *model.Question {
	policy := difficultyPolicies[difficulty]
	prompt := fmt.Sprintf(`Create a coding question about %s in %s with %s difficulty level.

Return a JSON object with these fields:
- title: A concise title for the question
- description: Detailed problem description including example use cases
- testCases: Array of objects with "input" and "expectedOutput" properties (3-5 test cases)
- solution: An example correct solution in %s
- hints: Array of strings with progressive hints (2-3 hints)
- timeLimit: Suggested time limit in seconds (between %d and %d)
- pointsValue: Points worth (%d)`,
		topic.Name, language.Name, difficulty, language.Name,
		policy.MinTimeLimit, policy.MaxTimeLimit, policy.PointsValue)

	content, err := s.completions.Complete(ctx, prompt)
	if err != nil {
		s.log.Warnf("Question generation unavailable for topic %q, using template fallback: %v", topic.Name, err)
		return nil
	}

	var parsed generatedQuestion
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		s.log.Warnf("Question generation response failed to parse for topic %q: %v", topic.Name, err)
		return nil
	}
	if parsed.Title == "" || parsed.Description == "" || len(parsed.TestCases) == 0 {
		s.log.Warnf("Question generation response incomplete for topic %q", topic.Name)
		return nil
	}
	for _, tc := range parsed.TestCases {
		if tc.Input == "" && tc.ExpectedOutput == "" {
			s.log.Warnf("Question generation response has empty test cases for topic %q", topic.Name)
			return nil
		}
	}

	timeLimit := parsed.TimeLimit
	if timeLimit < policy.MinTimeLimit || timeLimit > policy.MaxTimeLimit {
		timeLimit = policy.MinTimeLimit
	}

	q := &model.Question{
		Title:            parsed.Title,
		Description:      parsed.Description,
		Difficulty:       difficulty,
		TestCases:        parsed.TestCases,
		Hints:            parsed.Hints,
		TimeLimitSeconds: timeLimit,
		PointsValue:      policy.PointsValue,
		TopicID:          topic.ID,
	}
	if parsed.Solution != "" {
		q.Solution = &parsed.Solution
	}
	return q
}

func (s *QuestionService) generateFromTemplate(topic *model.Topic, language *model.Language, difficulty model.Difficulty) *model.Question {
	template := questionTemplates[difficulty]
	policy := difficultyPolicies[difficulty]

	substitute := func(text string) string {
		text = strings.ReplaceAll(text, "{{topic}}", topic.Name)
		return strings.ReplaceAll(text, "{{language}}", language.Name)
	}

	return &model.Question{
		Title:       substitute(template.Title),
		Description: substitute(strings.ReplaceAll(template.Description, "{{topic}}", strings.ToLower(topic.Name))),
		Difficulty:  difficulty,
		TestCases:   append([]model.TestCase(nil), template.TestCases...),
		Hints: []string{
			fmt.Sprintf("Think about %s concepts in %s.", strings.ToLower(topic.Name), language.Name),
		},
		TimeLimitSeconds: policy.MinTimeLimit,
		PointsValue:      policy.PointsValue,
		TopicID:          topic.ID,
	}
}

// EnsurePersisted stores an ephemeral question, deduplicating on
// (title, topicID). An already-persisted question is returned as-is.
func (s *QuestionService) EnsurePersisted(ctx context.Context, q *model.Question) (*model.Question, error) {
	if !q.Ephemeral() {
		return q, nil
	}

	existing, err := s.questionRepo.FindByTitleAndTopic(ctx, q.Title, q.TopicID)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, common.Errorf("failed to look up question: %w", err)
	}

	q.ID = uuid.NewString()
	if err := s.questionRepo.Create(ctx, nil, q); err != nil {
		if isConflict(err) {
			// Concurrent insert of the same generated question; reuse it.
			q.ID = ""
			return s.questionRepo.FindByTitleAndTopic(ctx, q.Title, q.TopicID)
		}
		return nil, common.Errorf("failed to persist question: %w", err)
	}
	return q, nil
}

// CRUD passthroughs for explicit authoring.

type CreateQuestionRequest struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Difficulty       model.Difficulty `json:"difficulty"`
	TestCases        []model.TestCase `json:"test_cases"`
	Solution         *string          `json:"solution,omitempty"`
	Hints            []string         `json:"hints,omitempty"`
	TimeLimitSeconds int              `json:"time_limit_seconds"`
	PointsValue      int              `json:"points_value"`
	TopicID          string           `json:"topic_id"`
}

func (s *QuestionService) Create(ctx context.Context, req CreateQuestionRequest) (*model.Question, error) {
	if req.Title == "" || req.Description == "" || req.TopicID == "" || len(req.TestCases) == 0 {
		return nil, common.Errorf("missing required fields for question creation: %w", common.ErrBadRequest)
	}
	if !req.Difficulty.Valid() {
		return nil, common.Errorf("invalid difficulty %q: %w", req.Difficulty, common.ErrBadRequest)
	}
	if _, err := s.topicRepo.FindByID(ctx, req.TopicID); err != nil {
		return nil, common.Errorf("topic not found: %w", err)
	}

	policy := difficultyPolicies[req.Difficulty]
	q := &model.Question{
		ID:               uuid.NewString(),
		Title:            req.Title,
		Description:      req.Description,
		Difficulty:       req.Difficulty,
		TestCases:        req.TestCases,
		Solution:         req.Solution,
		Hints:            req.Hints,
		TimeLimitSeconds: req.TimeLimitSeconds,
		PointsValue:      req.PointsValue,
		TopicID:          req.TopicID,
	}
	if q.TimeLimitSeconds <= 0 {
		q.TimeLimitSeconds = policy.MinTimeLimit
	}
	if q.PointsValue <= 0 {
		q.PointsValue = policy.PointsValue
	}

	if err := s.questionRepo.Create(ctx, nil, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuestionService) Update(ctx context.Context, q *model.Question) error {
	return s.questionRepo.Update(ctx, q)
}

func (s *QuestionService) Delete(ctx context.Context, id string) error {
	return s.questionRepo.Delete(ctx, id)
}

func (s *QuestionService) Get(ctx context.Context, id string) (*model.Question, error) {
	return s.questionRepo.FindByID(ctx, id)
}

func (s *QuestionService) List(ctx context.Context, topicID string, difficulty model.Difficulty) ([]model.Question, error) {
	switch {
	case topicID != "" && difficulty != "":
		if !difficulty.Valid() {
			return nil, common.Errorf("invalid difficulty %q: %w", difficulty, common.ErrBadRequest)
		}
		return s.questionRepo.ListByTopicAndDifficulty(ctx, topicID, difficulty)
	case topicID != "":
		return s.questionRepo.ListByTopic(ctx, topicID)
	case difficulty != "":
		if !difficulty.Valid() {
			return nil, common.Errorf("invalid difficulty %q: %w", difficulty, common.ErrBadRequest)
		}
		return s.questionRepo.ListByDifficulty(ctx, difficulty)
	default:
		return s.questionRepo.List(ctx)
	}
}
