package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"codequest/internal/common"
	"codequest/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompletion struct {
	available bool
	response  string
	err       error
	prompts   []string
}

func (c *stubCompletion) IsAvailable() bool { return c.available }

func (c *stubCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

type fakeQuestionRepo struct {
	questions map[string]*model.Question
}

func newFakeQuestionRepo() *fakeQuestionRepo {
	return &fakeQuestionRepo{questions: make(map[string]*model.Question)}
}

func (r *fakeQuestionRepo) Create(ctx context.Context, tx *sql.Tx, q *model.Question) error {
	for _, existing := range r.questions {
		if existing.Title == q.Title && existing.TopicID == q.TopicID {
			return common.ErrConflict
		}
	}
	clone := *q
	r.questions[q.ID] = &clone
	return nil
}

func (r *fakeQuestionRepo) Update(ctx context.Context, q *model.Question) error {
	if _, ok := r.questions[q.ID]; !ok {
		return common.ErrNotFound
	}
	clone := *q
	r.questions[q.ID] = &clone
	return nil
}

func (r *fakeQuestionRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.questions[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.questions, id)
	return nil
}

func (r *fakeQuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	q, ok := r.questions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *q
	return &clone, nil
}

func (r *fakeQuestionRepo) FindByTitleAndTopic(ctx context.Context, title, topicID string) (*model.Question, error) {
	for _, q := range r.questions {
		if q.Title == title && q.TopicID == topicID {
			clone := *q
			return &clone, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeQuestionRepo) ListByTopic(ctx context.Context, topicID string) ([]model.Question, error) {
	var out []model.Question
	for _, q := range r.questions {
		if q.TopicID == topicID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) ListByDifficulty(ctx context.Context, difficulty model.Difficulty) ([]model.Question, error) {
	var out []model.Question
	for _, q := range r.questions {
		if q.Difficulty == difficulty {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) ListByTopicAndDifficulty(ctx context.Context, topicID string, difficulty model.Difficulty) ([]model.Question, error) {
	var out []model.Question
	for _, q := range r.questions {
		if q.TopicID == topicID && q.Difficulty == difficulty {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) List(ctx context.Context) ([]model.Question, error) {
	var out []model.Question
	for _, q := range r.questions {
		out = append(out, *q)
	}
	return out, nil
}

type fakeTopicRepo struct {
	topics map[string]*model.Topic
}

func newFakeTopicRepo(topics ...*model.Topic) *fakeTopicRepo {
	r := &fakeTopicRepo{topics: make(map[string]*model.Topic)}
	for _, t := range topics {
		r.topics[t.ID] = t
	}
	return r
}

func (r *fakeTopicRepo) Create(ctx context.Context, topic *model.Topic) error {
	for _, t := range r.topics {
		if t.Name == topic.Name && t.LanguageID == topic.LanguageID {
			return common.ErrConflict
		}
	}
	clone := *topic
	r.topics[topic.ID] = &clone
	return nil
}

func (r *fakeTopicRepo) FindByID(ctx context.Context, id string) (*model.Topic, error) {
	t, ok := r.topics[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTopicRepo) FindByNameAndLanguage(ctx context.Context, name, languageID string) (*model.Topic, error) {
	for _, t := range r.topics {
		if t.Name == name && t.LanguageID == languageID {
			clone := *t
			return &clone, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeTopicRepo) ListByLanguage(ctx context.Context, languageID string) ([]model.Topic, error) {
	var out []model.Topic
	for _, t := range r.topics {
		if t.LanguageID == languageID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTopicRepo) List(ctx context.Context) ([]model.Topic, error) {
	var out []model.Topic
	for _, t := range r.topics {
		out = append(out, *t)
	}
	return out, nil
}

type fakeLanguageRepo struct {
	languages map[string]*model.Language
}

func newFakeLanguageRepo(languages ...*model.Language) *fakeLanguageRepo {
	r := &fakeLanguageRepo{languages: make(map[string]*model.Language)}
	for _, l := range languages {
		r.languages[l.ID] = l
	}
	return r
}

func (r *fakeLanguageRepo) Create(ctx context.Context, lang *model.Language) error {
	for _, l := range r.languages {
		if l.Slug == lang.Slug {
			return common.ErrConflict
		}
	}
	clone := *lang
	r.languages[lang.ID] = &clone
	return nil
}

func (r *fakeLanguageRepo) FindByID(ctx context.Context, id string) (*model.Language, error) {
	l, ok := r.languages[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *l
	return &clone, nil
}

func (r *fakeLanguageRepo) FindBySlug(ctx context.Context, slug string) (*model.Language, error) {
	for _, l := range r.languages {
		if l.Slug == slug {
			clone := *l
			return &clone, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeLanguageRepo) List(ctx context.Context) ([]model.Language, error) {
	var out []model.Language
	for _, l := range r.languages {
		out = append(out, *l)
	}
	return out, nil
}

var (
	testLanguage = &model.Language{ID: "lang-1", Name: "Python", Slug: "python"}
	testTopic    = &model.Topic{ID: "topic-1", Name: "Recursion", Description: "Functions that call themselves.", LanguageID: "lang-1"}
)

func newTestQuestionService(questionRepo *fakeQuestionRepo, completions *stubCompletion) *QuestionService {
	return NewQuestionService(questionRepo, newFakeTopicRepo(testTopic), newFakeLanguageRepo(testLanguage), completions)
}

func TestGetOrGenerateReturnsExistingQuestion(t *testing.T) {
	repo := newFakeQuestionRepo()
	existing := &model.Question{
		ID:         "q-1",
		Title:      "Sum of Digits",
		Difficulty: model.DifficultyEasy,
		TopicID:    "topic-1",
	}
	repo.questions[existing.ID] = existing

	s := newTestQuestionService(repo, &stubCompletion{})

	q, err := s.GetOrGenerate(context.Background(), "topic-1", model.DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, "q-1", q.ID)
}

func TestGetOrGenerateConcurrentCalls(t *testing.T) {
	repo := newFakeQuestionRepo()
	for _, id := range []string{"q-1", "q-2", "q-3"} {
		repo.questions[id] = &model.Question{
			ID:         id,
			Title:      "Question " + id,
			Difficulty: model.DifficultyEasy,
			TopicID:    "topic-1",
		}
	}
	s := newTestQuestionService(repo, &stubCompletion{})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				q, err := s.GetOrGenerate(context.Background(), "topic-1", model.DifficultyEasy)
				assert.NoError(t, err)
				assert.NotEmpty(t, q.ID)
			}
		}()
	}
	wg.Wait()
}

func TestGetOrGenerateRejectsInvalidDifficulty(t *testing.T) {
	s := newTestQuestionService(newFakeQuestionRepo(), &stubCompletion{})

	_, err := s.GetOrGenerate(context.Background(), "topic-1", "brutal")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrBadRequest))
}

func TestGetOrGenerateUnknownTopic(t *testing.T) {
	s := newTestQuestionService(newFakeQuestionRepo(), &stubCompletion{})

	_, err := s.GetOrGenerate(context.Background(), "nope", model.DifficultyEasy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestGenerateTemplateFallbackWhenProviderUnavailable(t *testing.T) {
	s := newTestQuestionService(newFakeQuestionRepo(), &stubCompletion{available: false})

	q, err := s.GetOrGenerate(context.Background(), "topic-1", model.DifficultyEasy)
	require.NoError(t, err)
	assert.True(t, q.Ephemeral())
	assert.Equal(t, "Basic Recursion", q.Title)
	assert.Contains(t, q.Description, "recursion")
	assert.Contains(t, q.Description, "Python")
	assert.Equal(t, model.DifficultyEasy, q.Difficulty)
	assert.Len(t, q.TestCases, 1)
	assert.Equal(t, 120, q.TimeLimitSeconds)
	assert.Equal(t, 10, q.PointsValue)
	require.Len(t, q.Hints, 1)
	assert.Contains(t, q.Hints[0], "recursion")
}

func TestGenerateTemplateScalesWithDifficulty(t *testing.T) {
	s := newTestQuestionService(newFakeQuestionRepo(), &stubCompletion{available: false})

	medium, err := s.GetOrGenerate(context.Background(), "topic-1", model.DifficultyMedium)
	require.NoError(t, err)
	assert.Equal(t, "Intermediate Recursion", medium.Title)
	assert.Len(t, medium.TestCases, 2)
	assert.Equal(t, 300, medium.TimeLimitSeconds)
	assert.Equal(t, 20, medium.PointsValue)

	hard, err := s.GetOrGenerate(context.Background(), "topic-1", model.DifficultyHard)
	require.NoError(t, err)
	assert.Equal(t, "Advanced Recursion", hard.Title)
	assert.Len(t, hard.TestCases, 3)
	assert.Equal(t, 600, hard.TimeLimitSeconds)
	assert.Equal(t, 30, hard.PointsValue)
}

func TestGenerateUsesProviderResponse(t *testing.T) {
	completions := &stubCompletion{
		available: true,
		response: `{
			"title": "Reverse a Linked List",
			"description": "Given the head of a singly linked list, reverse it.",
			"testCases": [{"input": "1 2 3", "expectedOutput": "3 2 1"}],
			"solution": "def reverse(head): ...",
			"hints": ["Walk the list once.", "Keep three pointers."],
			"timeLimit": 400,
			"pointsValue": 99
		}`,
	}
	s := newTestQuestionService(newFakeQuestionRepo(), completions)

	q, err := s.GetOrGenerate(context.Background(), "topic-1", model.DifficultyMedium)
	require.NoError(t, err)
	assert.True(t, q.Ephemeral())
	assert.Equal(t, "Reverse a Linked List", q.Title)
	require.Len(t, q.TestCases, 1)
	assert.Equal(t, "3 2 1", q.TestCases[0].ExpectedOutput)
	assert.Equal(t, 400, q.TimeLimitSeconds)
	// Points always follow the difficulty policy, not the provider.
	assert.Equal(t, 20, q.PointsValue)
	require.NotNil(t, q.Solution)
	assert.Len(t, completions.prompts, 1)
}

func TestGenerateClampsOutOfRangeTimeLimit(t *testing.T) {
	completions := &stubCompletion{
		available: true,
		response: `{
			"title": "T",
			"description": "D",
			"testCases": [{"input": "a", "expectedOutput": "b"}],
			"timeLimit": 9999
		}`,
	}
	s := newTestQuestionService(newFakeQuestionRepo(), completions)

	q, err := s.GetOrGenerate(context.Background(), "topic-1", model.DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, 120, q.TimeLimitSeconds)
}

func TestGenerateFallsBackOnMalformedProviderResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "sure, here is a question about recursion!"},
		{"missing fields", `{"title": "X"}`},
		{"empty test case", `{"title": "X", "description": "Y", "testCases": [{"input": "", "expectedOutput": ""}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestQuestionService(newFakeQuestionRepo(), &stubCompletion{available: true, response: tt.response})
			q, err := s.GetOrGenerate(context.Background(), "topic-1", model.DifficultyEasy)
			require.NoError(t, err)
			assert.Equal(t, "Basic Recursion", q.Title)
		})
	}
}

func TestEnsurePersistedAssignsIDAndDedupes(t *testing.T) {
	repo := newFakeQuestionRepo()
	s := newTestQuestionService(repo, &stubCompletion{})
	ctx := context.Background()

	q := &model.Question{
		Title:      "Basic Recursion",
		Difficulty: model.DifficultyEasy,
		TestCases:  []model.TestCase{{Input: "a", ExpectedOutput: "b"}},
		TopicID:    "topic-1",
	}
	persisted, err := s.EnsurePersisted(ctx, q)
	require.NoError(t, err)
	assert.NotEmpty(t, persisted.ID)

	// Persisting the same generated question again reuses the stored row.
	dup := &model.Question{Title: "Basic Recursion", TopicID: "topic-1"}
	again, err := s.EnsurePersisted(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, persisted.ID, again.ID)
	assert.Len(t, repo.questions, 1)
}

func TestEnsurePersistedLeavesStoredQuestionAlone(t *testing.T) {
	repo := newFakeQuestionRepo()
	s := newTestQuestionService(repo, &stubCompletion{})

	q := &model.Question{ID: "q-9", Title: "Stored", TopicID: "topic-1"}
	persisted, err := s.EnsurePersisted(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "q-9", persisted.ID)
	assert.Empty(t, repo.questions)
}

func TestCreateQuestionValidatesAndDefaults(t *testing.T) {
	repo := newFakeQuestionRepo()
	s := newTestQuestionService(repo, &stubCompletion{})
	ctx := context.Background()

	_, err := s.Create(ctx, CreateQuestionRequest{Title: "X"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrBadRequest))

	q, err := s.Create(ctx, CreateQuestionRequest{
		Title:       "Manual Question",
		Description: "Authored by an admin.",
		Difficulty:  model.DifficultyHard,
		TestCases:   []model.TestCase{{Input: "1", ExpectedOutput: "1"}},
		TopicID:     "topic-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 600, q.TimeLimitSeconds)
	assert.Equal(t, 30, q.PointsValue)
	assert.NotEmpty(t, q.ID)
}
