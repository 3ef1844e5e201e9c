package worker

import (
	"context"
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"codequest/internal/common"
	"codequest/internal/common/logger"
	"codequest/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobRepo struct {
	jobs map[string]*model.EvaluationJob
}

func newFakeJobRepo(jobs ...*model.EvaluationJob) *fakeJobRepo {
	r := &fakeJobRepo{jobs: make(map[string]*model.EvaluationJob)}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *fakeJobRepo) Create(ctx context.Context, tx *sql.Tx, job *model.EvaluationJob) error {
	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

func (r *fakeJobRepo) FindByID(ctx context.Context, id string) (*model.EvaluationJob, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *j
	return &clone, nil
}

func (r *fakeJobRepo) FindBySubmissionID(ctx context.Context, submissionID string) (*model.EvaluationJob, error) {
	for _, j := range r.jobs {
		if j.SubmissionID == submissionID {
			clone := *j
			return &clone, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeJobRepo) UpdateStatus(ctx context.Context, id, status string, lastError *string) error {
	j, ok := r.jobs[id]
	if !ok {
		return common.ErrNotFound
	}
	j.Status = status
	j.LastError = lastError
	return nil
}

func (r *fakeJobRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	j, ok := r.jobs[id]
	if !ok {
		return 0, common.ErrNotFound
	}
	j.Attempts++
	return j.Attempts, nil
}

type fakeSubmissionRepo struct {
	submissions map[string]*model.Submission
}

func newFakeSubmissionRepo(subs ...*model.Submission) *fakeSubmissionRepo {
	r := &fakeSubmissionRepo{submissions: make(map[string]*model.Submission)}
	for _, s := range subs {
		r.submissions[s.ID] = s
	}
	return r
}

func (r *fakeSubmissionRepo) Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	clone := *sub
	r.submissions[sub.ID] = &clone
	return nil
}

func (r *fakeSubmissionRepo) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	s, ok := r.submissions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *fakeSubmissionRepo) List(ctx context.Context) ([]model.Submission, error) {
	return nil, nil
}

func (r *fakeSubmissionRepo) ListByUser(ctx context.Context, userID string) ([]model.Submission, error) {
	return nil, nil
}

func (r *fakeSubmissionRepo) ListByQuestion(ctx context.Context, questionID string) ([]model.Submission, error) {
	return nil, nil
}

func (r *fakeSubmissionRepo) ListByUserAndQuestion(ctx context.Context, userID, questionID string) ([]model.Submission, error) {
	return nil, nil
}

func (r *fakeSubmissionRepo) UpdateStatus(ctx context.Context, id string, status model.SubmissionStatus, feedback *string) error {
	s, ok := r.submissions[id]
	if !ok {
		return common.ErrNotFound
	}
	s.Status = status
	if feedback != nil {
		s.Feedback = feedback
	}
	return nil
}

func (r *fakeSubmissionRepo) Finish(ctx context.Context, id string, status model.SubmissionStatus, executionTime float64, results []model.TestResult, feedback string, score int) error {
	s, ok := r.submissions[id]
	if !ok {
		return common.ErrNotFound
	}
	// Mirrors the UPDATE's status guard: terminal rows stay as they are.
	if s.Status.Terminal() {
		return nil
	}
	s.Status = status
	s.ExecutionTime = &executionTime
	s.Results = results
	s.Feedback = &feedback
	s.Score = score
	return nil
}

type fakeWorkerQuestionRepo struct {
	questions map[string]*model.Question
}

func (r *fakeWorkerQuestionRepo) Create(ctx context.Context, tx *sql.Tx, q *model.Question) error {
	return nil
}
func (r *fakeWorkerQuestionRepo) Update(ctx context.Context, q *model.Question) error { return nil }
func (r *fakeWorkerQuestionRepo) Delete(ctx context.Context, id string) error         { return nil }

func (r *fakeWorkerQuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	q, ok := r.questions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return q, nil
}

func (r *fakeWorkerQuestionRepo) FindByTitleAndTopic(ctx context.Context, title, topicID string) (*model.Question, error) {
	return nil, common.ErrNotFound
}

func (r *fakeWorkerQuestionRepo) ListByTopic(ctx context.Context, topicID string) ([]model.Question, error) {
	return nil, nil
}

func (r *fakeWorkerQuestionRepo) ListByDifficulty(ctx context.Context, difficulty model.Difficulty) ([]model.Question, error) {
	return nil, nil
}

func (r *fakeWorkerQuestionRepo) ListByTopicAndDifficulty(ctx context.Context, topicID string, difficulty model.Difficulty) ([]model.Question, error) {
	return nil, nil
}

func (r *fakeWorkerQuestionRepo) List(ctx context.Context) ([]model.Question, error) {
	return nil, nil
}

type fakeWorkerLanguageRepo struct {
	languages map[string]*model.Language // keyed by slug
}

func (r *fakeWorkerLanguageRepo) Create(ctx context.Context, lang *model.Language) error { return nil }

func (r *fakeWorkerLanguageRepo) FindByID(ctx context.Context, id string) (*model.Language, error) {
	return nil, common.ErrNotFound
}

func (r *fakeWorkerLanguageRepo) FindBySlug(ctx context.Context, slug string) (*model.Language, error) {
	l, ok := r.languages[slug]
	if !ok {
		return nil, common.ErrNotFound
	}
	return l, nil
}

func (r *fakeWorkerLanguageRepo) List(ctx context.Context) ([]model.Language, error) {
	return nil, nil
}

type ratingCall struct {
	userID        string
	languageID    string
	difficulty    model.Difficulty
	success       bool
	executionTime float64
}

type stubRatingUpdater struct {
	calls []ratingCall
}

func (s *stubRatingUpdater) Update(ctx context.Context, userID, languageID string, difficulty model.Difficulty, success bool, executionTime float64) (*model.Rating, error) {
	s.calls = append(s.calls, ratingCall{userID, languageID, difficulty, success, executionTime})
	return &model.Rating{UserID: userID, LanguageID: languageID}, nil
}

type stubCompletion struct {
	available bool
	response  string
	err       error
}

func (c *stubCompletion) IsAvailable() bool { return c.available }

func (c *stubCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

type workerFixture struct {
	worker   *EvaluationWorker
	jobs     *fakeJobRepo
	subs     *fakeSubmissionRepo
	ratings  *stubRatingUpdater
	question *model.Question
	job      *model.EvaluationJob
	sub      *model.Submission
}

func newWorkerFixture(t *testing.T, completions *stubCompletion) *workerFixture {
	t.Helper()

	question := &model.Question{
		ID:          "q-1",
		Title:       "Sum Two Numbers",
		Description: "Read two integers and print their sum.",
		Difficulty:  model.DifficultyMedium,
		TestCases: []model.TestCase{
			{Input: "1 2", ExpectedOutput: "3"},
			{Input: "5 5", ExpectedOutput: "10"},
		},
		PointsValue: 20,
		TopicID:     "topic-1",
	}
	sub := &model.Submission{
		ID:           "sub-1",
		UserID:       "user-1",
		QuestionID:   "q-1",
		Code:         "print(sum(map(int, input().split())))",
		LanguageSlug: "python",
		Status:       model.StatusPending,
	}
	job := &model.EvaluationJob{ID: "job-1", SubmissionID: "sub-1", Status: model.JobStatusQueued}

	jobs := newFakeJobRepo(job)
	subs := newFakeSubmissionRepo(sub)
	ratings := &stubRatingUpdater{}

	w := &EvaluationWorker{
		jobRepo:        jobs,
		submissionRepo: subs,
		questionRepo:   &fakeWorkerQuestionRepo{questions: map[string]*model.Question{"q-1": question}},
		languageRepo:   &fakeWorkerLanguageRepo{languages: map[string]*model.Language{"python": {ID: "lang-1", Name: "Python", Slug: "python"}}},
		ratings:        ratings,
		completions:    completions,
		queueName:      "evaluation_jobs_queue",
		deadLetterName: "evaluation_jobs_dead",
		maxAttempts:    3,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		log:            logger.NewNamedLogger("evaluation-worker-test"),
	}

	return &workerFixture{worker: w, jobs: jobs, subs: subs, ratings: ratings, question: question, job: job, sub: sub}
}

func TestProcessJobAllTestsPass(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{
		available: true,
		response:  `{"results": [{"passed": true, "output": "3"}, {"passed": true, "output": "10"}]}`,
	})

	f.worker.processJob(context.Background(), "job-1")

	sub := f.subs.submissions["sub-1"]
	assert.Equal(t, model.StatusAccepted, sub.Status)
	assert.Equal(t, 20, sub.Score)
	require.Len(t, sub.Results, 2)
	assert.True(t, sub.Results[0].Passed)
	assert.Equal(t, "1 2", sub.Results[0].Input)
	require.NotNil(t, sub.ExecutionTime)
	assert.Greater(t, *sub.ExecutionTime, 0.0)
	require.NotNil(t, sub.Feedback)
	assert.NotEmpty(t, *sub.Feedback)

	assert.Equal(t, model.JobStatusCompleted, f.jobs.jobs["job-1"].Status)

	require.Len(t, f.ratings.calls, 1)
	call := f.ratings.calls[0]
	assert.Equal(t, "user-1", call.userID)
	assert.Equal(t, "lang-1", call.languageID)
	assert.Equal(t, model.DifficultyMedium, call.difficulty)
	assert.True(t, call.success)
}

func TestProcessJobFailingTestsScoreZero(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{
		available: true,
		response:  `{"results": [{"passed": true, "output": "3"}, {"passed": false, "output": "0"}]}`,
	})

	f.worker.processJob(context.Background(), "job-1")

	sub := f.subs.submissions["sub-1"]
	assert.Equal(t, model.StatusWrongAnswer, sub.Status)
	assert.Equal(t, 0, sub.Score)
	require.NotNil(t, sub.Feedback)
	assert.NotEmpty(t, *sub.Feedback)

	require.Len(t, f.ratings.calls, 1)
	assert.False(t, f.ratings.calls[0].success)
}

func TestProcessJobFallbackWhenProviderUnavailable(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{available: false})

	f.worker.processJob(context.Background(), "job-1")

	sub := f.subs.submissions["sub-1"]
	assert.True(t, sub.Status.Terminal())
	assert.Len(t, sub.Results, len(f.question.TestCases))
	for i, r := range sub.Results {
		assert.Equal(t, f.question.TestCases[i].Input, r.Input)
		assert.Equal(t, f.question.TestCases[i].ExpectedOutput, r.ExpectedOutput)
	}
	assert.Equal(t, model.JobStatusCompleted, f.jobs.jobs["job-1"].Status)
}

func TestProcessJobFallbackWhenProviderResponseMalformed(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{available: true, response: "the code looks great"})

	f.worker.processJob(context.Background(), "job-1")

	sub := f.subs.submissions["sub-1"]
	assert.True(t, sub.Status.Terminal())
	assert.Len(t, sub.Results, len(f.question.TestCases))
}

func TestProcessJobOutcomeCountMismatchFallsBack(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{
		available: true,
		response:  `{"results": [{"passed": true, "output": "3"}]}`,
	})

	f.worker.processJob(context.Background(), "job-1")

	sub := f.subs.submissions["sub-1"]
	assert.Len(t, sub.Results, len(f.question.TestCases))
}

func TestProcessJobMissingQuestionFinishesSubmission(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{})
	f.sub.QuestionID = "gone"
	f.subs.submissions["sub-1"] = f.sub

	f.worker.processJob(context.Background(), "job-1")

	sub := f.subs.submissions["sub-1"]
	assert.Equal(t, model.StatusRuntimeError, sub.Status)
	assert.Equal(t, 0, sub.Score)
	require.NotNil(t, sub.Feedback)
	assert.NotEmpty(t, *sub.Feedback)
	// A missing question is permanent, so the job is done, not retried.
	assert.Equal(t, model.JobStatusCompleted, f.jobs.jobs["job-1"].Status)
	assert.Empty(t, f.ratings.calls)
}

func TestProcessJobSkipsFinishedJob(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{})
	f.job.Status = model.JobStatusCompleted
	f.jobs.jobs["job-1"] = f.job

	f.worker.processJob(context.Background(), "job-1")

	assert.Equal(t, model.StatusPending, f.subs.submissions["sub-1"].Status)
	assert.Empty(t, f.ratings.calls)
}

func TestProcessJobTerminalSubmissionCompletesJob(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{})
	f.sub.Status = model.StatusAccepted
	f.subs.submissions["sub-1"] = f.sub

	f.worker.processJob(context.Background(), "job-1")

	assert.Equal(t, model.JobStatusCompleted, f.jobs.jobs["job-1"].Status)
	assert.Empty(t, f.ratings.calls)
}

func TestFinishLeavesTerminalSubmissionAlone(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{
		available: true,
		response:  `{"results": [{"passed": true, "output": "3"}, {"passed": true, "output": "10"}]}`,
	})

	f.worker.processJob(context.Background(), "job-1")
	require.Equal(t, model.StatusAccepted, f.subs.submissions["sub-1"].Status)

	// A retry that exhausts its attempts after the submission already landed
	// must not rewrite the outcome.
	err := f.subs.Finish(context.Background(), "sub-1", model.StatusRuntimeError, 0, nil,
		"Evaluation failed after repeated attempts.", 0)
	require.NoError(t, err)

	sub := f.subs.submissions["sub-1"]
	assert.Equal(t, model.StatusAccepted, sub.Status)
	assert.Equal(t, 20, sub.Score)
	require.Len(t, sub.Results, 2)
}

func TestGenerateFeedbackAcceptsPlainTextFromProvider(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{available: true, response: "Nice clean solution."})

	feedback := f.worker.generateFeedback(context.Background(), f.sub, f.question,
		[]model.TestResult{{Passed: true}}, model.StatusAccepted)
	assert.Equal(t, "Nice clean solution.", feedback)
}

func TestGenerateFeedbackFallbackMentionsCounts(t *testing.T) {
	f := newWorkerFixture(t, &stubCompletion{available: false})

	feedback := f.worker.generateFeedback(context.Background(), f.sub, f.question,
		[]model.TestResult{{Passed: true}, {Passed: false}}, model.StatusWrongAnswer)
	assert.Contains(t, feedback, "1 of 2")
}
