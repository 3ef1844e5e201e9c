package service

import (
	"context"
	"database/sql"

	"codequest/internal/common"
	"codequest/internal/common/logger"
	"codequest/internal/domain/model"
	"codequest/internal/domain/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SubmissionService struct {
	submissionRepo  repository.SubmissionRepository
	languageRepo    repository.LanguageRepository
	questionService *QuestionService
	enqueuer        Enqueuer
	db              *sql.DB // For transactions
	log             *zap.SugaredLogger
}

func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	languageRepo repository.LanguageRepository,
	questionService *QuestionService,
	enqueuer Enqueuer,
	db *sql.DB,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo:  submissionRepo,
		languageRepo:    languageRepo,
		questionService: questionService,
		enqueuer:        enqueuer,
		db:              db,
		log:             logger.NewNamedLogger("submission-service"),
	}
}

type CreateSubmissionRequest struct {
	QuestionID string `json:"question_id,omitempty"`
	// Question carries an ephemeral (not yet persisted) question the learner
	// received from the provisioner. It is persisted before the submission
	// references it.
	Question     *model.Question `json:"question,omitempty"`
	Code         string          `json:"code"`
	LanguageSlug string          `json:"language_slug"`
}

// Create records a pending submission and enqueues its evaluation job in one
// transaction. The returned submission is still pending; callers poll for the
// terminal result.
func (s *SubmissionService) Create(ctx context.Context, userID string, req CreateSubmissionRequest) (*model.Submission, error) {
	if req.Code == "" || req.LanguageSlug == "" {
		return nil, common.Errorf("code and language_slug are required: %w", common.ErrBadRequest)
	}

	if _, err := s.languageRepo.FindBySlug(ctx, req.LanguageSlug); err != nil {
		return nil, common.Errorf("language not found: %w", err)
	}

	questionID := req.QuestionID
	if questionID == "" {
		if req.Question == nil {
			return nil, common.Errorf("question_id or question payload required: %w", common.ErrBadRequest)
		}
		persisted, err := s.questionService.EnsurePersisted(ctx, req.Question)
		if err != nil {
			return nil, err
		}
		questionID = persisted.ID
	} else if _, err := s.questionService.Get(ctx, questionID); err != nil {
		return nil, common.Errorf("question not found: %w", err)
	}

	submission := &model.Submission{
		ID:           uuid.NewString(),
		UserID:       userID,
		QuestionID:   questionID,
		Code:         req.Code,
		LanguageSlug: req.LanguageSlug,
		Status:       model.StatusPending,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.submissionRepo.Create(ctx, tx, submission); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}

	job, err := s.enqueuer.EnqueueEvaluationJob(ctx, tx, submission.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.enqueuer.Publish(ctx, job.ID); err != nil {
		// The job row exists but never reached the queue; a recovery sweep
		// can requeue rows stuck in "queued". Surfacing the error here would
		// discard an already-committed submission.
		s.log.Errorf("Submission %s committed but job %s publish failed: %v", submission.ID, job.ID, err)
	} else {
		s.log.Infof("Submission %s created and job %s enqueued", submission.ID, job.ID)
	}
	return submission, nil
}

func (s *SubmissionService) Get(ctx context.Context, id string) (*model.Submission, error) {
	return s.submissionRepo.FindByID(ctx, id)
}

func (s *SubmissionService) List(ctx context.Context, userID, questionID string) ([]model.Submission, error) {
	switch {
	case userID != "" && questionID != "":
		return s.submissionRepo.ListByUserAndQuestion(ctx, userID, questionID)
	case userID != "":
		return s.submissionRepo.ListByUser(ctx, userID)
	case questionID != "":
		return s.submissionRepo.ListByQuestion(ctx, questionID)
	default:
		return s.submissionRepo.List(ctx)
	}
}
