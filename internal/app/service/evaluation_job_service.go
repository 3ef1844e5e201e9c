package service

import (
	"context"
	"database/sql"

	"codequest/internal/common"
	"codequest/internal/common/logger"
	"codequest/internal/domain/model"
	"codequest/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Enqueuer creates an evaluation job for a submission. The job row must join
// the caller's transaction; the queue push happens after commit via Publish.
type Enqueuer interface {
	EnqueueEvaluationJob(ctx context.Context, tx *sql.Tx, submissionID string) (*model.EvaluationJob, error)
	Publish(ctx context.Context, jobID string) error
}

type EvaluationJobService struct {
	jobRepo   repository.EvaluationJobRepository
	rdb       *redis.Client
	queueName string
	log       *zap.SugaredLogger
}

func NewEvaluationJobService(jobRepo repository.EvaluationJobRepository, rdb *redis.Client, queueName string) *EvaluationJobService {
	return &EvaluationJobService{
		jobRepo:   jobRepo,
		rdb:       rdb,
		queueName: queueName,
		log:       logger.NewNamedLogger("evaluation-job-service"),
	}
}

// EnqueueEvaluationJob creates the job record inside the caller's
// transaction. The job becomes visible to the worker only once Publish is
// called after the transaction commits, so a rollback never leaves a queued
// ID pointing at a missing row.
func (s *EvaluationJobService) EnqueueEvaluationJob(ctx context.Context, tx *sql.Tx, submissionID string) (*model.EvaluationJob, error) {
	job := &model.EvaluationJob{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		Status:       model.JobStatusQueued,
	}
	if err := s.jobRepo.Create(ctx, tx, job); err != nil {
		return nil, common.Errorf("failed to create evaluation job: %w", err)
	}
	return job, nil
}

func (s *EvaluationJobService) Publish(ctx context.Context, jobID string) error {
	if err := s.rdb.LPush(ctx, s.queueName, jobID).Err(); err != nil {
		return common.Errorf("failed to push job ID to queue: %w", err)
	}
	s.log.Infof("Evaluation job %s enqueued", jobID)
	return nil
}
