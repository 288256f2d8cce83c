package service

import (
	"context"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
	"github.com/noah-isme/credential-ledger-api/pkg/jobs"
)

type failedJobLister interface {
	ListFailed(ctx context.Context, jobType models.JobType, limit int) ([]models.JobRecord, error)
}

type deadLetterReader interface {
	DeadLetters(ctx context.Context, queue string, limit int64) ([]jobs.Job, error)
}

// JobService surfaces exhausted jobs for manual remediation.
type JobService struct {
	records failedJobLister
	broker  deadLetterReader
}

// NewJobService constructs the service.
func NewJobService(records failedJobLister, broker deadLetterReader) *JobService {
	return &JobService{records: records, broker: broker}
}

// ListFailed returns FAILED job records, optionally filtered by type.
func (s *JobService) ListFailed(ctx context.Context, jobType models.JobType, limit int) ([]models.JobRecord, error) {
	if jobType != "" && jobType.Queue() == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown job type")
	}
	records, err := s.records.ListFailed(ctx, jobType, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list failed jobs")
	}
	if records == nil {
		records = []models.JobRecord{}
	}
	return records, nil
}

// DeadLetters returns buried envelopes of a queue.
func (s *JobService) DeadLetters(ctx context.Context, queue string, limit int64) ([]jobs.Job, error) {
	if queue != models.QueueLedger && queue != models.QueueWallets {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown queue")
	}
	if s.broker == nil {
		return []jobs.Job{}, nil
	}
	dead, err := s.broker.DeadLetters(ctx, queue, limit)
	if err != nil {
		return nil, appErrors.External(err, "failed to read dead letters")
	}
	if dead == nil {
		dead = []jobs.Job{}
	}
	return dead, nil
}
