package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/models"
	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
	"github.com/noah-isme/credential-ledger-api/pkg/jobs"
)

type jobEnqueuer interface {
	Name() string
	Enqueue(ctx context.Context, job jobs.Job) error
}

// JobDispatcher routes typed payloads onto the queue that owns their job type.
type JobDispatcher struct {
	queues map[string]jobEnqueuer
	logger *zap.Logger
}

// NewJobDispatcher indexes queues by name.
func NewJobDispatcher(logger *zap.Logger, queues ...jobEnqueuer) *JobDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	index := make(map[string]jobEnqueuer, len(queues))
	for _, q := range queues {
		if q != nil {
			index[q.Name()] = q
		}
	}
	return &JobDispatcher{queues: index, logger: logger}
}

// Dispatch wraps payload in a job envelope and pushes it.
func (d *JobDispatcher) Dispatch(ctx context.Context, entityID string, payload models.JobPayload) (models.JobReceipt, error) {
	return d.DispatchAs(ctx, "", entityID, payload)
}

// DispatchAs pushes payload under a caller-chosen job id, or a fresh one when
// jobID is empty. The error wraps jobs.ErrAlreadyQueued when that id is still live.
func (d *JobDispatcher) DispatchAs(ctx context.Context, jobID, entityID string, payload models.JobPayload) (models.JobReceipt, error) {
	jobType := payload.JobType()
	queue, ok := d.queues[jobType.Queue()]
	if !ok {
		return models.JobReceipt{}, appErrors.Internal(fmt.Errorf("no queue for job type %s", jobType), "job queue not configured")
	}
	job, err := jobs.NewJob(string(jobType), payload)
	if err != nil {
		return models.JobReceipt{}, appErrors.Internal(err, "failed to encode job payload")
	}
	if jobID != "" {
		job.ID = jobID
	}
	if err := queue.Enqueue(ctx, job); err != nil {
		return models.JobReceipt{}, appErrors.External(err, "failed to enqueue job")
	}
	d.logger.Info("job dispatched",
		zap.String("job_id", job.ID),
		zap.String("type", string(jobType)),
		zap.String("entity_id", entityID),
	)
	return models.JobReceipt{JobID: job.ID, Type: jobType, Queue: queue.Name(), EntityID: entityID}, nil
}
