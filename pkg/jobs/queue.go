package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

// Outcome labels passed to an Observer.
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

// Observer receives per-job execution measurements.
type Observer interface {
	ObserveJob(queue, jobType, outcome string, duration time.Duration)
}

// ExhaustedFunc is invoked once a job will not be delivered again.
type ExhaustedFunc func(ctx context.Context, job Job, cause error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Concurrency    int
	MaxAttempts    int
	Backoff        Backoff
	PollTimeout    time.Duration
	PromoteEvery   time.Duration
	Logger         *zap.Logger
	Observer       Observer
	OnExhausted    ExhaustedFunc
	RecoverOnStart bool
}

// Queue is a worker pool pulling jobs of one named queue from a durable Broker.
// Concurrency 1 gives strictly serialized execution.
type Queue struct {
	name     string
	broker   Broker
	handlers map[string]Handler

	concurrency  int
	maxAttempts  int
	backoff      Backoff
	pollTimeout  time.Duration
	promoteEvery time.Duration
	logger       *zap.Logger
	observer     Observer
	onExhausted  ExhaustedFunc
	recover      bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue over broker.
func NewQueue(name string, broker Broker, cfg QueueConfig) *Queue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = FixedBackoff{Interval: time.Second}
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Second
	}
	if cfg.PromoteEvery <= 0 {
		cfg.PromoteEvery = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:         name,
		broker:       broker,
		handlers:     make(map[string]Handler),
		concurrency:  cfg.Concurrency,
		maxAttempts:  cfg.MaxAttempts,
		backoff:      cfg.Backoff,
		pollTimeout:  cfg.PollTimeout,
		promoteEvery: cfg.PromoteEvery,
		logger:       cfg.Logger.With(zap.String("queue", name)),
		observer:     cfg.Observer,
		onExhausted:  cfg.OnExhausted,
		recover:      cfg.RecoverOnStart,
	}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Handle registers the handler for a job type. Must be called before Start.
func (q *Queue) Handle(jobType string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue persists a job onto the broker. It does not require the workers to run,
// so request handlers can enqueue into a queue consumed by another process.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	job.Queue = q.name
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	if err := q.broker.Push(ctx, job); err != nil {
		return fmt.Errorf("queue %s enqueue %s: %w", q.name, job.Type, err)
	}
	q.logger.Debug("job enqueued", zap.String("job_id", job.ID), zap.String("type", job.Type))
	return nil
}

// Start recovers in-flight jobs when configured and launches the workers. Safe to call once.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return nil
	}
	if q.recover {
		n, err := q.broker.RecoverInFlight(ctx, q.name)
		if err != nil {
			return fmt.Errorf("queue %s recover: %w", q.name, err)
		}
		if n > 0 {
			q.logger.Info("recovered in-flight jobs", zap.Int("count", n))
		}
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.concurrency; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.wg.Add(1)
	go q.promoter()
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.concurrency))
	return nil
}

// Stop stops pulling and waits for in-progress jobs to return. Running handlers
// are not cancelled: a ledger call cut short may still have taken effect.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		if q.ctx.Err() != nil {
			return
		}
		job, err := q.broker.Pull(q.ctx, q.name, q.pollTimeout)
		if err != nil {
			if q.ctx.Err() != nil {
				return
			}
			q.logger.Warn("pull failed", zap.Int("worker", workerID), zap.Error(err))
			q.sleep(q.pollTimeout)
			continue
		}
		if job == nil {
			continue
		}
		q.process(*job)
	}
}

func (q *Queue) process(job Job) {
	q.mu.Lock()
	handler := q.handlers[job.Type]
	q.mu.Unlock()

	// Handlers and broker bookkeeping must survive shutdown of the worker context.
	detached := context.WithoutCancel(q.ctx)

	start := time.Now()
	var err error
	if handler == nil {
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("no handler for job type %s", job.Type))
	} else {
		err = q.invoke(detached, handler, job)
	}
	elapsed := time.Since(start)

	if err == nil {
		if ackErr := q.broker.Ack(detached, job); ackErr != nil {
			q.logger.Warn("ack failed", zap.String("job_id", job.ID), zap.Error(ackErr))
		}
		q.observe(job.Type, OutcomeCompleted, elapsed)
		return
	}

	job.Attempt++
	job.LastError = err.Error()
	if job.Attempt >= q.maxAttempts || !appErrors.IsRetryable(err) {
		q.logger.Error("job exhausted",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		if buryErr := q.broker.Bury(detached, job); buryErr != nil {
			q.logger.Error("bury failed", zap.String("job_id", job.ID), zap.Error(buryErr))
		}
		if q.onExhausted != nil {
			q.onExhausted(detached, job, err)
		}
		q.observe(job.Type, OutcomeFailed, elapsed)
		return
	}

	delay := q.backoff.Delay(job.Attempt)
	q.logger.Warn("job failed, retrying",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err),
	)
	if retryErr := q.broker.Retry(detached, job, time.Now().Add(delay)); retryErr != nil {
		q.logger.Error("failed to schedule retry", zap.String("job_id", job.ID), zap.Error(retryErr))
	}
	q.observe(job.Type, OutcomeRetried, elapsed)
}

func (q *Queue) invoke(ctx context.Context, handler Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) promoter() {
	defer q.wg.Done()
	ticker := time.NewTicker(q.promoteEvery)
	defer ticker.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := q.broker.PromoteDue(q.ctx, q.name, now); err != nil && q.ctx.Err() == nil {
				q.logger.Warn("promote delayed jobs failed", zap.Error(err))
			}
		}
	}
}

func (q *Queue) observe(jobType, outcome string, elapsed time.Duration) {
	if q.observer != nil {
		q.observer.ObserveJob(q.name, jobType, outcome, elapsed)
	}
}

func (q *Queue) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-q.ctx.Done():
	case <-timer.C:
	}
}
