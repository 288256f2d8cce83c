package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is the transport envelope stored in the broker. Payload is decoded by the
// handler registered for Type.
type Job struct {
	ID        string          `json:"id"`
	Queue     string          `json:"queue"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"lastError,omitempty"`
	Enqueued  time.Time       `json:"enqueued"`

	raw string
}

// NewJob marshals payload into a fresh envelope.
func NewJob(jobType string, payload interface{}) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	return Job{
		ID:       uuid.NewString(),
		Type:     jobType,
		Payload:  data,
		Enqueued: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into dest.
func (j Job) Decode(dest interface{}) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s has empty payload", j.ID)
	}
	if err := json.Unmarshal(j.Payload, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

func (j Job) encode() (string, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("encode job %s: %w", j.ID, err)
	}
	return string(data), nil
}

func decodeJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode job envelope: %w", err)
	}
	job.raw = raw
	return &job, nil
}

// Handler processes a job. A returned error triggers the queue's retry policy.
type Handler func(context.Context, Job) error

// Broker is the durable transport underneath a Queue. Pull must move the job
// into an in-flight set so a crash between Pull and Ack never loses it. Push
// rejects an id that is still queued with ErrAlreadyQueued.
type Broker interface {
	Push(ctx context.Context, job Job) error
	Pull(ctx context.Context, queue string, timeout time.Duration) (*Job, error)
	Ack(ctx context.Context, job Job) error
	Retry(ctx context.Context, job Job, at time.Time) error
	Bury(ctx context.Context, job Job) error
	PromoteDue(ctx context.Context, queue string, now time.Time) (int, error)
	RecoverInFlight(ctx context.Context, queue string) (int, error)
}
