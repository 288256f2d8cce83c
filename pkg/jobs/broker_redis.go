package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// promoteDueScript moves due members of the delayed set onto the ready list atomically.
// KEYS[1] = delayed zset, KEYS[2] = ready list
// ARGV[1] = now (unix millis), ARGV[2] = batch size
var promoteDueScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
    redis.call("ZREM", KEYS[1], member)
    redis.call("LPUSH", KEYS[2], member)
end
return #due
`)

// pushScript enqueues a job unless its id is already live in the queue.
// KEYS[1] = live id set, KEYS[2] = ready list
// ARGV[1] = job id, ARGV[2] = encoded job
var pushScript = redis.NewScript(`
if redis.call("SADD", KEYS[1], ARGV[1]) == 0 then
    return 0
end
redis.call("LPUSH", KEYS[2], ARGV[2])
return 1
`)

const promoteBatch = 100

// ErrAlreadyQueued is returned by Push when a job with the same id is still
// ready, delayed or in flight.
var ErrAlreadyQueued = errors.New("job already queued")

// RedisBroker keeps each queue in five keys: a ready list, an in-flight list fed by
// BLMOVE, a delayed sorted set scored by due time, a dead-letter list and the set
// of live job ids. An id leaves the live set on Ack or Bury.
type RedisBroker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBroker constructs a broker namespaced by prefix.
func NewRedisBroker(client redis.UniversalClient, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = "jobs"
	}
	return &RedisBroker{client: client, prefix: prefix}
}

func (b *RedisBroker) key(queue, kind string) string {
	return fmt.Sprintf("%s:%s:%s", b.prefix, queue, kind)
}

// Push appends a job to the ready list of its queue. Pushing an id that is
// still live returns ErrAlreadyQueued and leaves the queue unchanged.
func (b *RedisBroker) Push(ctx context.Context, job Job) error {
	if job.Queue == "" {
		return fmt.Errorf("job %s has no queue", job.ID)
	}
	raw, err := job.encode()
	if err != nil {
		return err
	}
	keys := []string{b.key(job.Queue, "ids"), b.key(job.Queue, "ready")}
	added, err := pushScript.Run(ctx, b.client, keys, job.ID, raw).Int()
	if err != nil {
		return fmt.Errorf("redis push %s: %w", job.Queue, err)
	}
	if added == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, job.ID)
	}
	return nil
}

// Pull blocks up to timeout for the next job. It returns nil, nil when the queue is idle.
func (b *RedisBroker) Pull(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	raw, err := b.client.BLMove(ctx, b.key(queue, "ready"), b.key(queue, "processing"), "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis pull %s: %w", queue, err)
	}
	job, err := decodeJob(raw)
	if err != nil {
		// Unreadable entries are parked so they cannot block the queue.
		b.client.LRem(ctx, b.key(queue, "processing"), 1, raw)
		b.client.LPush(ctx, b.key(queue, "dead"), raw)
		return nil, err
	}
	return job, nil
}

// Ack removes a finished job from the in-flight list.
func (b *RedisBroker) Ack(ctx context.Context, job Job) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, b.key(job.Queue, "processing"), 1, job.raw)
		pipe.SRem(ctx, b.key(job.Queue, "ids"), job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis ack %s: %w", job.ID, err)
	}
	return nil
}

// Retry schedules job for redelivery at the given time.
func (b *RedisBroker) Retry(ctx context.Context, job Job, at time.Time) error {
	raw, err := job.encode()
	if err != nil {
		return err
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, b.key(job.Queue, "processing"), 1, job.raw)
		pipe.ZAdd(ctx, b.key(job.Queue, "delayed"), redis.Z{Score: float64(at.UnixMilli()), Member: raw})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis retry %s: %w", job.ID, err)
	}
	return nil
}

// Bury moves a job that exhausted its attempts to the dead-letter list.
func (b *RedisBroker) Bury(ctx context.Context, job Job) error {
	raw, err := job.encode()
	if err != nil {
		return err
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, b.key(job.Queue, "processing"), 1, job.raw)
		pipe.LPush(ctx, b.key(job.Queue, "dead"), raw)
		pipe.SRem(ctx, b.key(job.Queue, "ids"), job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis bury %s: %w", job.ID, err)
	}
	return nil
}

// PromoteDue moves delayed jobs whose due time has passed back to the ready list.
func (b *RedisBroker) PromoteDue(ctx context.Context, queue string, now time.Time) (int, error) {
	keys := []string{b.key(queue, "delayed"), b.key(queue, "ready")}
	moved, err := promoteDueScript.Run(ctx, b.client, keys, strconv.FormatInt(now.UnixMilli(), 10), promoteBatch).Int()
	if err != nil {
		return 0, fmt.Errorf("redis promote %s: %w", queue, err)
	}
	return moved, nil
}

// RecoverInFlight returns jobs left in the in-flight list by a crashed process to
// the ready list. Call it only before this process starts pulling from queue.
func (b *RedisBroker) RecoverInFlight(ctx context.Context, queue string) (int, error) {
	recovered := 0
	for {
		err := b.client.LMove(ctx, b.key(queue, "processing"), b.key(queue, "ready"), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("redis recover %s: %w", queue, err)
		}
		recovered++
	}
}

// DeadLetters lists buried jobs for operator inspection.
func (b *RedisBroker) DeadLetters(ctx context.Context, queue string, limit int64) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	raws, err := b.client.LRange(ctx, b.key(queue, "dead"), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis dead letters %s: %w", queue, err)
	}
	result := make([]Job, 0, len(raws))
	for _, raw := range raws {
		job, err := decodeJob(raw)
		if err != nil {
			continue
		}
		result = append(result, *job)
	}
	return result, nil
}
