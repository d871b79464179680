package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job asks for the location of IP to be patched onto log row LogID
type Job struct {
	LogID int64  `json:"log_id"`
	IP    string `json:"ip"`
}

var (
	ErrQueueFull   = errors.New("geo: queue is full")
	ErrQueueClosed = errors.New("geo: queue is closed")
)

// Queue buffers jobs between the redirect path and the workers.
// Push must not block.
type Queue interface {
	Push(ctx context.Context, job Job) error
	Pop(ctx context.Context) (Job, error)
}

// MemoryQueue is a bounded in-process queue. Jobs are dropped when it is full
// and lost on restart.
type MemoryQueue struct {
	jobs chan Job
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{jobs: make(chan Job, size)}
}

func (q *MemoryQueue) Push(_ context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Len returns the number of buffered jobs
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// RedisQueue is a Redis list shared by every instance of the service.
// When the list overflows maxLen the oldest jobs are trimmed.
type RedisQueue struct {
	client      *redis.Client
	key         string
	maxLen      int64
	pushTimeout time.Duration
	pollTimeout time.Duration
}

// NewRedisQueue creates a queue on list key. maxLen bounds the list; 0 means unbounded.
func NewRedisQueue(client *redis.Client, key string, maxLen int) *RedisQueue {
	return &RedisQueue{
		client:      client,
		key:         key,
		maxLen:      int64(maxLen),
		pushTimeout: 250 * time.Millisecond,
		pollTimeout: time.Second,
	}
}

// Push appends job and trims the list in a single MULTI round trip.
// ErrQueueFull means the list overflowed and older jobs were discarded.
func (q *RedisQueue) Push(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, q.pushTimeout)
	defer cancel()

	pipe := q.client.TxPipeline()
	length := pipe.RPush(ctx, q.key, payload)
	if q.maxLen > 0 {
		pipe.LTrim(ctx, q.key, -q.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if q.maxLen > 0 && length.Val() > q.maxLen {
		return ErrQueueFull
	}
	return nil
}

// Pop blocks until a job arrives or ctx is done. It polls with a short
// BLPOP timeout so cancellation is noticed.
func (q *RedisQueue) Pop(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}

		res, err := q.client.BLPop(ctx, q.pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, err
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return Job{}, fmt.Errorf("decode job %q: %w", res[1], err)
		}
		return job, nil
	}
}
