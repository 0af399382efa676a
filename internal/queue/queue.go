// Package queue implements the at-least-once recording job queue on redis:
// a ready list, a processing list jobs are moved into atomically while a
// worker holds them, a lease sorted set that times out abandoned jobs, and
// a delayed sorted set for scheduled retries. A job taken by a worker that
// crashes is requeued once its lease expires, so consumers must be
// idempotent; the queue may deliver a job more than once.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meetrecap/internal/config"
	"meetrecap/internal/redis"
)

// Job is one unit of pipeline work. Attempt starts at 1.
type Job struct {
	RecordingID string `json:"recording_id"`
	Attempt     int    `json:"attempt"`
}

const (
	dedupTTL     = 24 * time.Hour
	promoteBatch = 32
	reapBatch    = 32
)

// commands is the slice of the redis client the queue uses.
type commands interface {
	LPush(ctx context.Context, key string, value interface{}) error
	BLMove(ctx context.Context, timeout time.Duration, source, destination string) (string, error)
	LRem(ctx context.Context, key string, count int64, value string) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, member string) error
	ZPopDue(ctx context.Context, key string, max float64, count int) ([]string, error)
}

type Queue struct {
	rdb        commands
	name       string
	attempts   int
	baseDelay  time.Duration
	visibility time.Duration
}

func New(rdb *redis.Client, cfg config.QueueConfig) (*Queue, error) {
	if rdb == nil {
		return nil, errors.New("redis client required")
	}
	return newWithCommands(rdb, cfg), nil
}

func newWithCommands(rdb commands, cfg config.QueueConfig) *Queue {
	return &Queue{
		rdb:        rdb,
		name:       cfg.Name,
		attempts:   cfg.Attempts,
		baseDelay:  time.Duration(cfg.BackoffSeconds) * time.Second,
		visibility: time.Duration(cfg.VisibilityTimeoutSeconds) * time.Second,
	}
}

// MaxAttempts is the whole-job retry budget.
func (q *Queue) MaxAttempts() int { return q.attempts }

func (q *Queue) readyKey() string      { return "q:" + q.name + ":ready" }
func (q *Queue) processingKey() string { return "q:" + q.name + ":processing" }
func (q *Queue) leasesKey() string     { return "q:" + q.name + ":leases" }
func (q *Queue) delayedKey() string    { return "q:" + q.name + ":delayed" }
func (q *Queue) dedupKey(recordingID string) string {
	return "q:" + q.name + ":inflight:" + recordingID
}

// Enqueue schedules processing for a recording. A recording with a job
// already in flight is not enqueued again; a burst of webhook deliveries
// yields one job. The dedup marker also keeps job payloads unique in the
// processing list, which Done and Retry rely on to remove exactly their
// own entry.
func (q *Queue) Enqueue(ctx context.Context, recordingID string) error {
	ok, err := q.rdb.SetNX(ctx, q.dedupKey(recordingID), 1, dedupTTL)
	if err != nil {
		return fmt.Errorf("enqueue dedup: %w", err)
	}
	if !ok {
		return nil
	}
	payload, err := json.Marshal(Job{RecordingID: recordingID, Attempt: 1})
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.readyKey(), payload); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Dequeue promotes due delayed jobs, requeues jobs whose lease expired, and
// then blocks up to timeout for the next ready job. The job is moved into
// the processing list and leased until Done or Retry acknowledges it; a
// worker that dies mid-job loses the lease and the job comes back. Returns
// (nil, nil) when nothing is available.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}
	if err := q.reapExpired(ctx); err != nil {
		return nil, err
	}
	raw, err := q.rdb.BLMove(ctx, timeout, q.readyKey(), q.processingKey())
	if err == redis.ErrNoJob {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	expiry := time.Now().Add(q.visibility)
	if err := q.rdb.ZAdd(ctx, q.leasesKey(), float64(expiry.Unix()), raw); err != nil {
		return nil, fmt.Errorf("lease job: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Retry acknowledges the current delivery and reschedules the job with
// exponential backoff. The caller is responsible for checking the attempt
// budget first.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	if err := q.ack(ctx, job); err != nil {
		return err
	}
	next := Job{RecordingID: job.RecordingID, Attempt: job.Attempt + 1}
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode retry: %w", err)
	}
	readyAt := time.Now().Add(RetryDelay(q.baseDelay, job.Attempt))
	if err := q.rdb.ZAdd(ctx, q.delayedKey(), float64(readyAt.Unix()), string(payload)); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// Done acknowledges the current delivery and clears the dedup marker after
// a job finishes, successfully or terminally.
func (q *Queue) Done(ctx context.Context, job *Job) error {
	if err := q.ack(ctx, job); err != nil {
		return err
	}
	if err := q.rdb.Del(ctx, q.dedupKey(job.RecordingID)); err != nil {
		return fmt.Errorf("clear dedup: %w", err)
	}
	return nil
}

// ack releases the job's processing-list entry and lease. The payload is
// re-marshaled; json.Marshal is deterministic for a fixed struct, so it
// reproduces the bytes Dequeue moved.
func (q *Queue) ack(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode ack: %w", err)
	}
	if err := q.rdb.LRem(ctx, q.processingKey(), 1, string(payload)); err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	if err := q.rdb.ZRem(ctx, q.leasesKey(), string(payload)); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

func (q *Queue) promoteDue(ctx context.Context) error {
	due, err := q.rdb.ZPopDue(ctx, q.delayedKey(), float64(time.Now().Unix()), promoteBatch)
	if err != nil {
		return fmt.Errorf("promote delayed: %w", err)
	}
	for _, payload := range due {
		if err := q.rdb.LPush(ctx, q.readyKey(), payload); err != nil {
			return fmt.Errorf("promote push: %w", err)
		}
	}
	return nil
}

// reapExpired moves jobs whose lease ran out back onto the ready list. The
// same attempt payload is requeued, so a crash does not consume attempts.
func (q *Queue) reapExpired(ctx context.Context) error {
	expired, err := q.rdb.ZPopDue(ctx, q.leasesKey(), float64(time.Now().Unix()), reapBatch)
	if err != nil {
		return fmt.Errorf("reap leases: %w", err)
	}
	for _, payload := range expired {
		if err := q.rdb.LRem(ctx, q.processingKey(), 1, payload); err != nil {
			return fmt.Errorf("reap release: %w", err)
		}
		if err := q.rdb.LPush(ctx, q.readyKey(), payload); err != nil {
			return fmt.Errorf("reap requeue: %w", err)
		}
	}
	return nil
}

// RetryDelay computes the backoff before the next attempt of a job that
// just failed on attempt n (1-based): base * 2^(n-1).
func RetryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
