// Package worker runs the queue consumers.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meetrecap/internal/models"
	"meetrecap/internal/queue"

	"github.com/sirupsen/logrus"
)

// Processor handles one recording job.
type Processor interface {
	Process(ctx context.Context, recordingID string) error
}

// StatusUpdater marks recordings failed once the queue gives up on them.
type StatusUpdater interface {
	UpdateRecordingStatus(ctx context.Context, id string, status models.RecordingStatus) error
}

// JobQueue is the queue surface the runner drives.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
	Done(ctx context.Context, job *queue.Job) error
	MaxAttempts() int
}

const dequeueTimeout = 5 * time.Second

// Runner consumes jobs with a fixed pool of goroutines. Jobs that keep
// failing are retried by the queue with backoff until the attempt budget
// runs out, at which point the recording is marked failed.
type Runner struct {
	queue     JobQueue
	processor Processor
	statuses  StatusUpdater
	workers   int
	log       *logrus.Entry

	wg sync.WaitGroup
}

func NewRunner(q JobQueue, p Processor, s StatusUpdater, workers int, log *logrus.Entry) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{queue: q, processor: p, statuses: s, workers: workers, log: log}
}

// Start launches the worker goroutines. They exit when ctx is canceled.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func(id int) {
			defer r.wg.Done()
			r.loop(ctx, r.log.WithField("worker", id))
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) loop(ctx context.Context, log *logrus.Entry) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := r.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		r.handle(ctx, job, log.WithFields(logrus.Fields{
			"recording_id": job.RecordingID,
			"attempt":      job.Attempt,
		}))
	}
}

func (r *Runner) handle(ctx context.Context, job *queue.Job, log *logrus.Entry) {
	err := r.runSafely(ctx, job.RecordingID)
	if err == nil {
		if err := r.queue.Done(ctx, job); err != nil {
			log.WithError(err).Error("clear job marker failed")
		}
		return
	}

	log.WithError(err).Warn("job attempt failed")

	if job.Attempt >= r.queue.MaxAttempts() {
		log.Error("attempt budget exhausted, marking recording failed")
		if err := r.statuses.UpdateRecordingStatus(ctx, job.RecordingID, models.StatusFailed); err != nil {
			log.WithError(err).Error("mark recording failed errored")
		}
		if err := r.queue.Done(ctx, job); err != nil {
			log.WithError(err).Error("clear job marker failed")
		}
		return
	}

	if err := r.queue.Retry(ctx, job); err != nil {
		log.WithError(err).Error("schedule retry failed")
	}
}

// runSafely converts a processor panic into an error so one bad job cannot
// take the worker down.
func (r *Runner) runSafely(ctx context.Context, recordingID string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return r.processor.Process(ctx, recordingID)
}
