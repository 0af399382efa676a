package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"meetrecap/internal/models"
	"meetrecap/internal/queue"

	"github.com/sirupsen/logrus"
)

type fakeJobQueue struct {
	maxAttempts int
	retried     []*queue.Job
	done        []*queue.Job
}

func (f *fakeJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	return nil, nil
}

func (f *fakeJobQueue) Retry(ctx context.Context, job *queue.Job) error {
	f.retried = append(f.retried, job)
	return nil
}

func (f *fakeJobQueue) Done(ctx context.Context, job *queue.Job) error {
	f.done = append(f.done, job)
	return nil
}

func (f *fakeJobQueue) MaxAttempts() int { return f.maxAttempts }

type fakeProcessor struct {
	err    error
	panics bool
	calls  int
}

func (f *fakeProcessor) Process(ctx context.Context, recordingID string) error {
	f.calls++
	if f.panics {
		panic("transcoder blew up")
	}
	return f.err
}

type fakeStatuses struct {
	updates map[string]models.RecordingStatus
}

func (f *fakeStatuses) UpdateRecordingStatus(ctx context.Context, id string, status models.RecordingStatus) error {
	if f.updates == nil {
		f.updates = map[string]models.RecordingStatus{}
	}
	f.updates[id] = status
	return nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestRunner(p *fakeProcessor) (*Runner, *fakeJobQueue, *fakeStatuses) {
	q := &fakeJobQueue{maxAttempts: 5}
	s := &fakeStatuses{}
	return NewRunner(q, p, s, 1, testLogger()), q, s
}

func TestHandleSuccessAcksJob(t *testing.T) {
	r, q, s := newTestRunner(&fakeProcessor{})
	job := &queue.Job{RecordingID: "rec-1", Attempt: 1}

	r.handle(context.Background(), job, testLogger())

	if len(q.done) != 1 {
		t.Fatalf("expected 1 done call, got %d", len(q.done))
	}
	if len(q.retried) != 0 {
		t.Error("successful job must not be retried")
	}
	if len(s.updates) != 0 {
		t.Error("successful job must not touch recording status")
	}
}

func TestHandleFailureWithAttemptsLeftRetries(t *testing.T) {
	r, q, s := newTestRunner(&fakeProcessor{err: errors.New("transcription unavailable")})
	job := &queue.Job{RecordingID: "rec-1", Attempt: 2}

	r.handle(context.Background(), job, testLogger())

	if len(q.retried) != 1 {
		t.Fatalf("expected 1 retry, got %d", len(q.retried))
	}
	if len(q.done) != 0 {
		t.Error("retried job must keep its dedup marker")
	}
	if len(s.updates) != 0 {
		t.Error("retried job must not change recording status")
	}
}

func TestHandleFailureAtLastAttemptMarksFailed(t *testing.T) {
	r, q, s := newTestRunner(&fakeProcessor{err: errors.New("transcription unavailable")})
	job := &queue.Job{RecordingID: "rec-1", Attempt: 5}

	r.handle(context.Background(), job, testLogger())

	if got := s.updates["rec-1"]; got != models.StatusFailed {
		t.Fatalf("expected recording marked failed, got %q", got)
	}
	if len(q.done) != 1 {
		t.Error("terminally failed job must be acknowledged")
	}
	if len(q.retried) != 0 {
		t.Error("terminally failed job must not be retried")
	}
}

func TestHandlePanicCountsAsFailure(t *testing.T) {
	p := &fakeProcessor{panics: true}
	r, q, s := newTestRunner(p)

	r.handle(context.Background(), &queue.Job{RecordingID: "rec-1", Attempt: 1}, testLogger())
	if len(q.retried) != 1 {
		t.Fatalf("panic with attempts left should retry, got %d retries", len(q.retried))
	}

	r.handle(context.Background(), &queue.Job{RecordingID: "rec-1", Attempt: 5}, testLogger())
	if got := s.updates["rec-1"]; got != models.StatusFailed {
		t.Fatalf("panic at last attempt should mark failed, got %q", got)
	}
	if p.calls != 2 {
		t.Fatalf("expected processor invoked twice, got %d", p.calls)
	}
}
