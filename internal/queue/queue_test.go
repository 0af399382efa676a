package queue

import (
	"context"
	"testing"
	"time"

	"meetrecap/internal/config"
	"meetrecap/internal/redis"
)

// fakeRedis is an in-memory stand-in for the redis command surface the
// queue uses. BLMove never blocks; an empty source returns ErrNoJob.
type fakeRedis struct {
	lists map[string][]string
	zsets map[string]map[string]float64
	keys  map[string]struct{}
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		lists: map[string][]string{},
		zsets: map[string]map[string]float64{},
		keys:  map[string]struct{}{},
	}
}

func (f *fakeRedis) LPush(ctx context.Context, key string, value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	}
	f.lists[key] = append([]string{s}, f.lists[key]...)
	return nil
}

func (f *fakeRedis) BLMove(ctx context.Context, timeout time.Duration, source, destination string) (string, error) {
	src := f.lists[source]
	if len(src) == 0 {
		return "", redis.ErrNoJob
	}
	v := src[len(src)-1]
	f.lists[source] = src[:len(src)-1]
	f.lists[destination] = append([]string{v}, f.lists[destination]...)
	return v, nil
}

func (f *fakeRedis) LRem(ctx context.Context, key string, count int64, value string) error {
	var kept []string
	removed := int64(0)
	for _, v := range f.lists[key] {
		if v == value && removed < count {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	f.lists[key] = kept
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = struct{}{}
	return true, nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.keys, k)
	}
	return nil
}

func (f *fakeRedis) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if f.zsets[key] == nil {
		f.zsets[key] = map[string]float64{}
	}
	f.zsets[key][member] = score
	return nil
}

func (f *fakeRedis) ZRem(ctx context.Context, key string, member string) error {
	delete(f.zsets[key], member)
	return nil
}

func (f *fakeRedis) ZPopDue(ctx context.Context, key string, max float64, count int) ([]string, error) {
	var due []string
	for m, score := range f.zsets[key] {
		if score <= max && len(due) < count {
			due = append(due, m)
			delete(f.zsets[key], m)
		}
	}
	return due, nil
}

func newTestQueue(t *testing.T) (*Queue, *fakeRedis) {
	t.Helper()
	rdb := newFakeRedis()
	q := newWithCommands(rdb, config.QueueConfig{
		Name:                     "recordings",
		Attempts:                 5,
		BackoffSeconds:           30,
		VisibilityTimeoutSeconds: 900,
	})
	return q, rdb
}

func TestDequeueLeasesJob(t *testing.T) {
	q, rdb := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "rec-1"); err != nil {
		t.Fatal(err)
	}
	job, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.RecordingID != "rec-1" || job.Attempt != 1 {
		t.Fatalf("wrong job: %+v", job)
	}

	if len(rdb.lists[q.readyKey()]) != 0 {
		t.Error("ready list should be drained")
	}
	if len(rdb.lists[q.processingKey()]) != 1 {
		t.Fatalf("job should sit in the processing list, got %v", rdb.lists[q.processingKey()])
	}
	if len(rdb.zsets[q.leasesKey()]) != 1 {
		t.Error("dequeue should record a lease")
	}
}

func TestDoneReleasesJob(t *testing.T) {
	q, rdb := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "rec-1"); err != nil {
		t.Fatal(err)
	}
	job, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Done(ctx, job); err != nil {
		t.Fatal(err)
	}

	if len(rdb.lists[q.processingKey()]) != 0 {
		t.Error("done should remove the processing entry")
	}
	if len(rdb.zsets[q.leasesKey()]) != 0 {
		t.Error("done should release the lease")
	}
	if _, held := rdb.keys[q.dedupKey("rec-1")]; held {
		t.Error("done should clear the dedup marker")
	}
	// The recording can be enqueued again immediately.
	if err := q.Enqueue(ctx, "rec-1"); err != nil {
		t.Fatal(err)
	}
	if len(rdb.lists[q.readyKey()]) != 1 {
		t.Error("finished recording should be enqueueable again")
	}
}

func TestExpiredLeaseIsRequeued(t *testing.T) {
	q, rdb := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "rec-1"); err != nil {
		t.Fatal(err)
	}
	first, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if first == nil {
		t.Fatal("expected a job")
	}

	// Worker dies without acknowledging: nothing comes back while the
	// lease is live.
	again, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if again != nil {
		t.Fatalf("leased job must not be redelivered, got %+v", again)
	}

	// Backdate the lease past its expiry.
	for member := range rdb.zsets[q.leasesKey()] {
		rdb.zsets[q.leasesKey()][member] = float64(time.Now().Add(-time.Minute).Unix())
	}

	redelivered, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if redelivered == nil {
		t.Fatal("expired lease should put the job back on the ready list")
	}
	if redelivered.RecordingID != "rec-1" || redelivered.Attempt != 1 {
		t.Fatalf("requeued job should keep its attempt, got %+v", redelivered)
	}
	if len(rdb.lists[q.processingKey()]) != 1 {
		t.Fatalf("processing list should hold exactly the redelivered copy, got %v", rdb.lists[q.processingKey()])
	}
}

func TestRetryReleasesAndReschedules(t *testing.T) {
	q, rdb := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "rec-1"); err != nil {
		t.Fatal(err)
	}
	job, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Retry(ctx, job); err != nil {
		t.Fatal(err)
	}

	if len(rdb.lists[q.processingKey()]) != 0 {
		t.Error("retry should remove the processing entry")
	}
	if len(rdb.zsets[q.leasesKey()]) != 0 {
		t.Error("retry should release the lease")
	}
	if len(rdb.zsets[q.delayedKey()]) != 1 {
		t.Fatal("retry should schedule a delayed job")
	}

	// Make the delayed job due and take it again.
	for member := range rdb.zsets[q.delayedKey()] {
		rdb.zsets[q.delayedKey()][member] = float64(time.Now().Add(-time.Second).Unix())
	}
	next, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.Attempt != 2 {
		t.Fatalf("promoted retry should carry attempt 2, got %+v", next)
	}
}

func TestEnqueueDedupsInFlight(t *testing.T) {
	q, rdb := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "rec-1"); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, "rec-1"); err != nil {
		t.Fatal(err)
	}
	if got := len(rdb.lists[q.readyKey()]); got != 1 {
		t.Fatalf("duplicate enqueue should be dropped, got %d jobs", got)
	}
}

func TestRetryDelayDoubles(t *testing.T) {
	base := 30 * time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 120 * time.Second},
		{4, 240 * time.Second},
	}
	for _, c := range cases {
		if got := RetryDelay(base, c.attempt); got != c.want {
			t.Errorf("attempt %d: expected %v, got %v", c.attempt, c.want, got)
		}
	}
}

func TestNewRequiresRedis(t *testing.T) {
	if _, err := New(nil, config.QueueConfig{Name: "q", Attempts: 5, BackoffSeconds: 30}); err == nil {
		t.Fatal("expected error for nil redis client")
	}
}
