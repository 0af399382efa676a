// Package retry is the shared in-process retry policy for outbound model
// calls (transcription and extraction). Whole-job retries are the queue's
// concern; this layer only smooths over transient provider failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"syscall"
	"time"

	"meetrecap/internal/config"

	"github.com/cenkalti/backoff/v4"
)

// StatusError tags an error with the HTTP status that produced it so the
// policy can classify it.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("http status %d", e.Code)
}

var retryableStatus = map[int]bool{
	408: true, 409: true, 429: true,
	500: true, 502: true, 503: true, 504: true,
}

// IsRetryable reports whether an error is worth retrying: a retryable HTTP
// status, or a transport-level reset/timeout/DNS condition. Auth failures
// and malformed requests are not retryable.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatus[se.Code]
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

const jitterMax = 250 * time.Millisecond

// schedule implements backoff.BackOff with the policy's delay formula:
// min(maxDelay, base * 2^attempt) + jitter(0..250ms).
type schedule struct {
	base    time.Duration
	max     time.Duration
	attempt int
}

func (s *schedule) NextBackOff() time.Duration {
	d := s.base << s.attempt
	if d > s.max || d <= 0 {
		d = s.max
	}
	s.attempt++
	return d + time.Duration(rand.Int63n(int64(jitterMax)))
}

func (s *schedule) Reset() { s.attempt = 0 }

// Policy is an immutable retry configuration.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// FromConfig builds a policy from config, with the package defaults for
// unset fields already applied by config.Load.
func FromConfig(rc config.RetryConfig) Policy {
	return Policy{
		Attempts:  rc.Attempts,
		BaseDelay: time.Duration(rc.BaseDelayMS) * time.Millisecond,
		MaxDelay:  time.Duration(rc.MaxDelayMS) * time.Millisecond,
	}
}

// Do runs op with bounded retry. Non-retryable errors abort immediately;
// the final attempt's error is returned verbatim.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sched := &schedule{base: p.BaseDelay, max: p.MaxDelay}
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(sched, uint64(attempts-1)), ctx)
	return backoff.Retry(wrapped, bo)
}
