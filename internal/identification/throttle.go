package identification

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"
)

// Retry policy for transient identification failures.
const (
	MaxRetries     = 3
	InitialBackoff = 2 * time.Second
	MaxBackoff     = 30 * time.Second
)

// Throttle enforces a minimum interval between successive call starts. It is
// shared by every worker of an Identify/Tag-Phase, so calls against a single
// quota are serialized regardless of worker count.
type Throttle struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewThrottle returns a throttle with the given minimum interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now, sleep: SleepWithContext}
}

// Interval returns the configured minimum interval.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Wait blocks until the interval since the previous call start has elapsed,
// then records a new call start.
func (t *Throttle) Wait(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context unavailable")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.last.IsZero() {
		if remaining := t.interval - t.now().Sub(t.last); remaining > 0 {
			if err := t.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	t.last = t.now()
	return nil
}

// Do runs op after waiting for the throttle, retrying retriable failures with
// exponential backoff. Every attempt passes through Wait.
func (t *Throttle) Do(ctx context.Context, op func(context.Context) error) error {
	attempt := 0
	for {
		if err := t.Wait(ctx); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil || !IsRetriable(err) || attempt >= MaxRetries {
			return err
		}
		attempt++
		backoff := InitialBackoff * time.Duration(1<<uint(attempt-1))
		if backoff > MaxBackoff {
			backoff = MaxBackoff
		}
		if err := t.sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetriable reports whether err represents a transient condition that
// warrants an automatic retry (rate limits, timeouts, connection errors).
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "429") || strings.Contains(message, "rate limit") || strings.Contains(message, "quota") {
		return true
	}
	for _, code := range []string{"502", "503", "504"} {
		if strings.Contains(message, code) {
			return true
		}
	}
	for _, token := range []string{
		"timeout",
		"connection reset",
		"connection refused",
		"temporary failure",
		"awaiting headers",
	} {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
