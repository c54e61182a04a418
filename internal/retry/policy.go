// Package retry provides the bounded exponential backoff used by every
// outbound call in the pipeline.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// Policy describes how many times an operation runs and how long to wait
// between attempts.
type Policy struct {
	// MaxAttempts counts the first try. Values below 1 mean a single attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter spreads each delay uniformly over [delay/2, delay).
	Jitter bool
}

// DefaultPolicy returns three attempts starting at 250ms and capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      true,
	}
}

// Attempts returns the effective attempt budget.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the wait before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if !p.Jitter {
		return time.Duration(delay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retryable decides whether err should trigger another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm permanentError
	if errors.As(err, &perm) {
		return false
	}
	var statusErr *jobs.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	return true
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. attempt is 1-based.
func Do(ctx context.Context, p Policy, sleeper Sleeper, fn func(ctx context.Context, attempt int) error) error {
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	var lastErr error
	for attempt := 1; attempt <= p.Attempts(); attempt++ {
		if attempt > 1 {
			if err := sleeper.Sleep(ctx, p.Backoff(attempt-1)); err != nil {
				return fmt.Errorf("retry wait: %w", err)
			}
		}
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
