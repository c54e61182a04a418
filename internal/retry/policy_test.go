package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

func TestPolicyBackoffSchedule(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond}
	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 350*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 350*time.Millisecond, p.Backoff(9))
}

func TestPolicyBackoffJitterBounds(t *testing.T) {
	t.Parallel()

	p := Policy{BaseDelay: time.Second, MaxDelay: time.Second, Jitter: true}
	for i := 0; i < 50; i++ {
		d := p.Backoff(1)
		require.GreaterOrEqual(t, d, 500*time.Millisecond)
		require.Less(t, d, time.Second)
	}
}

func TestPolicyAttemptsFloor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, Policy{}.Attempts())
	assert.Equal(t, 4, Policy{MaxAttempts: 4}.Attempts())
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		want bool
	}{
		"Nil":          {nil, false},
		"Canceled":     {context.Canceled, false},
		"Deadline":     {context.DeadlineExceeded, false},
		"Permanent":    {Permanent(errors.New("bad payload")), false},
		"NotFound":     {&jobs.StatusError{Code: http.StatusNotFound}, false},
		"TooMany":      {&jobs.StatusError{Code: http.StatusTooManyRequests}, true},
		"BadGateway":   {&jobs.StatusError{Code: http.StatusBadGateway}, true},
		"PlainFailure": {errors.New("connection reset"), true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	p := Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}
	calls := 0
	err := Do(context.Background(), p, rec, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, rec.Delays())
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5}, rec, func(context.Context, int) error {
		calls++
		return Permanent(errors.New("nope"))
	})
	require.EqualError(t, err, "nope")
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.Delays())
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 2}, &Recorder{}, func(context.Context, int) error {
		calls++
		return errors.New("still down")
	})
	require.EqualError(t, err, "still down")
	assert.Equal(t, 2, calls)
}

func TestTimerSleeperHonorsCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := TimerSleeper{}.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, TimerSleeper{}.Sleep(context.Background(), 0))
}
