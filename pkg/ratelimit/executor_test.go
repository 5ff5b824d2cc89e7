package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string   { return e.message }
func (e *statusError) HTTPStatus() int { return e.status }

func testOptions() Options {
	return Options{
		Interval:       5 * time.Millisecond,
		BackoffFloor:   40 * time.Millisecond,
		BackoffCeiling: 200 * time.Millisecond,
		BackoffDecay:   20 * time.Millisecond,
	}
}

func TestIsThrottle(t *testing.T) {
	assert.False(t, IsThrottle(nil))
	assert.False(t, IsThrottle(errors.New("connection refused")))
	assert.False(t, IsThrottle(&statusError{status: 500, message: "boom"}))
	assert.True(t, IsThrottle(&statusError{status: 429, message: "too many requests"}))
	assert.True(t, IsThrottle(errors.New("Rate limit exceeded, slow down")))
	assert.True(t, IsThrottle(fmt.Errorf("wrapped: %w", &statusError{status: 429, message: "x"})))
}

func TestRunOrderAndResults(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	var seen []string

	results := Run(context.Background(), testOptions(), items, func(ctx context.Context, item string) (string, error) {
		seen = append(seen, item)
		return item + "!", nil
	})

	require.Len(t, results, 4)
	assert.Equal(t, items, seen)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.NoError(t, r.Err)
		assert.Equal(t, items[i]+"!", r.Value)
	}
}

func TestRunThrottleRetriesOnceThenContinues(t *testing.T) {
	opts := testOptions()
	calls := map[string]int{}
	var retryGap time.Duration
	var throttledAt time.Time

	results := Run(context.Background(), opts, []string{"a", "b", "c"}, func(ctx context.Context, item string) (string, error) {
		calls[item]++
		if item == "b" {
			if calls["b"] == 1 {
				throttledAt = time.Now()
				return "", &statusError{status: 429, message: "too many requests"}
			}
			retryGap = time.Since(throttledAt)
			// Retry fails for a non-throttle reason: the item is dropped.
			return "", errors.New("still broken")
		}
		return item, nil
	})

	require.Len(t, results, 3)
	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 2, calls["b"], "throttled item must be retried exactly once")
	assert.Equal(t, 1, calls["c"], "items after a dropped one still run")

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	assert.GreaterOrEqual(t, retryGap, opts.BackoffFloor, "retry must wait at least the backoff floor")
}

func TestRunThrottledRetrySucceeds(t *testing.T) {
	calls := 0
	results := Run(context.Background(), testOptions(), []int{1}, func(ctx context.Context, item int) (int, error) {
		calls++
		if calls == 1 {
			return 0, &statusError{status: 429, message: "too many requests"}
		}
		return item * 10, nil
	})

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 10, results[0].Value)
	assert.Equal(t, 2, calls)
}

func TestRunCancellationYieldsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	results := Run(ctx, testOptions(), []int{1, 2, 3, 4, 5}, func(ctx context.Context, item int) (int, error) {
		if item == 2 {
			cancel()
		}
		return item, nil
	})

	// The cancellation lands after item 2 returns; item 3 never starts.
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Value)
	assert.Equal(t, 2, results[1].Value)
}

func TestBackoffGrowsAndDecays(t *testing.T) {
	opts := testOptions().withDefaults()
	state := &backoffState{opts: opts}

	assert.Equal(t, opts.Interval, state.interCallDelay())

	assert.Equal(t, opts.BackoffFloor, state.onThrottle())
	assert.Equal(t, 2*opts.BackoffFloor, state.onThrottle())

	// Growth is capped at the ceiling.
	for i := 0; i < 10; i++ {
		state.onThrottle()
	}
	assert.Equal(t, opts.BackoffCeiling, state.current)
	assert.Equal(t, opts.Interval+opts.BackoffCeiling, state.interCallDelay())

	// Three consecutive successes shave one decay step off.
	state.onSuccess()
	state.onSuccess()
	assert.Equal(t, opts.BackoffCeiling, state.current)
	state.onSuccess()
	assert.Equal(t, opts.BackoffCeiling-opts.BackoffDecay, state.current)

	// A throttle resets the success streak.
	state.onSuccess()
	state.onSuccess()
	state.onThrottle()
	state.onSuccess()
	state.onSuccess()
	state.onSuccess()
	assert.Equal(t, opts.BackoffCeiling-opts.BackoffDecay, state.current)
}

func TestPollCompletes(t *testing.T) {
	attempts := 0
	err := Poll(context.Background(), time.Millisecond, 10, func(ctx context.Context, attempt int) (bool, error) {
		attempts++
		return attempt == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPollExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Poll(context.Background(), time.Millisecond, 5, func(ctx context.Context, attempt int) (bool, error) {
		attempts++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 5, attempts)
}

func TestPollAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := Poll(context.Background(), time.Millisecond, 10, func(ctx context.Context, attempt int) (bool, error) {
		attempts++
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestPollTreatsThrottleAsRetryable(t *testing.T) {
	attempts := 0
	err := Poll(context.Background(), time.Millisecond, 10, func(ctx context.Context, attempt int) (bool, error) {
		attempts++
		if attempts == 1 {
			return false, &statusError{status: 429, message: "too many requests"}
		}
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestPollHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Poll(ctx, 5*time.Millisecond, 100, func(ctx context.Context, attempt int) (bool, error) {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}
