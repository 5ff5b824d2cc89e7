// Package ratelimit drives ordered sequences of remote calls while staying
// under the platform API's throttling limits. It backs both the bulk
// multi-database search batches and the long-poll loops of the backup and
// restore pipelines.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultInterval       = 300 * time.Millisecond
	DefaultBackoffFloor   = 2000 * time.Millisecond
	DefaultBackoffCeiling = 30000 * time.Millisecond
	DefaultBackoffDecay   = 1000 * time.Millisecond

	// Consecutive successes required before an active backoff decays.
	decayAfter = 3
)

// ErrAttemptsExhausted is returned by Poll when the attempt ceiling is hit
// before the poll function reports completion.
var ErrAttemptsExhausted = errors.New("poll attempts exhausted")

// Options tunes the executor. Zero values fall back to the defaults above.
type Options struct {
	Interval       time.Duration
	BackoffFloor   time.Duration
	BackoffCeiling time.Duration
	BackoffDecay   time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.BackoffFloor <= 0 {
		o.BackoffFloor = DefaultBackoffFloor
	}
	if o.BackoffCeiling <= 0 {
		o.BackoffCeiling = DefaultBackoffCeiling
	}
	if o.BackoffDecay <= 0 {
		o.BackoffDecay = DefaultBackoffDecay
	}
	return o
}

// Result holds the outcome of one item in a Run batch.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// httpStatusError is implemented by errors that carry an upstream HTTP status.
type httpStatusError interface {
	HTTPStatus() int
}

// IsThrottle reports whether err looks like an upstream rate-limit signal:
// an HTTP 429 or a message mentioning a rate limit.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	var statusErr httpStatusError
	if errors.As(err, &statusErr) && statusErr.HTTPStatus() == 429 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}

// backoffState tracks the adaptive delay shared by Run and Poll.
type backoffState struct {
	opts      Options
	current   time.Duration
	successes int
}

// onThrottle grows the backoff and returns the delay to wait before retrying.
func (b *backoffState) onThrottle() time.Duration {
	if b.current == 0 {
		b.current = b.opts.BackoffFloor
	} else {
		b.current *= 2
	}
	if b.current > b.opts.BackoffCeiling {
		b.current = b.opts.BackoffCeiling
	}
	b.successes = 0
	return b.current
}

// onSuccess decays the backoff after enough consecutive successes.
func (b *backoffState) onSuccess() {
	if b.current == 0 {
		return
	}
	b.successes++
	if b.successes >= decayAfter {
		b.current -= b.opts.BackoffDecay
		if b.current < 0 {
			b.current = 0
		}
		b.successes = 0
	}
}

// interCallDelay is the pause between items: the base interval plus any
// still-active backoff.
func (b *backoffState) interCallDelay() time.Duration {
	return b.opts.Interval + b.current
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes call over items strictly in order, pausing between calls and
// backing off on throttling. A throttled item is retried exactly once after
// the backoff delay; if the retry fails too the item is dropped (recorded
// with its error) and processing continues. Cancellation is checked before
// each item and yields the results computed so far.
func Run[T, R any](ctx context.Context, opts Options, items []T, call func(context.Context, T) (R, error)) []Result[R] {
	o := opts.withDefaults()
	state := &backoffState{opts: o}
	results := make([]Result[R], 0, len(items))

	for i, item := range items {
		if ctx.Err() != nil {
			return results
		}
		if i > 0 {
			if err := sleep(ctx, state.interCallDelay()); err != nil {
				return results
			}
		}

		value, err := call(ctx, item)
		if err != nil && IsThrottle(err) {
			delay := state.onThrottle()
			log.WithFields(log.Fields{
				"index":   i,
				"backoff": delay.String(),
			}).Warn("rate limited, backing off before retry")
			if serr := sleep(ctx, delay); serr != nil {
				return results
			}
			value, err = call(ctx, item)
			if err != nil {
				log.WithError(err).WithField("index", i).Warn("retry after backoff failed, dropping item")
			}
		}

		if err == nil {
			state.onSuccess()
		}
		results = append(results, Result[R]{Index: i, Value: value, Err: err})
	}

	return results
}

// Poll repeatedly invokes fn on a fixed interval until it reports done, an
// error occurs, the context is cancelled, or maxAttempts is exceeded
// (ErrAttemptsExhausted). Throttling errors from fn feed the same backoff
// machinery as Run instead of aborting the poll.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, fn func(ctx context.Context, attempt int) (done bool, err error)) error {
	state := &backoffState{opts: Options{Interval: interval}.withDefaults()}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := fn(ctx, attempt)
		if err != nil {
			if !IsThrottle(err) {
				return err
			}
			delay := state.onThrottle()
			log.WithFields(log.Fields{
				"attempt": attempt,
				"backoff": delay.String(),
			}).Warn("poll rate limited, backing off")
			if serr := sleep(ctx, delay); serr != nil {
				return serr
			}
			continue
		}
		if done {
			return nil
		}

		state.onSuccess()
		if attempt < maxAttempts {
			if serr := sleep(ctx, state.interCallDelay()); serr != nil {
				return serr
			}
		}
	}

	return ErrAttemptsExhausted
}
