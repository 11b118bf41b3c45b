// Package wait provides bounded, cancellable polling with exponential backoff
// and jitter.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrStillPending is returned (wrapped in a *PendingError) when the polled
// resource did not reach the desired state before attempts or time ran out.
var ErrStillPending = errors.New("still pending")

const (
	DefaultInitialInterval = 10 * time.Second
	DefaultMaxInterval     = 60 * time.Second
	DefaultMultiplier      = 1.5
	DefaultJitter          = 0.5
	DefaultMaxElapsed      = 45 * time.Minute
	DefaultMaxAttempts     = 120
)

// Backoff controls how often and for how long Until polls.
type Backoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter is the randomization factor applied to each interval, in [0, 1).
	Jitter float64
	// MaxElapsed bounds the total wait. Zero disables the bound.
	MaxElapsed time.Duration
	// MaxAttempts bounds the number of condition evaluations. Zero disables the bound.
	MaxAttempts int
}

// DefaultBackoff returns the settings used for cluster state transitions,
// which typically take several minutes.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultMultiplier,
		Jitter:          DefaultJitter,
		MaxElapsed:      DefaultMaxElapsed,
		MaxAttempts:     DefaultMaxAttempts,
	}
}

func (b Backoff) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.InitialInterval
	exp.MaxInterval = b.MaxInterval
	exp.Multiplier = b.Multiplier
	exp.RandomizationFactor = b.Jitter
	exp.MaxElapsedTime = b.MaxElapsed
	exp.Reset()

	var bo backoff.BackOff = exp
	if b.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(b.MaxAttempts-1))
	}
	return backoff.WithContext(bo, ctx)
}

// PendingError describes a wait that gave up.
type PendingError struct {
	What       string
	LastStatus string
	Attempts   int
	Elapsed    time.Duration
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("%s still pending after %d attempts over %s (last status: %q)", e.What, e.Attempts, e.Elapsed.Round(time.Second), e.LastStatus)
}

func (e *PendingError) Unwrap() error {
	return ErrStillPending
}

// ConditionFunc reports whether the wait is over. status is a human readable
// description of the observed state, used for logging and in PendingError.
// A non-nil error aborts the wait immediately.
type ConditionFunc func(ctx context.Context) (done bool, status string, err error)

// NotifyFunc is called after every evaluation that did not finish the wait.
type NotifyFunc func(status string, next time.Duration)

var errNotDone = errors.New("condition not met")

// Until evaluates cond until it reports done, returns an error, the context
// is cancelled or the backoff bounds are exhausted. In the last case the
// returned error is a *PendingError wrapping ErrStillPending.
func Until(ctx context.Context, what string, b Backoff, cond ConditionFunc, notify NotifyFunc) error {
	start := time.Now()
	attempts := 0
	lastStatus := ""

	op := func() error {
		attempts++
		done, status, err := cond(ctx)
		lastStatus = status
		if err != nil {
			return backoff.Permanent(err)
		}
		if done {
			return nil
		}
		return errNotDone
	}

	var n backoff.Notify
	if notify != nil {
		n = func(_ error, next time.Duration) {
			notify(lastStatus, next)
		}
	}

	err := backoff.RetryNotify(op, b.newBackOff(ctx), n)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNotDone):
		return &PendingError{
			What:       what,
			LastStatus: lastStatus,
			Attempts:   attempts,
			Elapsed:    time.Since(start),
		}
	default:
		return err
	}
}
