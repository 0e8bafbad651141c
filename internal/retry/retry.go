// Package retry wraps operations that may fail transiently with bounded
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ShayCichocki/deepthink/internal/llm"
)

// Kind classifies a failure.
type Kind int

const (
	// Network covers transport failures and temporary provider errors.
	Network Kind = iota
	// Application covers errors that will not change on retry.
	Application
	// Canceled means the caller's context was signaled.
	Canceled
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Application:
		return "application"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is returned by Do when the operation did not succeed.
type Error struct {
	Kind     Kind
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Errors not produced by Do are classified
// the same way Do would classify them.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return classify(err)
}

// Policy bounds the retry loop.
type Policy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy returns the standard policy: three attempts starting at
// 500ms, doubling, capped at 4s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Multiplier:   2,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	return p
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0.2
	return b
}

// Do runs op until it succeeds, fails with a non-transient error, the
// policy is exhausted, or ctx is done. ctx is checked before every
// attempt, so no attempt starts after cancellation. name labels log lines.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	attempts := 0

	wrapped := func() (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}
		attempts++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if classify(err) != Network || ctx.Err() != nil {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	notify := func(err error, next time.Duration) {
		log.Printf("[retry] %s: attempt %d/%d failed, retrying in %s: %v", name, attempts, p.MaxAttempts, next.Round(time.Millisecond), err)
	}

	v, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return v, nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		if !errors.Is(err, context.Canceled) {
			err = errors.Join(context.Canceled, err)
		}
		return v, &Error{Kind: Canceled, Attempts: attempts, Err: err}
	}
	kind := classify(err)
	log.Printf("[retry] %s: giving up after %d attempt(s): %v", name, attempts, err)
	return v, &Error{Kind: kind, Attempts: attempts, Err: err}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled):
		return Canceled
	case llm.IsTransient(err):
		return Network
	default:
		return Application
	}
}
