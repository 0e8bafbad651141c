package orchestrator

import (
	"time"

	"github.com/ShayCichocki/deepthink/internal/retry"
)

const (
	defaultMaxExperts    = 4
	defaultHistoryWindow = 5
)

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

type engineOptions struct {
	policy        retry.Policy
	maxExperts    int
	historyWindow int
	observer      Observer
	logger        *DebugLogger
	now           func() time.Time
}

func defaultOptions() engineOptions {
	return engineOptions{
		policy:        retry.DefaultPolicy(),
		maxExperts:    defaultMaxExperts,
		historyWindow: defaultHistoryWindow,
		logger:        NopLogger(),
		now:           time.Now,
	}
}

// WithRetryPolicy sets the retry policy used to open streams and call the
// manager.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *engineOptions) { o.policy = p }
}

// WithMaxExperts caps the number of specialists taken from the manager's plan.
func WithMaxExperts(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.maxExperts = n
		}
	}
}

// WithHistoryWindow sets how many trailing history messages are given to
// every stage as context.
func WithHistoryWindow(n int) Option {
	return func(o *engineOptions) {
		if n >= 0 {
			o.historyWindow = n
		}
	}
}

// WithObserver registers the update callback.
func WithObserver(fn Observer) Option {
	return func(o *engineOptions) { o.observer = fn }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}
