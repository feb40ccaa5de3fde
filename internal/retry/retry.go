// Package retry runs a remote call with bounded exponential backoff and reports
// exhaustion as a sentinel result instead of an error.
package retry

import (
	"context"
	"log/slog"
	"time"

	"castscribe/internal/logging"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 5 * time.Second
	DefaultMultiplier   = 1.5
)

// Policy holds backoff parameters. MaxRetries counts additional attempts after
// the first. A zero MaxDelay leaves growth uncapped.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy returns 3 retries starting at 5s and growing by 1.5x.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxDelay < 0 {
		p.MaxDelay = 0
	}
	return p
}

// Delays returns the waits that precede each retry under p.
func (p Policy) Delays() []time.Duration {
	p = p.normalized()
	delays := make([]time.Duration, 0, p.MaxRetries)
	delay := p.InitialDelay
	for i := 0; i < p.MaxRetries; i++ {
		delays = append(delays, delay)
		delay = p.next(delay)
	}
	return delays
}

func (p Policy) next(delay time.Duration) time.Duration {
	grown := time.Duration(float64(delay) * p.Multiplier)
	if p.MaxDelay > 0 && grown > p.MaxDelay {
		return p.MaxDelay
	}
	return grown
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type settings struct {
	sleep       Sleeper
	logger      *slog.Logger
	operation   string
	shouldRetry func(error) bool
}

// Option customizes a single Do invocation.
type Option func(*settings)

// WithSleeper replaces the timer-based wait (for testing).
func WithSleeper(sleep Sleeper) Option {
	return func(s *settings) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithLogger attaches the logger used for per-attempt warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOperation names the call in log output.
func WithOperation(name string) Option {
	return func(s *settings) {
		s.operation = name
	}
}

// WithShouldRetry stops retrying early when fn reports the error as permanent.
func WithShouldRetry(fn func(error) bool) Option {
	return func(s *settings) {
		if fn != nil {
			s.shouldRetry = fn
		}
	}
}

// Do runs op until it succeeds or the policy is exhausted. It returns the
// result and true on success, or the zero value and false after the final
// failure. Backoff state is local to the call. Context cancellation aborts the
// wait and returns false.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error), opts ...Option) (T, bool) {
	s := settings{
		sleep:       sleepContext,
		logger:      logging.NewNop(),
		operation:   "remote call",
		shouldRetry: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(&s)
	}
	policy = policy.normalized()

	var zero T
	delay := policy.InitialDelay
	attempts := policy.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				s.logger.Info("retry succeeded",
					logging.String("operation", s.operation),
					logging.Int(logging.FieldAttempt, attempt),
				)
			}
			return result, true
		}

		last := attempt == attempts || !s.shouldRetry(err) || ctx.Err() != nil
		if last {
			logging.ErrorWithContext(s.logger, "remote call failed after retries", "retry_exhausted",
				logging.String("operation", s.operation),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Int("max_attempts", attempts),
				logging.Error(err),
			)
			return zero, false
		}

		logging.WarnWithContext(s.logger, "remote call failed; retrying", "retry_attempt",
			logging.String("operation", s.operation),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldImpact, "call will be retried"),
		)
		if err := s.sleep(ctx, delay); err != nil {
			s.logger.Info("retry wait aborted",
				logging.String("operation", s.operation),
				logging.Error(err),
			)
			return zero, false
		}
		delay = policy.next(delay)
	}
	return zero, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
