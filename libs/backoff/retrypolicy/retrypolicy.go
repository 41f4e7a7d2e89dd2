package retrypolicy

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

const (
	// Done is the sentinel returned when no further attempts should be made
	Done time.Duration = -1

	defaultBackoffCoefficient = 2.0
)

var (
	// DefaultRetry an exponential retry policy with sensible bounds
	DefaultRetry = mustNew(
		WithInitialInterval(50*time.Millisecond),
		WithBackoffCoefficient(defaultBackoffCoefficient),
		WithMaximumInterval(10*time.Second),
		WithExpirationInterval(time.Minute),
		WithMaximumAttempts(10),
	)

	// NoRetry a policy which never allows a retry
	NoRetry = mustNew(WithMaximumAttempts(0))

	errInvalidInterval    = errors.New("retrypolicy: intervals must not be negative")
	errInvalidCoefficient = errors.New("retrypolicy: backoff coefficient must be at least 1")
)

type (
	// Retry defines a policy for calculating retry delays
	Retry interface {
		// CalculateNextDelay returns the delay before the next attempt, or Done
		CalculateNextDelay() time.Duration
	}

	// Option mutates a policy under construction
	Option func(*policy)

	policy struct {
		initialInterval    time.Duration
		backoffCoefficient float64
		maximumInterval    time.Duration
		expirationInterval time.Duration
		maximumAttempt     int

		currentAttempt int
		startTime      time.Time
	}
)

// New creates a retry policy from the given options
func New(opts ...Option) (Retry, error) {
	p := &policy{
		backoffCoefficient: defaultBackoffCoefficient,
		startTime:          time.Now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.initialInterval < 0 || p.maximumInterval < 0 || p.expirationInterval < 0 {
		return nil, errInvalidInterval
	}
	if p.backoffCoefficient < 1 {
		return nil, errInvalidCoefficient
	}
	return p, nil
}

// NewFixed creates a bounded-attempt policy with a fixed delay between attempts
func NewFixed(delay time.Duration, maximumAttempts int) (Retry, error) {
	return New(
		WithInitialInterval(delay),
		WithBackoffCoefficient(1),
		WithMaximumInterval(delay),
		WithMaximumAttempts(maximumAttempts),
	)
}

func mustNew(opts ...Option) Retry {
	r, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// WithInitialInterval sets the delay before the first retry
func WithInitialInterval(interval time.Duration) Option {
	return func(p *policy) {
		p.initialInterval = interval
	}
}

// WithBackoffCoefficient sets the multiplier applied between attempts
func WithBackoffCoefficient(coefficient float64) Option {
	return func(p *policy) {
		p.backoffCoefficient = coefficient
	}
}

// WithMaximumInterval caps the delay between attempts
func WithMaximumInterval(interval time.Duration) Option {
	return func(p *policy) {
		p.maximumInterval = interval
	}
}

// WithExpirationInterval bounds the total elapsed time across attempts
func WithExpirationInterval(interval time.Duration) Option {
	return func(p *policy) {
		p.expirationInterval = interval
	}
}

// WithMaximumAttempts bounds the number of attempts
func WithMaximumAttempts(attempts int) Option {
	return func(p *policy) {
		p.maximumAttempt = attempts
	}
}

// CalculateNextDelay implements Retry
func (p *policy) CalculateNextDelay() time.Duration {
	if p.currentAttempt >= p.maximumAttempt {
		return Done
	}

	if p.expirationInterval > 0 && !p.startTime.IsZero() {
		if time.Since(p.startTime) > p.expirationInterval {
			return Done
		}
	}

	nextInterval := float64(p.initialInterval) * math.Pow(p.backoffCoefficient, float64(p.currentAttempt))
	if nextInterval <= 0 {
		return Done
	}

	if p.maximumInterval > 0 && nextInterval > float64(p.maximumInterval) {
		nextInterval = float64(p.maximumInterval)
	}

	p.currentAttempt++

	// jitter within [0.8, 1.0] of the computed interval
	jitter := (0.8 + 0.2*rand.Float64()) * nextInterval

	return time.Duration(jitter)
}
