package transfer

import (
	"math/rand"
	"time"
)

// BackoffPolicy computes how long to wait before the next retry attempt.
//
// Policies are stateful: each call to OnCompletion may change the delay
// returned by the next one. Long-lived components hold a policy prototype
// and call Clone once per logical operation, so concurrent operations never
// share delay state.
type BackoffPolicy interface {
	// Clone returns an independent copy of the policy in its initial state,
	// usable concurrently with the original.
	Clone() BackoffPolicy

	// OnCompletion is called after a failed attempt and returns the delay to
	// apply before retrying.
	OnCompletion() time.Duration
}

// ExponentialBackoffPolicy grows the delay between attempts geometrically.
//
// The internal state is a delay range [range/2, range) from which each delay
// is drawn uniformly at random. The range starts at twice the initial delay
// and is multiplied by the scaling factor after every call, capped at the
// maximum delay.
type ExponentialBackoffPolicy struct {
	initialDelay time.Duration
	maximumDelay time.Duration
	scaling      float64

	currentRange time.Duration
	rng          *rand.Rand
}

// NewExponentialBackoffPolicy creates a backoff policy with the given
// initial delay, maximum delay and scaling factor. The scaling factor must
// be greater than 1.0.
func NewExponentialBackoffPolicy(initialDelay, maximumDelay time.Duration, scaling float64) *ExponentialBackoffPolicy {
	if scaling <= 1.0 {
		scaling = 2.0
	}
	return &ExponentialBackoffPolicy{
		initialDelay: initialDelay,
		maximumDelay: maximumDelay,
		scaling:      scaling,
		currentRange: 2 * initialDelay,
	}
}

// DefaultBackoffPolicy returns the backoff policy applied when the caller
// does not configure one.
func DefaultBackoffPolicy() *ExponentialBackoffPolicy {
	return NewExponentialBackoffPolicy(10*time.Millisecond, 5*time.Minute, 2.0)
}

// Clone returns a fresh policy with the same parameters. The random
// generator is deliberately not copied: each clone seeds its own on first
// use, so sibling operations do not produce correlated delay sequences.
func (p *ExponentialBackoffPolicy) Clone() BackoffPolicy {
	return NewExponentialBackoffPolicy(p.initialDelay, p.maximumDelay, p.scaling)
}

// OnCompletion draws the next delay and advances the delay range.
func (p *ExponentialBackoffPolicy) OnCompletion() time.Duration {
	if p.rng == nil {
		// Lazily initialized: most operations succeed on the first attempt
		// and never need a generator.
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	hi := p.currentRange
	if hi > p.maximumDelay {
		hi = p.maximumDelay
	}
	lo := hi / 2

	delay := lo
	if hi > lo {
		delay = lo + time.Duration(p.rng.Int63n(int64(hi-lo)))
	}

	p.currentRange = time.Duration(float64(p.currentRange) * p.scaling)
	if p.currentRange > p.maximumDelay {
		p.currentRange = p.maximumDelay
	}

	return delay
}
