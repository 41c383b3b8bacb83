package transfer

import (
	"fmt"
	"time"
)

// ErrorClassifier decides whether an error is transient. Errors the
// classifier rejects are permanent: they fail immediately regardless of the
// remaining retry budget.
type ErrorClassifier func(error) bool

// RetryPolicy decides whether a failed operation may be attempted again.
//
// A policy is consumed by a single logical operation: compound operations
// such as a chunk upload and the session resets it triggers share one policy
// value, so every transient failure along the way counts against the same
// budget. Long-lived components hold a prototype and Clone it per operation.
type RetryPolicy interface {
	// OnFailure records a failure and reports whether another attempt is
	// allowed. Permanent failures return false without consuming budget, so
	// callers can distinguish a fatal error from an exhausted budget.
	OnFailure(err error) bool

	// IsExhausted reports whether the retry budget is used up.
	IsExhausted() bool

	// IsPermanentFailure reports whether the error forecloses retrying.
	IsPermanentFailure(err error) bool

	// Clone returns an independent copy of the policy in its initial state.
	Clone() RetryPolicy
}

// LimitedErrorCountRetryPolicy tolerates a fixed number of transient
// failures before giving up.
type LimitedErrorCountRetryPolicy struct {
	maximumFailures int
	failures        int
	isTransient     ErrorClassifier
}

// NewLimitedErrorCountRetryPolicy creates a policy that tolerates up to
// maximumFailures transient failures, classified by IsTransient.
func NewLimitedErrorCountRetryPolicy(maximumFailures int) *LimitedErrorCountRetryPolicy {
	return NewLimitedErrorCountRetryPolicyWithClassifier(maximumFailures, IsTransient)
}

// NewLimitedErrorCountRetryPolicyWithClassifier creates a count-limited
// policy with a custom transience classifier.
func NewLimitedErrorCountRetryPolicyWithClassifier(maximumFailures int, classifier ErrorClassifier) *LimitedErrorCountRetryPolicy {
	return &LimitedErrorCountRetryPolicy{
		maximumFailures: maximumFailures,
		isTransient:     classifier,
	}
}

// OnFailure records a transient failure and reports whether the budget
// allows another attempt.
func (p *LimitedErrorCountRetryPolicy) OnFailure(err error) bool {
	if p.IsPermanentFailure(err) {
		return false
	}
	p.failures++
	return p.failures <= p.maximumFailures
}

// IsExhausted reports whether more failures were recorded than tolerated.
func (p *LimitedErrorCountRetryPolicy) IsExhausted() bool {
	return p.failures > p.maximumFailures
}

// IsPermanentFailure reports whether the error is not transient.
func (p *LimitedErrorCountRetryPolicy) IsPermanentFailure(err error) bool {
	return !p.isTransient(err)
}

// Clone returns a fresh policy with a zeroed failure count.
func (p *LimitedErrorCountRetryPolicy) Clone() RetryPolicy {
	return NewLimitedErrorCountRetryPolicyWithClassifier(p.maximumFailures, p.isTransient)
}

// LimitedTimeRetryPolicy tolerates transient failures until a wall-clock
// deadline, fixed when the policy is created.
type LimitedTimeRetryPolicy struct {
	maximumDuration time.Duration
	deadline        time.Time
	isTransient     ErrorClassifier
	now             func() time.Time
}

// NewLimitedTimeRetryPolicy creates a policy whose retry budget expires
// maximumDuration after construction.
func NewLimitedTimeRetryPolicy(maximumDuration time.Duration) *LimitedTimeRetryPolicy {
	return NewLimitedTimeRetryPolicyWithClassifier(maximumDuration, IsTransient)
}

// NewLimitedTimeRetryPolicyWithClassifier creates a time-limited policy with
// a custom transience classifier.
func NewLimitedTimeRetryPolicyWithClassifier(maximumDuration time.Duration, classifier ErrorClassifier) *LimitedTimeRetryPolicy {
	p := &LimitedTimeRetryPolicy{
		maximumDuration: maximumDuration,
		isTransient:     classifier,
		now:             time.Now,
	}
	p.deadline = p.now().Add(maximumDuration)
	return p
}

// OnFailure reports whether the deadline still allows another attempt.
func (p *LimitedTimeRetryPolicy) OnFailure(err error) bool {
	if p.IsPermanentFailure(err) {
		return false
	}
	return p.now().Before(p.deadline)
}

// IsExhausted reports whether the deadline has passed.
func (p *LimitedTimeRetryPolicy) IsExhausted() bool {
	return !p.now().Before(p.deadline)
}

// IsPermanentFailure reports whether the error is not transient.
func (p *LimitedTimeRetryPolicy) IsPermanentFailure(err error) bool {
	return !p.isTransient(err)
}

// Clone returns a fresh policy whose deadline restarts from now.
func (p *LimitedTimeRetryPolicy) Clone() RetryPolicy {
	c := &LimitedTimeRetryPolicy{
		maximumDuration: p.maximumDuration,
		isTransient:     p.isTransient,
		now:             p.now,
	}
	c.deadline = c.now().Add(p.maximumDuration)
	return c
}

// DefaultRetryPolicy returns the retry policy applied when the caller does
// not configure one.
func DefaultRetryPolicy() RetryPolicy {
	return NewLimitedTimeRetryPolicy(15 * time.Minute)
}

// RetryError composes the user-visible failure for an operation that will
// not be attempted again. The message states whether the cause was a
// permanent error or an exhausted retry budget, so operators can tell
// "this will never succeed" from "try again with a larger budget".
func RetryError(op string, err error, policy RetryPolicy) error {
	if policy.IsPermanentFailure(err) {
		return &Error{Code: CodeOf(err), Op: op, Err: fmt.Errorf("permanent error: %w", err)}
	}
	return &Error{Code: CodeOf(err), Op: op, Err: fmt.Errorf("retry policy exhausted: %w", err)}
}

// ErrBeforeFirstAttempt marks an operation whose retry budget was already
// exhausted before the first attempt could be made, e.g. a deadline policy
// created with an elapsed deadline.
func ErrBeforeFirstAttempt(op string) error {
	return Errorf(CodeDeadlineExceeded, op, "retry policy exhausted before first attempt")
}
