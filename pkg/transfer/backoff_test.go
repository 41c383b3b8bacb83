package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffGrowth(t *testing.T) {
	initial := 10 * time.Millisecond
	maximum := 10 * time.Second
	p := NewExponentialBackoffPolicy(initial, maximum, 2.0)

	// After k calls the delay range is [initial*2^k, 2*initial*2^k).
	lo := initial
	hi := 2 * initial
	for k := 0; k < 6; k++ {
		delay := p.OnCompletion()
		assert.GreaterOrEqual(t, delay, lo, "call %d", k)
		assert.Less(t, delay, hi, "call %d", k)
		lo *= 2
		hi *= 2
	}
}

func TestExponentialBackoffNeverExceedsMaximum(t *testing.T) {
	p := NewExponentialBackoffPolicy(time.Millisecond, 8*time.Millisecond, 2.0)

	for i := 0; i < 50; i++ {
		delay := p.OnCompletion()
		assert.LessOrEqual(t, delay, 8*time.Millisecond)
	}
}

func TestExponentialBackoffCloneResetsState(t *testing.T) {
	p := NewExponentialBackoffPolicy(10*time.Millisecond, time.Minute, 2.0)
	for i := 0; i < 4; i++ {
		p.OnCompletion()
	}

	clone := p.Clone()
	delay := clone.OnCompletion()
	assert.GreaterOrEqual(t, delay, 10*time.Millisecond)
	assert.Less(t, delay, 20*time.Millisecond)
}

func TestExponentialBackoffClonesAreIndependent(t *testing.T) {
	proto := NewExponentialBackoffPolicy(time.Millisecond, time.Second, 2.0)

	a := proto.Clone()
	b := proto.Clone()

	// Advancing one clone must not move the other's delay range.
	for i := 0; i < 5; i++ {
		a.OnCompletion()
	}
	delay := b.OnCompletion()
	assert.Less(t, delay, 2*time.Millisecond)
}

func TestExponentialBackoffBadScalingFallsBack(t *testing.T) {
	p := NewExponentialBackoffPolicy(time.Millisecond, time.Second, 0.5)
	first := p.OnCompletion()
	second := p.OnCompletion()
	assert.GreaterOrEqual(t, second, first/2) // range doubled, not shrunk
}
