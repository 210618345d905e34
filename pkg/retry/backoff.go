package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// maxShift bounds the exponent so base<<shift cannot overflow.
const maxShift = 30

// Strategy computes the wait before a retry.
// n is the 1-based retry number: the wait before the second call is n=1.
type Strategy interface {
	Delay(n int, base time.Duration) time.Duration
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(n int, base time.Duration) time.Duration

// Delay implements Strategy.
func (f StrategyFunc) Delay(n int, base time.Duration) time.Duration {
	return f(n, base)
}

// Exponential doubles the wait on every retry: base * 2^(n-1).
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(n int, base time.Duration) time.Duration {
	if n < 1 {
		return base
	}
	shift := min(n-1, maxShift)
	d := base << shift
	if d>>shift != base {
		return time.Duration(math.MaxInt64)
	}
	return d
}

// Linear grows the wait by base on every retry: base * n.
type Linear struct{}

// Delay implements Strategy.
func (Linear) Delay(n int, base time.Duration) time.Duration {
	return time.Duration(max(n, 1)) * base
}

// Constant waits base between every attempt.
type Constant struct{}

// Delay implements Strategy.
func (Constant) Delay(_ int, base time.Duration) time.Duration {
	return base
}

// ExponentialJitter picks a uniform wait in [0, base * 2^(n-1)] ("full jitter").
// Rand returns a value in [0, 1); nil uses math/rand/v2.
type ExponentialJitter struct {
	Rand func() float64
}

// Delay implements Strategy.
func (s ExponentialJitter) Delay(n int, base time.Duration) time.Duration {
	r := s.Rand
	if r == nil {
		r = rand.Float64
	}
	return time.Duration(float64(Exponential{}.Delay(n, base)) * r())
}
