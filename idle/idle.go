// Package idle supplies the time slices the reconciler works in.
//
// A Deadline tells the work loop how much of the current slice is left.
// Budget is a wall-clock slice; Steps counts units instead of time, which makes
// interruption points reproducible in tests. Driver owns the goroutine that
// runs the work loop and feeds it a slice every interval.
package idle

import (
	"math"
	"time"
)

// Deadline is the budget of the current idle slice.
type Deadline interface {
	TimeRemaining() time.Duration
}

type budget struct{ end time.Time }

// Budget returns a deadline that expires d from now.
func Budget(d time.Duration) Deadline {
	return budget{end: time.Now().Add(d)}
}

func (b budget) TimeRemaining() time.Duration {
	if r := time.Until(b.end); r > 0 {
		return r
	}
	return 0
}

type unbounded struct{}

func (unbounded) TimeRemaining() time.Duration { return math.MaxInt64 }

// Unbounded never expires.
var Unbounded Deadline = unbounded{}

// StepDeadline expires after a fixed number of checks.
type StepDeadline struct {
	left int
}

// Steps returns a deadline that reports an exhausted budget on its n-th check.
// A work loop that checks once per unit therefore runs n units.
func Steps(n int) *StepDeadline {
	return &StepDeadline{left: n}
}

func (s *StepDeadline) TimeRemaining() time.Duration {
	s.left--
	if s.left <= 0 {
		return 0
	}
	return time.Hour
}

// Left returns the number of checks before expiry.
func (s *StepDeadline) Left() int { return max(s.left, 0) }
