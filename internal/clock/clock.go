package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Since returns the time elapsed since t as observed by NowFunc.
func Since(t time.Time) time.Duration { return NowFunc().Sub(t) }

// Stepper is a manual clock that advances by a fixed step on every reading.
// It is meant for tests that need frame budgets to elapse deterministically.
type Stepper struct {
	now  time.Time
	step time.Duration
}

// NewStepper returns a manual clock starting at start.
func NewStepper(start time.Time, step time.Duration) *Stepper {
	return &Stepper{now: start, step: step}
}

// Now returns the current reading and advances the clock by the step.
func (s *Stepper) Now() time.Time {
	ret := s.now
	s.now = s.now.Add(s.step)
	return ret
}

// Advance moves the clock forward by d without producing a reading.
func (s *Stepper) Advance(d time.Duration) { s.now = s.now.Add(d) }
