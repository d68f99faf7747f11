package clock

import (
	"sync"
	"time"
)

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system clock.
type Real struct{}

// Now returns the current time in UTC.
func (Real) Now() time.Time { return time.Now().UTC() }

// Mock is a Clock that always returns a fixed time.
type Mock struct {
	T time.Time
}

// Now returns the fixed time.
func (m Mock) Now() time.Time { return m.T }

// Stepper is a Clock that advances by Step on every call, starting at Start.
// Useful where ordering by timestamp matters.
type Stepper struct {
	mu    sync.Mutex
	Start time.Time
	Step  time.Duration
	n     int
}

// Now returns Start + n*Step and increments n.
func (s *Stepper) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.Start.Add(time.Duration(s.n) * s.Step)
	s.n++
	return t
}

// DayBounds returns the start of t's day and the start of the following day,
// both in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
