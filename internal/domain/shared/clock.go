package shared

import "time"

// Clock supplies the current time. Task timestamps, parameter-set audit
// columns and report windows all read through it so tests can pin time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time
type RealClock struct{}

// Now returns the current system time in UTC
func (r *RealClock) Now() time.Time {
	return time.Now().UTC()
}

// NewRealClock creates a RealClock
func NewRealClock() Clock {
	return &RealClock{}
}

// MockClock is a Clock frozen at a settable instant for tests
type MockClock struct {
	current time.Time
}

// NewMockClock creates a MockClock pinned to startTime; a zero startTime
// pins it to the wall clock at construction
func NewMockClock(startTime time.Time) *MockClock {
	if startTime.IsZero() {
		startTime = time.Now()
	}
	return &MockClock{current: startTime}
}

// Now returns the pinned time
func (m *MockClock) Now() time.Time {
	return m.current
}

// Advance moves the pinned time forward by d
func (m *MockClock) Advance(d time.Duration) {
	m.current = m.current.Add(d)
}

// SetTime re-pins the clock to t
func (m *MockClock) SetTime(t time.Time) {
	m.current = t
}
