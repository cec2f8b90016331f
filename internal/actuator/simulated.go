package actuator

import (
	"errors"
	"sync"
	"time"
)

// ErrLineClosed is returned by the simulated driver for writes after Close.
var ErrLineClosed = errors.New("actuator: line closed")

// Write records one output change observed by the simulated driver.
type Write struct {
	Active bool
	High   bool
	Reset  bool
	At     time.Time
}

// Simulated is an in-memory driver for development machines and tests.
// It records every write and can be told to fail.
type Simulated struct {
	pol Polarity

	mu      sync.Mutex
	active  bool
	writes  []Write
	failErr error
	closed  bool
}

// NewSimulated returns a simulated line at the inactive level.
func NewSimulated(pol Polarity) *Simulated {
	return &Simulated{pol: pol}
}

func (s *Simulated) SetOutput(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrLineClosed
	}
	if s.failErr != nil {
		return s.failErr
	}
	s.active = active
	s.writes = append(s.writes, Write{Active: active, High: s.pol.High(active), At: time.Now()})
	return nil
}

func (s *Simulated) ResetToDefault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrLineClosed
	}
	if s.failErr != nil {
		return s.failErr
	}
	s.active = false
	s.writes = append(s.writes, Write{High: s.pol.High(false), Reset: true, At: time.Now()})
	return nil
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Active reports the current logical level of the line.
func (s *Simulated) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Writes returns a copy of the recorded writes.
func (s *Simulated) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Write, len(s.writes))
	copy(out, s.writes)
	return out
}

// FailWith makes every following write return err; nil restores normal operation.
func (s *Simulated) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Closed reports whether Close was called.
func (s *Simulated) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
