package common

import (
	"fmt"
	"time"
)

// Timer measures elapsed wall time for a pipeline stage. Stop records the
// duration once; later calls return the recorded value.
type Timer struct {
	name    string
	started time.Time
	elapsed time.Duration
	stopped bool
}

// NewTimer starts an unnamed timer.
func NewTimer() *Timer {
	return &Timer{started: time.Now()}
}

// NewNamedTimer starts a timer labeled with a stage name.
func NewNamedTimer(name string) *Timer {
	t := NewTimer()
	t.name = name
	return t
}

// Stop records the elapsed duration on first call and returns it.
func (t *Timer) Stop() time.Duration {
	if !t.stopped {
		t.elapsed = time.Since(t.started)
		t.stopped = true
	}
	return t.elapsed
}

// Duration returns the recorded duration, zero before Stop.
func (t *Timer) Duration() time.Duration {
	return t.elapsed
}

// Name returns the stage name, empty for unnamed timers.
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	if t.name == "" {
		return t.elapsed.String()
	}
	return fmt.Sprintf("%s: %s", t.name, t.elapsed)
}
