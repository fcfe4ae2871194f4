package timer

import (
	"sync"
	"time"
)

// Timer measures the elapsed time of a command and of its current stage.
type Timer interface {
	// Start resets the timer and begins measuring.
	Start()
	// NewStage marks the beginning of a new stage.
	NewStage()
	// GetTiming returns the total elapsed time and the elapsed time of the current stage.
	GetTiming() (time.Duration, time.Duration)
	// Stop freezes the timer. Subsequent GetTiming calls return the frozen values.
	Stop()
}

// clock is replaced in tests.
type clock func() time.Time

type stageTimer struct {
	mu         sync.Mutex
	now        clock
	start      time.Time
	stageStart time.Time
	stopped    bool
	stoppedAt  time.Time
}

// New returns a Timer backed by the wall clock.
func New() Timer {
	return newWithClock(time.Now)
}

func newWithClock(now clock) *stageTimer {
	return &stageTimer{now: now}
}

func (t *stageTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.now()
	t.start = current
	t.stageStart = current
	t.stopped = false
}

func (t *stageTimer) NewStage() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.start.IsZero() {
		t.start = t.now()
	}

	t.stageStart = t.now()
}

func (t *stageTimer) GetTiming() (time.Duration, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.start.IsZero() {
		return 0, 0
	}

	end := t.now()
	if t.stopped {
		end = t.stoppedAt
	}

	return end.Sub(t.start), end.Sub(t.stageStart)
}

func (t *stageTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.stopped = true
	t.stoppedAt = t.now()
}
