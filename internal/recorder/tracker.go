package recorder

import (
	"sync"
	"time"
)

// Tracker derives elapsed seconds from a wall-clock anchor and device polls. The device counter can
// lag or briefly drop to zero, so the reported value is the max of both and never goes backwards.
type Tracker struct {
	mu      sync.Mutex
	clock   func() time.Time
	anchor  time.Time
	running bool
	elapsed int
}

// NewTracker creates a tracker. A nil clock uses time.Now.
func NewTracker(clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{clock: clock}
}

// Start anchors the timeline at now and resets the elapsed value.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.anchor = t.clock()
	t.running = true
	t.elapsed = 0
}

// Observe folds one device poll into the elapsed value and returns it. Pass 0 when the poll failed.
func (t *Tracker) Observe(device time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return t.elapsed
	}
	t.fold(device)
	return t.elapsed
}

// Elapsed returns the last computed value without polling.
func (t *Tracker) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Stop clears the anchor and returns the final duration, at least one second.
func (t *Tracker) Stop() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.fold(0)
		t.running = false
		t.anchor = time.Time{}
	}
	if t.elapsed < 1 {
		t.elapsed = 1
	}
	return t.elapsed
}

func (t *Tracker) fold(device time.Duration) {
	local := int(t.clock().Sub(t.anchor) / time.Second)
	dev := int(device / time.Second)
	if local > t.elapsed {
		t.elapsed = local
	}
	if dev > t.elapsed {
		t.elapsed = dev
	}
}
