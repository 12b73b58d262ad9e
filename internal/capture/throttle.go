package capture

import (
	"sync"
	"time"
)

// Throttle defaults.
const (
	IdleFPS     = 5
	ActiveFPS   = 15
	IdleTimeout = 2 * time.Second
)

// Throttle switches between an idle and an active frame rate. Motion
// switches to active immediately; IdleAfter without motion switches back.
type Throttle struct {
	idleFPS   int
	activeFPS int
	idleAfter time.Duration

	mu         sync.Mutex
	active     bool
	lastMotion time.Time
}

// NewThrottle creates a Throttle starting in idle mode. Non-positive
// arguments use the package defaults.
func NewThrottle(idleFPS, activeFPS int, idleAfter time.Duration) *Throttle {
	if idleFPS <= 0 {
		idleFPS = IdleFPS
	}
	if activeFPS <= 0 {
		activeFPS = ActiveFPS
	}
	if idleAfter <= 0 {
		idleAfter = IdleTimeout
	}
	return &Throttle{
		idleFPS:   idleFPS,
		activeFPS: activeFPS,
		idleAfter: idleAfter,
	}
}

// Observe records whether the latest frame showed motion and returns the
// frame rate to use next. changed reports a mode switch.
func (t *Throttle) Observe(moving bool, now time.Time) (fps int, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if moving {
		t.lastMotion = now
		if !t.active {
			t.active = true
			changed = true
		}
	} else if t.active && now.Sub(t.lastMotion) > t.idleAfter {
		t.active = false
		changed = true
	}

	return t.fpsLocked(), changed
}

// Active reports whether the throttle is in active mode.
func (t *Throttle) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// FPS returns the current frame rate.
func (t *Throttle) FPS() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fpsLocked()
}

// Interval returns the time between frames at the current rate.
func (t *Throttle) Interval() time.Duration {
	return time.Second / time.Duration(t.FPS())
}

func (t *Throttle) fpsLocked() int {
	if t.active {
		return t.activeFPS
	}
	return t.idleFPS
}
