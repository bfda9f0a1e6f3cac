package guidance

import (
	"sync"
	"time"
)

// DefaultInterval is the minimum time between two emitted guidance messages
const DefaultInterval = 3000 * time.Millisecond

// State is the rate limit state of a capture session.
// LastEmission is only meaningful once Emitted is set.
type State struct {
	Emitted      bool
	LastEmission time.Time
	MinInterval  time.Duration
}

// ShouldEmit reports whether guidance may be emitted at now and, if so,
// records now as the last emission.
func ShouldEmit(now time.Time, state *State) bool {
	if state.Emitted && now.Sub(state.LastEmission) < state.MinInterval {
		return false
	}
	state.Emitted = true
	state.LastEmission = now
	return true
}

// Gate serializes access to a session's State and carries the user's
// enabled/disabled toggle.
type Gate struct {
	mu      sync.Mutex
	state   State
	enabled bool
}

// NewGate creates an enabled or disabled gate with the given interval
func NewGate(interval time.Duration, enabled bool) *Gate {
	if interval < 0 {
		interval = 0
	}
	return &Gate{
		state:   State{MinInterval: interval},
		enabled: enabled,
	}
}

// ShouldEmit decides and records an emission at now under a single lock
func (g *Gate) ShouldEmit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return false
	}
	return ShouldEmit(now, &g.state)
}

// Ready reports whether an emission at now would pass, without recording it
func (g *Gate) Ready(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return false
	}
	s := g.state
	return ShouldEmit(now, &s)
}

// SetEnabled turns guidance output on or off
func (g *Gate) SetEnabled(enabled bool) {
	g.mu.Lock()
	g.enabled = enabled
	g.mu.Unlock()
}

// Toggle flips the enabled flag and returns the new value
func (g *Gate) Toggle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = !g.enabled
	return g.enabled
}

// Enabled reports whether guidance output is on
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Reset forgets the last emission, as on a session restart
func (g *Gate) Reset() {
	g.mu.Lock()
	g.state.Emitted = false
	g.state.LastEmission = time.Time{}
	g.mu.Unlock()
}

// Interval returns the minimum interval between emissions
func (g *Gate) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.MinInterval
}

// Snapshot returns a copy of the current state
func (g *Gate) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
