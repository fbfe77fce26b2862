// Package usecase contains the detection pipeline logic: debounce,
// dispatch and event routing.
package usecase

import (
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// Flight identifies one in-flight dispatch. Finishing a flight that the
// watchdog already force-cleared does not release a newer one.
type Flight uint64

// Controller owns the process-wide CooldownState.
type Controller struct {
	mu     sync.Mutex
	clock  domain.Clock
	state  domain.CooldownState
	flight Flight
}

// NewController creates a controller with detection enabled.
func NewController(clock domain.Clock) *Controller {
	return &Controller{
		clock: clock,
		state: domain.CooldownState{DetectionEnabled: true},
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() domain.CooldownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) LastDetected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.LastDetectedText
}

func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.DetectionEnabled
}

func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.DetectionEnabled = enabled
}

// NoteInput records typed text in the current-input buffer.
func (c *Controller) NoteInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CurrentInput = text
	c.state.LastInputTime = c.clock.Now()
}

// TryBegin starts a flight for text. It fails when detection is disabled
// or another flight is active; the event is then dropped, not queued.
func (c *Controller) TryBegin(text string) (Flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.DetectionEnabled || c.state.InFlight {
		return 0, false
	}
	now := c.clock.Now()
	c.flight++
	c.state.InFlight = true
	c.state.InFlightSince = now
	c.state.LastDetectedText = text
	c.state.LastInputTime = now
	return c.flight, true
}

// Finish releases flight f. Returns false if f is no longer the active flight.
func (c *Controller) Finish(f Flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.InFlight || f != c.flight {
		return false
	}
	c.state.InFlight = false
	c.state.InFlightSince = time.Time{}
	return true
}

// ResetAfterDetection clears the duplicate filter and the input buffer so
// new text in the same field is detected immediately.
func (c *Controller) ResetAfterDetection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastDetectedText = ""
	c.state.CurrentInput = ""
}

// HealStuck force-clears a flight older than timeout.
func (c *Controller) HealStuck(timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.InFlight || c.clock.Now().Sub(c.state.InFlightSince) <= timeout {
		return false
	}
	c.state.InFlight = false
	c.state.InFlightSince = time.Time{}
	return true
}

// ResetIfInactive forgets the last detected text after window without
// input, so previously seen text can be detected again.
func (c *Controller) ResetIfInactive(window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.LastInputTime.IsZero() || c.clock.Now().Sub(c.state.LastInputTime) <= window {
		return false
	}
	c.state.LastDetectedText = ""
	c.state.LastInputTime = time.Time{}
	return true
}

// Reset clears text, buffer, flight and input time. The enable switch is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	enabled := c.state.DetectionEnabled
	c.state = domain.CooldownState{DetectionEnabled: enabled}
}

// Restart resets state and re-enables detection.
func (c *Controller) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = domain.CooldownState{DetectionEnabled: true}
}
