// Package overlay drives the warning overlay lifecycle:
//
//	Idle -> AnimatingIn -> Visible -> AnimatingOut -> Idle
//
// All surface calls happen under the machine lock, so the surface sees a
// serialized call sequence. Timer callbacks carry the generation they were
// scheduled in and are ignored once a teardown has bumped it.
package overlay

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/metrics"
)

// Config holds overlay timings.
type Config struct {
	Cooldown         time.Duration // Minimum gap between two shown overlays
	EnterDuration    time.Duration
	DisplayDuration  time.Duration // Auto-dismiss after this long in Visible
	ExitDuration     time.Duration
	ProgressInterval time.Duration // Auto-dismiss progress tick
}

// DefaultConfig returns default overlay timings.
func DefaultConfig() Config {
	return Config{
		Cooldown:         2 * time.Second,
		EnterDuration:    300 * time.Millisecond,
		DisplayDuration:  3 * time.Second,
		ExitDuration:     200 * time.Millisecond,
		ProgressInterval: 30 * time.Millisecond,
	}
}

// TransitionFunc observes phase changes. It runs after the machine lock is
// released and may call back into the machine.
type TransitionFunc func(from, to domain.OverlayPhase)

type transition struct {
	from, to domain.OverlayPhase
}

// Machine is the single-slot overlay state machine.
type Machine struct {
	config  Config
	surface domain.OverlaySurface
	clock   domain.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	phase     domain.OverlayPhase
	handle    domain.OverlayHandle
	lastShown time.Time
	visibleAt time.Time
	gen       uint64
	phaseT    domain.Timer // enter or exit completion
	tickT     domain.Timer // auto-dismiss progress
	hook      TransitionFunc
	pending   []transition
}

// NewMachine creates an idle machine.
func NewMachine(config Config, surface domain.OverlaySurface, clock domain.Clock, logger *zap.Logger, m *metrics.Metrics) *Machine {
	return &Machine{
		config:  config,
		surface: surface,
		clock:   clock,
		logger:  logger,
		metrics: m,
		phase:   domain.PhaseIdle,
	}
}

// OnTransition registers fn to observe phase changes.
func (m *Machine) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

func (m *Machine) Phase() domain.OverlayPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Active reports whether an overlay instance exists.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// Present shows a warning for v. The request is dropped when an overlay
// already exists or the previous one was shown less than Cooldown ago.
func (m *Machine) Present(v domain.Verdict) bool {
	m.mu.Lock()
	defer m.unlock()

	if m.handle != nil || m.phase != domain.PhaseIdle {
		m.metrics.OverlayDropped("busy")
		m.logger.Debug("overlay busy, dropping warning", zap.String("phase", string(m.phase)))
		return false
	}
	now := m.clock.Now()
	if !m.lastShown.IsZero() && now.Sub(m.lastShown) < m.config.Cooldown {
		m.metrics.OverlayDropped("cooldown")
		m.logger.Debug("overlay cooling down, dropping warning")
		return false
	}

	content := domain.NewOverlayContent(v)
	handle, err := m.surface.Add(content, domain.OverlayLayout())
	if err != nil {
		m.metrics.OverlayDropped("surface")
		m.logger.Error("failed to add overlay", zap.Error(err))
		m.teardownLocked()
		return false
	}
	m.handle = handle
	m.lastShown = now
	m.setPhaseLocked(domain.PhaseAnimatingIn)
	if !m.renderLocked(domain.OverlayFrame{Alpha: 0, Scale: 0, Progress: 100}) {
		return false
	}

	gen := m.gen
	m.phaseT = m.clock.AfterFunc(m.config.EnterDuration, func() { m.onEntered(gen) })

	m.logger.Info("overlay shown",
		zap.String("category", string(content.Category)),
		zap.String("title", content.Title))
	return true
}

// Dismiss starts the exit animation. Only honored while Visible.
func (m *Machine) Dismiss() bool {
	m.mu.Lock()
	defer m.unlock()

	if m.phase != domain.PhaseVisible {
		return false
	}
	m.beginExitLocked()
	return true
}

// Teardown removes any overlay and returns to Idle. Safe to call from any
// phase, any number of times.
func (m *Machine) Teardown() {
	m.mu.Lock()
	defer m.unlock()
	m.teardownLocked()
}

func (m *Machine) onEntered(gen uint64) {
	m.mu.Lock()
	defer m.unlock()

	if gen != m.gen || m.phase != domain.PhaseAnimatingIn {
		return
	}
	m.setPhaseLocked(domain.PhaseVisible)
	m.visibleAt = m.clock.Now()
	if !m.renderLocked(domain.OverlayFrame{Alpha: 1, Scale: 1, Progress: 100}) {
		return
	}
	m.scheduleTickLocked()
}

func (m *Machine) onTick(gen uint64) {
	m.mu.Lock()
	defer m.unlock()

	if gen != m.gen || m.phase != domain.PhaseVisible {
		return
	}
	elapsed := m.clock.Now().Sub(m.visibleAt)
	if elapsed >= m.config.DisplayDuration {
		m.beginExitLocked()
		return
	}
	progress := 100 - int(elapsed*100/m.config.DisplayDuration)
	if !m.renderLocked(domain.OverlayFrame{Alpha: 1, Scale: 1, Progress: progress}) {
		return
	}
	m.scheduleTickLocked()
}

func (m *Machine) onExited(gen uint64) {
	m.mu.Lock()
	defer m.unlock()

	if gen != m.gen || m.phase != domain.PhaseAnimatingOut {
		return
	}
	m.teardownLocked()
}

func (m *Machine) scheduleTickLocked() {
	gen := m.gen
	interval := m.config.ProgressInterval
	if interval <= 0 || interval > m.config.DisplayDuration {
		interval = m.config.DisplayDuration
	}
	m.tickT = m.clock.AfterFunc(interval, func() { m.onTick(gen) })
}

func (m *Machine) beginExitLocked() {
	stopTimer(&m.tickT)
	stopTimer(&m.phaseT)
	m.setPhaseLocked(domain.PhaseAnimatingOut)
	if !m.renderLocked(domain.OverlayFrame{Alpha: 1, Scale: 1, Progress: 0}) {
		return
	}
	gen := m.gen
	m.phaseT = m.clock.AfterFunc(m.config.ExitDuration, func() { m.onExited(gen) })
}

// renderLocked pushes a frame; a surface failure tears the overlay down.
func (m *Machine) renderLocked(frame domain.OverlayFrame) bool {
	if err := m.surface.Update(m.handle, frame); err != nil {
		m.logger.Error("failed to update overlay", zap.Error(err))
		m.teardownLocked()
		return false
	}
	return true
}

func (m *Machine) teardownLocked() {
	stopTimer(&m.phaseT)
	stopTimer(&m.tickT)
	if m.handle != nil {
		if err := m.surface.Remove(m.handle); err != nil {
			m.logger.Error("failed to remove overlay", zap.Error(err))
		}
		m.handle = nil
	}
	m.gen++
	if m.phase != domain.PhaseIdle {
		m.setPhaseLocked(domain.PhaseIdle)
	}
}

func (m *Machine) setPhaseLocked(to domain.OverlayPhase) {
	from := m.phase
	m.phase = to
	m.metrics.OverlayTransition(string(from), string(to))
	m.logger.Debug("overlay transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	m.pending = append(m.pending, transition{from: from, to: to})
}

// unlock releases the lock and then reports queued transitions.
func (m *Machine) unlock() {
	pending := m.pending
	m.pending = nil
	hook := m.hook
	m.mu.Unlock()

	if hook == nil {
		return
	}
	for _, t := range pending {
		hook(t.from, t.to)
	}
}

func stopTimer(t *domain.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

var _ domain.Presenter = (*Machine)(nil)
