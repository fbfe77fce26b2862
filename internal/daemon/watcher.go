// Package daemon hosts the long-running side of the pipeline: the health
// and liveness watchdogs, the service runtime and the composition root.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/metrics"
	"github.com/eliteGoblin/focusd/inputguard/internal/usecase"
)

// HealthConfig holds health watchdog configuration.
type HealthConfig struct {
	Interval        time.Duration // How often to check (default 15s)
	InFlightTimeout time.Duration // A flight older than this is stuck
	InactivityReset time.Duration // Forget the last detection after this much silence
}

// DefaultHealthConfig returns default health watchdog configuration.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Interval:        15 * time.Second,
		InFlightTimeout: 5 * time.Second,
		InactivityReset: 60 * time.Second,
	}
}

// HealthWatchdog repairs the cooldown state. A classification that never
// returns leaves the in-flight flag set forever; this is the only thing
// that clears it.
type HealthWatchdog struct {
	config   HealthConfig
	cooldown *usecase.Controller
	clock    domain.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewHealthWatchdog creates a health watchdog.
func NewHealthWatchdog(config HealthConfig, cooldown *usecase.Controller, clock domain.Clock, logger *zap.Logger, m *metrics.Metrics) *HealthWatchdog {
	return &HealthWatchdog{
		config:   config,
		cooldown: cooldown,
		clock:    clock,
		logger:   logger,
		metrics:  m,
	}
}

// Run checks on every interval until ctx is canceled.
func (w *HealthWatchdog) Run(ctx context.Context) error {
	w.logger.Debug("health watchdog started", zap.Duration("interval", w.config.Interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("health watchdog stopping")
			return ctx.Err()
		case <-w.clock.After(w.config.Interval):
			w.Check()
		}
	}
}

// Check runs one health pass and returns the number of repairs made.
func (w *HealthWatchdog) Check() int {
	healed := 0

	if w.cooldown.HealStuck(w.config.InFlightTimeout) {
		w.logger.Warn("detection stuck in flight, resetting",
			zap.Duration("timeout", w.config.InFlightTimeout))
		w.metrics.WatchdogHealed("stuck_flight")
		healed++
	}

	if w.cooldown.ResetIfInactive(w.config.InactivityReset) {
		w.logger.Debug("input inactive, cleared last detection")
		w.metrics.WatchdogHealed("inactivity")
		healed++
	}

	return healed
}
