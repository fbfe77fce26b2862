package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/metrics"
	"github.com/eliteGoblin/focusd/inputguard/internal/usecase"
)

// LivenessConfig holds liveness watchdog configuration.
type LivenessConfig struct {
	Interval time.Duration // How often to check (default 30s)
}

// DefaultLivenessConfig returns default liveness watchdog configuration.
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		Interval: 30 * time.Second,
	}
}

// LivenessWatchdog keeps detection switched on and the host observer alive.
type LivenessWatchdog struct {
	config   LivenessConfig
	cooldown *usecase.Controller
	host     domain.HostMonitor
	clock    domain.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewLivenessWatchdog creates a liveness watchdog. host may be nil.
func NewLivenessWatchdog(config LivenessConfig, cooldown *usecase.Controller, host domain.HostMonitor, clock domain.Clock, logger *zap.Logger, m *metrics.Metrics) *LivenessWatchdog {
	return &LivenessWatchdog{
		config:   config,
		cooldown: cooldown,
		host:     host,
		clock:    clock,
		logger:   logger,
		metrics:  m,
	}
}

// Run checks on every interval until ctx is canceled.
func (w *LivenessWatchdog) Run(ctx context.Context) error {
	w.logger.Debug("liveness watchdog started", zap.Duration("interval", w.config.Interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("liveness watchdog stopping")
			return ctx.Err()
		case <-w.clock.After(w.config.Interval):
			w.Check()
		}
	}
}

// Check runs one liveness pass and returns the number of repairs attempted.
func (w *LivenessWatchdog) Check() int {
	healed := 0

	if !w.cooldown.Enabled() {
		w.logger.Warn("detection was disabled, re-enabling")
		w.cooldown.SetEnabled(true)
		w.metrics.WatchdogHealed("reenabled")
		healed++
	}

	if w.host == nil || w.host.IsObserving() {
		return healed
	}

	w.logger.Warn("host observer not running, requesting restart")
	w.metrics.WatchdogHealed("host_restart")
	healed++
	if err := w.host.RequestRestart(); err != nil {
		w.logger.Error("failed to restart host observer", zap.Error(err))
	} else {
		w.logger.Info("host observer restart requested")
	}
	return healed
}
