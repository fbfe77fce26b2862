package daemon

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/metrics"
	"github.com/eliteGoblin/focusd/inputguard/internal/overlay"
	"github.com/eliteGoblin/focusd/inputguard/internal/usecase"
)

// errSourceClosed ends the event loop when the host stops delivering.
var errSourceClosed = errors.New("event source closed")

// Service is one running pipeline. The event loop and both watchdogs share
// a single parent scope and stop together.
type Service struct {
	router     *usecase.Router
	dispatcher *usecase.Dispatcher
	cooldown   *usecase.Controller
	overlay    *overlay.Machine
	health     *HealthWatchdog
	liveness   *LivenessWatchdog
	keepAlive  domain.KeepAlive
	store      domain.ActivityStore
	backend    domain.ActivityBackend
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// Run acquires the keep-alive resource and processes events until ctx is
// canceled or events is closed. Shutdown always drains in-flight
// dispatches and tears the overlay down.
func (s *Service) Run(ctx context.Context, events <-chan domain.InputEvent) error {
	if s.keepAlive != nil {
		if err := s.keepAlive.Acquire(); err != nil {
			return fmt.Errorf("failed to acquire keep-alive: %w", err)
		}
	}
	defer s.shutdown()

	s.logger.Info("pipeline started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.health.Run(gctx) })
	g.Go(func() error { return s.liveness.Run(gctx) })
	g.Go(func() error { return s.loop(gctx, events) })

	err := g.Wait()
	if errors.Is(err, errSourceClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) loop(ctx context.Context, events <-chan domain.InputEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				// Run pending scans and let their dispatches finish before
				// the scope is canceled.
				s.router.Drain()
				s.logger.Info("event source closed")
				return errSourceClosed
			}
			s.router.Handle(ctx, ev)
		}
	}
}

func (s *Service) shutdown() {
	s.router.Stop()
	s.router.Wait()
	s.dispatcher.Wait()
	s.overlay.Teardown()
	s.metrics.SetActivities(s.store.Count())

	if s.keepAlive != nil {
		if err := s.keepAlive.Release(); err != nil {
			s.logger.Warn("failed to release keep-alive", zap.Error(err))
		}
	}
	s.logger.Info("pipeline stopped")
}

// Handle routes one event outside of Run. Used by callers that own their
// own event loop.
func (s *Service) Handle(ctx context.Context, ev domain.InputEvent) {
	s.router.Handle(ctx, ev)
}

// ResetDetection clears the cooldown state, keeping the enable switch.
func (s *Service) ResetDetection() {
	s.cooldown.Reset()
	s.logger.Info("detection state reset")
}

// RestartDetection clears the cooldown state and re-enables detection.
func (s *Service) RestartDetection() {
	s.cooldown.Restart()
	s.logger.Info("detection restarted")
}

// SetDetectionEnabled flips the detection switch.
func (s *Service) SetDetectionEnabled(enabled bool) {
	s.cooldown.SetEnabled(enabled)
	s.logger.Info("detection switch changed", zap.Bool("enabled", enabled))
}

// Store returns the activity log.
func (s *Service) Store() domain.ActivityStore {
	return s.store
}

// Overlay returns the overlay state machine.
func (s *Service) Overlay() *overlay.Machine {
	return s.overlay
}

// Cooldown returns the cooldown controller.
func (s *Service) Cooldown() *usecase.Controller {
	return s.cooldown
}

// Close releases the activity log backend. Call after Run returns.
func (s *Service) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
