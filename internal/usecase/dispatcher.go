package usecase

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/metrics"
)

// DispatcherConfig holds dispatch thresholds.
type DispatcherConfig struct {
	ConfidenceThreshold float64       // Side effects need confidence strictly above this
	GracePeriod         time.Duration // Hold the flight after a detection
}

// DefaultDispatcherConfig returns default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		ConfidenceThreshold: 0.75,
		GracePeriod:         500 * time.Millisecond,
	}
}

// Dispatcher classifies gated text and fans a positive verdict out to the
// log, the overlay and the clearing chain, in that order.
type Dispatcher struct {
	config     DispatcherConfig
	classifier domain.Classifier
	store      domain.ActivityStore
	presenter  domain.Presenter
	remediator domain.Remediator
	names      domain.AppNameResolver
	cooldown   *Controller
	clock      domain.Clock
	logger     *zap.Logger
	metrics    *metrics.Metrics

	appends sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	config DispatcherConfig,
	classifier domain.Classifier,
	store domain.ActivityStore,
	presenter domain.Presenter,
	remediator domain.Remediator,
	names domain.AppNameResolver,
	cooldown *Controller,
	clock domain.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		config:     config,
		classifier: classifier,
		store:      store,
		presenter:  presenter,
		remediator: remediator,
		names:      names,
		cooldown:   cooldown,
		clock:      clock,
		logger:     logger,
		metrics:    m,
	}
}

// Dispatch runs one classification for flight f and releases f on every
// exit path. Classification errors are logged and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, f Flight, text, appID string, node domain.Node) *domain.DispatchResult {
	start := d.clock.Now()
	result := &domain.DispatchResult{
		Text:       text,
		AppID:      appID,
		ExecutedAt: start,
	}
	defer func() {
		d.cooldown.Finish(f)
		elapsed := d.clock.Now().Sub(start)
		result.DurationMs = elapsed.Milliseconds()
		d.metrics.Dispatched(string(result.Outcome), elapsed.Seconds())
	}()

	verdict, err := d.classifier.Classify(ctx, text)
	if err != nil {
		d.logger.Warn("classification failed",
			zap.String("app", appID),
			zap.String("text", preview(text)),
			zap.Error(err))
		result.Outcome = domain.OutcomeFailed
		result.Err = err
		return result
	}
	result.Verdict = verdict

	if !verdict.IsViolation || verdict.Confidence <= d.config.ConfidenceThreshold {
		d.logger.Debug("text is safe",
			zap.String("app", appID),
			zap.Bool("violation", verdict.IsViolation),
			zap.Float64("confidence", verdict.Confidence))
		result.Outcome = domain.OutcomeSafe
		return result
	}
	result.Outcome = domain.OutcomeDetected

	d.logger.Info("violation detected",
		zap.String("app", appID),
		zap.String("category", string(verdict.Category)),
		zap.Float64("confidence", verdict.Confidence),
		zap.String("text", preview(text)))

	d.record(domain.NewDetectedActivity(text, verdict.Category, appID, d.names.DisplayName(appID), start, verdict.Confidence))
	result.Presented = d.presenter.Present(verdict)
	result.Clear = d.remediator.AttemptClear(ctx, node, appID)
	d.cooldown.ResetAfterDetection()

	d.grace(ctx)
	return result
}

// Wait blocks until pending log appends finish.
func (d *Dispatcher) Wait() {
	d.appends.Wait()
}

// record appends in the background. The write outlives the dispatch and
// is awaited by Wait on shutdown.
func (d *Dispatcher) record(activity domain.DetectedActivity) {
	d.appends.Add(1)
	go func() {
		defer d.appends.Done()
		if err := d.store.Append(context.Background(), activity); err != nil {
			d.logger.Error("failed to record activity",
				zap.String("id", activity.ID),
				zap.Error(err))
			return
		}
		d.metrics.SetActivities(d.store.Count())
	}()
}

func (d *Dispatcher) grace(ctx context.Context) {
	if d.config.GracePeriod <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-d.clock.After(d.config.GracePeriod):
	}
}

const previewRunes = 30

// preview shortens user text for logs.
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes]) + "..."
}
