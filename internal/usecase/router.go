package usecase

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/metrics"
	"github.com/eliteGoblin/focusd/inputguard/internal/nodetree"
	"github.com/eliteGoblin/focusd/inputguard/internal/policy"
)

// RouterConfig holds per-kind routing parameters.
type RouterConfig struct {
	NodeTextMinLength  int           // Focused/Clicked need node text longer than this
	ScrollMinLength    int           // Scrolled needs event text longer than this
	WindowStateDelay   time.Duration // Wait for a new window to render before scanning
	BrowserRescanDelay time.Duration // Second scan for browsers after content changes
	Scan               nodetree.Limits
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		NodeTextMinLength:  5,
		ScrollMinLength:    2,
		WindowStateDelay:   500 * time.Millisecond,
		BrowserRescanDelay: 100 * time.Millisecond,
		Scan:               nodetree.DefaultLimits(),
	}
}

// dispatcher is satisfied by *Dispatcher.
type dispatcher interface {
	Dispatch(ctx context.Context, f Flight, text, appID string, node domain.Node) *domain.DispatchResult
}

// Router turns host events into gated dispatches. Each event kind has
// exactly one route.
type Router struct {
	config     RouterConfig
	gate       *policy.Gate
	registry   *policy.Registry
	cooldown   *Controller
	dispatcher dispatcher
	windows    domain.WindowSource
	clock      domain.Clock
	logger     *zap.Logger
	metrics    *metrics.Metrics

	inflight sync.WaitGroup
	scans    sync.WaitGroup // delayed scans not yet run or stopped

	mu      sync.Mutex
	stopped bool
	seq     int
	timers  map[int]domain.Timer
}

// NewRouter creates a router.
func NewRouter(
	config RouterConfig,
	gate *policy.Gate,
	registry *policy.Registry,
	cooldown *Controller,
	d dispatcher,
	windows domain.WindowSource,
	clock domain.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Router {
	return &Router{
		config:     config,
		gate:       gate,
		registry:   registry,
		cooldown:   cooldown,
		dispatcher: d,
		windows:    windows,
		clock:      clock,
		logger:     logger,
		metrics:    m,
		timers:     make(map[int]domain.Timer),
	}
}

// Handle routes one event. It never blocks on classification.
func (r *Router) Handle(ctx context.Context, ev domain.InputEvent) {
	if !r.cooldown.Enabled() {
		r.metrics.Dropped("disabled")
		return
	}

	switch ev.Kind {
	case domain.KindTextChanged:
		r.onTextChanged(ctx, ev)
	case domain.KindSelectionChanged:
		r.onSelectionChanged(ctx, ev)
	case domain.KindFocused, domain.KindClicked:
		r.onNodeActivated(ctx, ev)
	case domain.KindScrolled:
		r.onScrolled(ctx, ev)
	case domain.KindWindowContentChanged:
		r.onWindowContentChanged(ctx, ev)
	case domain.KindWindowStateChanged:
		r.onWindowStateChanged(ctx, ev)
	default:
		r.logger.Error("unrouted event kind", zap.String("kind", string(ev.Kind)))
		r.metrics.Dropped("unknown_kind")
	}
}

// Stop cancels pending delayed scans. Events handled afterwards still route.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, t := range r.timers {
		if t.Stop() {
			r.scans.Done()
		}
		delete(r.timers, id)
	}
}

// Drain blocks until every scheduled scan has run and every dispatch it
// started has returned. Handle must not be called concurrently.
func (r *Router) Drain() {
	r.scans.Wait()
	r.inflight.Wait()
}

// Wait blocks until all dispatches started by the router return.
func (r *Router) Wait() {
	r.inflight.Wait()
}

// PendingScans returns the number of scheduled delayed scans.
func (r *Router) PendingScans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *Router) onTextChanged(ctx context.Context, ev domain.InputEvent) {
	if r.gate.IsNoise(ev.Text) {
		r.metrics.GateRejected("noise")
		return
	}
	r.cooldown.NoteInput(ev.Text)
	r.submit(ctx, ev.Text, ev.AppID, ev.Node)
}

func (r *Router) onSelectionChanged(ctx context.Context, ev domain.InputEvent) {
	text := ev.Text
	if ev.Node != nil {
		if sel := ev.Node.SelectedText(); sel != "" {
			text = sel
		}
	}
	r.submit(ctx, text, ev.AppID, ev.Node)
}

func (r *Router) onNodeActivated(ctx context.Context, ev domain.InputEvent) {
	if ev.Node == nil || !ev.Node.IsEditable() {
		return
	}
	text := ev.Node.Text()
	if utf8.RuneCountInString(text) <= r.config.NodeTextMinLength {
		return
	}
	r.submit(ctx, text, ev.AppID, ev.Node)
}

func (r *Router) onScrolled(ctx context.Context, ev domain.InputEvent) {
	if utf8.RuneCountInString(ev.Text) <= r.config.ScrollMinLength {
		return
	}
	r.submit(ctx, ev.Text, ev.AppID, ev.Node)
}

func (r *Router) onWindowContentChanged(ctx context.Context, ev domain.InputEvent) {
	r.scan(ctx, ev.AppID)
	if r.registry.IsBrowser(ev.AppID) {
		r.after(ctx, r.config.BrowserRescanDelay, func() { r.scan(ctx, ev.AppID) })
	}
}

func (r *Router) onWindowStateChanged(ctx context.Context, ev domain.InputEvent) {
	r.after(ctx, r.config.WindowStateDelay, func() { r.scan(ctx, ev.AppID) })
}

// scan submits the first window candidate that starts a dispatch.
func (r *Router) scan(ctx context.Context, appID string) bool {
	if r.windows == nil {
		return false
	}
	root := r.windows.ActiveRoot()
	if root == nil {
		return false
	}
	for _, c := range FindCandidates(root, r.registry.IsBrowser(appID), r.config.Scan) {
		if r.submit(ctx, c.Text, appID, c.Node) {
			return true
		}
	}
	return false
}

// submit gates text and, if a flight can start, dispatches in the background.
func (r *Router) submit(ctx context.Context, text, appID string, node domain.Node) bool {
	if reason := r.gate.Check(text, appID, r.cooldown.LastDetected()); reason != policy.Accept {
		r.metrics.GateRejected(string(reason))
		r.logger.Debug("gate rejected text",
			zap.String("app", appID),
			zap.String("reason", string(reason)))
		return false
	}

	flight, ok := r.cooldown.TryBegin(text)
	if !ok {
		r.metrics.Dropped("in_flight")
		r.logger.Debug("analysis in flight, dropping", zap.String("app", appID))
		return false
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.dispatcher.Dispatch(ctx, flight, text, appID, node)
	}()
	return true
}

func (r *Router) after(ctx context.Context, d time.Duration, f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	r.seq++
	id := r.seq
	r.scans.Add(1)
	r.timers[id] = r.clock.AfterFunc(d, func() {
		defer r.scans.Done()

		r.mu.Lock()
		delete(r.timers, id)
		stopped := r.stopped
		r.mu.Unlock()

		if stopped || ctx.Err() != nil {
			return
		}
		f()
	})
}
