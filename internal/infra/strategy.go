package infra

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/metrics"
	"github.com/eliteGoblin/focusd/inputguard/internal/nodetree"
)

// SetTextStrategy sets the target field to empty.
type SetTextStrategy struct{}

func (SetTextStrategy) Name() string { return "set_text" }

func (SetTextStrategy) Applies(t domain.ClearTarget) bool {
	return t.Node != nil && t.Node.IsEditable()
}

func (SetTextStrategy) Clear(_ context.Context, t domain.ClearTarget) int {
	if t.Node.SetText("") {
		return 1
	}
	return 0
}

// SelectAllDeleteStrategy selects the whole field then deletes the selection.
type SelectAllDeleteStrategy struct{}

func (SelectAllDeleteStrategy) Name() string { return "select_all_delete" }

func (SelectAllDeleteStrategy) Applies(t domain.ClearTarget) bool {
	return t.Node != nil && t.Node.IsEditable()
}

func (SelectAllDeleteStrategy) Clear(_ context.Context, t domain.ClearTarget) int {
	return selectAndDelete(t.Node)
}

// AncestorStrategy walks up from the target looking for an editable container.
type AncestorStrategy struct {
	maxDepth int
}

func NewAncestorStrategy(maxDepth int) *AncestorStrategy {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	return &AncestorStrategy{maxDepth: maxDepth}
}

func (s *AncestorStrategy) Name() string { return "ancestor" }

func (s *AncestorStrategy) Applies(t domain.ClearTarget) bool {
	return t.Node != nil
}

func (s *AncestorStrategy) Clear(_ context.Context, t domain.ClearTarget) int {
	for _, a := range nodetree.Ancestors(t.Node, s.maxDepth) {
		if a.IsEditable() && a.SetText("") {
			return 1
		}
	}
	return 0
}

// TreeSweepStrategy clears every non-empty editable node in the active window.
type TreeSweepStrategy struct {
	limits nodetree.Limits
}

func NewTreeSweepStrategy(limits nodetree.Limits) *TreeSweepStrategy {
	return &TreeSweepStrategy{limits: limits}
}

func (s *TreeSweepStrategy) Name() string { return "tree_sweep" }

func (s *TreeSweepStrategy) Applies(t domain.ClearTarget) bool {
	return t.Window != nil
}

func (s *TreeSweepStrategy) Clear(ctx context.Context, t domain.ClearTarget) int {
	cleared := 0
	nodetree.Walk(t.Window, s.limits, func(n domain.Node, _ int) bool {
		if n.IsEditable() && n.Text() != "" && n.SetText("") {
			cleared++
		}
		return ctx.Err() == nil
	})
	return cleared
}

// BrowserSweepStrategy matches web input fields by class and description,
// since browser content often reports inputs as non-editable views. It runs
// a second pass after a settle delay to catch fields re-rendered by the page.
type BrowserSweepStrategy struct {
	limits nodetree.Limits
	settle time.Duration
	clock  domain.Clock
}

func NewBrowserSweepStrategy(limits nodetree.Limits, settle time.Duration, clock domain.Clock) *BrowserSweepStrategy {
	return &BrowserSweepStrategy{limits: limits, settle: settle, clock: clock}
}

func (s *BrowserSweepStrategy) Name() string { return "browser_sweep" }

func (s *BrowserSweepStrategy) Applies(t domain.ClearTarget) bool {
	return t.IsBrowser && t.Window != nil
}

func (s *BrowserSweepStrategy) Clear(ctx context.Context, t domain.ClearTarget) int {
	cleared := s.pass(ctx, t.Window)

	if s.settle > 0 {
		select {
		case <-ctx.Done():
			return cleared
		case <-s.clock.After(s.settle):
		}
	}
	return cleared + s.pass(ctx, t.Window)
}

func (s *BrowserSweepStrategy) pass(ctx context.Context, root domain.Node) int {
	cleared := 0
	nodetree.Walk(root, s.limits, func(n domain.Node, _ int) bool {
		if n.Text() != "" && IsWebInput(n) {
			if n.SetText("") || selectAndDelete(n) > 0 {
				cleared++
			}
		}
		return ctx.Err() == nil
	})
	return cleared
}

var (
	webInputClassMarkers = []string{"edittext", "input", "textarea", "text", "webview", "webkit"}
	webInputDescMarkers  = []string{"search", "input", "text"}
)

// IsWebInput reports whether a node looks like a text field rendered by
// web content.
func IsWebInput(n domain.Node) bool {
	if n.IsEditable() {
		return true
	}
	class := strings.ToLower(n.ClassName())
	for _, m := range webInputClassMarkers {
		if strings.Contains(class, m) {
			return true
		}
	}
	desc := strings.ToLower(n.ContentDescription())
	for _, m := range webInputDescMarkers {
		if strings.Contains(desc, m) {
			return true
		}
	}
	return false
}

func selectAndDelete(n domain.Node) int {
	n.SetSelection(0, utf8.RuneCountInString(n.Text()))
	if n.SetText("") {
		return 1
	}
	return 0
}

// browserDetector is satisfied by policy.Registry.
type browserDetector interface {
	IsBrowser(appID string) bool
}

// ClearOptions configures the default clearing chain.
type ClearOptions struct {
	AncestorDepth int
	Sweep         nodetree.Limits
	BrowserSettle time.Duration
}

// ClearChain implements domain.Remediator as an ordered strategy chain,
// stopping at the first strategy that clears anything.
type ClearChain struct {
	strategies []domain.ClearStrategy
	windows    domain.WindowSource
	browsers   browserDetector
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewClearChain builds the default chain:
// set_text, select_all_delete, ancestor, tree_sweep, browser_sweep.
func NewClearChain(opts ClearOptions, windows domain.WindowSource, browsers browserDetector, clock domain.Clock, logger *zap.Logger, m *metrics.Metrics) *ClearChain {
	return NewClearChainWithStrategies(windows, browsers, logger, m,
		SetTextStrategy{},
		SelectAllDeleteStrategy{},
		NewAncestorStrategy(opts.AncestorDepth),
		NewTreeSweepStrategy(opts.Sweep),
		NewBrowserSweepStrategy(opts.Sweep, opts.BrowserSettle, clock),
	)
}

// NewClearChainWithStrategies builds a chain with explicit strategies.
func NewClearChainWithStrategies(windows domain.WindowSource, browsers browserDetector, logger *zap.Logger, m *metrics.Metrics, strategies ...domain.ClearStrategy) *ClearChain {
	return &ClearChain{
		strategies: strategies,
		windows:    windows,
		browsers:   browsers,
		logger:     logger,
		metrics:    m,
	}
}

// GetStrategies returns the chain in execution order.
func (c *ClearChain) GetStrategies() []domain.ClearStrategy {
	return c.strategies
}

// AttemptClear runs the chain. It never fails and never panics.
func (c *ClearChain) AttemptClear(ctx context.Context, node domain.Node, appID string) domain.ClearResult {
	target := domain.ClearTarget{Node: node, AppID: appID}
	if c.browsers != nil {
		target.IsBrowser = c.browsers.IsBrowser(appID)
	}
	if c.windows != nil {
		target.Window = c.windows.ActiveRoot()
	}

	var result domain.ClearResult
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		if !s.Applies(target) {
			continue
		}
		result.Attempted = append(result.Attempted, s.Name())
		if n := c.run(ctx, s, target); n > 0 {
			result.Strategy = s.Name()
			result.Cleared = n
			break
		}
	}

	c.metrics.Remediated(result.Strategy)
	if result.Succeeded() {
		c.logger.Info("input cleared",
			zap.String("app", appID),
			zap.String("strategy", result.Strategy),
			zap.Int("nodes", result.Cleared))
	} else {
		c.logger.Debug("input not cleared",
			zap.String("app", appID),
			zap.Strings("attempted", result.Attempted))
	}
	return result
}

func (c *ClearChain) run(ctx context.Context, s domain.ClearStrategy, t domain.ClearTarget) (n int) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("clear strategy panicked",
				zap.String("strategy", s.Name()),
				zap.Any("panic", r))
			n = 0
		}
	}()
	return s.Clear(ctx, t)
}

var (
	_ domain.ClearStrategy = SetTextStrategy{}
	_ domain.ClearStrategy = SelectAllDeleteStrategy{}
	_ domain.ClearStrategy = (*AncestorStrategy)(nil)
	_ domain.ClearStrategy = (*TreeSweepStrategy)(nil)
	_ domain.ClearStrategy = (*BrowserSweepStrategy)(nil)
	_ domain.Remediator    = (*ClearChain)(nil)
)
