package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// stubClassifier returns a fixed verdict. If block is set, Classify waits
// for it to close (or ctx) before answering.
type stubClassifier struct {
	mu      sync.Mutex
	verdict domain.Verdict
	err     error
	block   chan struct{}
	started chan string
	texts   []string
}

func (c *stubClassifier) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	block, started := c.block, c.started
	c.mu.Unlock()

	if started != nil {
		started <- text
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.Verdict{}, ctx.Err()
		}
	}
	return c.verdict, c.err
}

func (c *stubClassifier) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

// recordingStore is a minimal domain.ActivityStore
type recordingStore struct {
	mu    sync.Mutex
	items []domain.DetectedActivity
	err   error
}

func (s *recordingStore) Append(_ context.Context, a domain.DetectedActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.items = append([]domain.DetectedActivity{a}, s.items...)
	return nil
}

func (s *recordingStore) ListAll() []domain.DetectedActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DetectedActivity(nil), s.items...)
}

func (s *recordingStore) FilterByCategory(string) []domain.DetectedActivity { return nil }
func (s *recordingStore) FilterByApp(string) []domain.DetectedActivity      { return nil }
func (s *recordingStore) FilterSince(time.Time) []domain.DetectedActivity   { return nil }
func (s *recordingStore) CountByCategory(string) int                        { return 0 }
func (s *recordingStore) Categories() []string                              { return nil }
func (s *recordingStore) Apps() []string                                    { return nil }
func (s *recordingStore) Delete(context.Context, string) error              { return nil }
func (s *recordingStore) DeleteOlderThan(context.Context, time.Time) error  { return nil }
func (s *recordingStore) ClearAll(context.Context) error                    { return nil }

func (s *recordingStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// sequence records side effects in call order
type sequence struct {
	mu    sync.Mutex
	steps []string
}

func (s *sequence) add(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
}

func (s *sequence) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.steps...)
}

type recordingPresenter struct {
	seq      *sequence
	accept   bool
	verdicts []domain.Verdict
}

func (p *recordingPresenter) Present(v domain.Verdict) bool {
	p.seq.add("present")
	p.verdicts = append(p.verdicts, v)
	return p.accept
}

type recordingRemediator struct {
	seq   *sequence
	nodes []domain.Node
}

func (r *recordingRemediator) AttemptClear(_ context.Context, node domain.Node, _ string) domain.ClearResult {
	r.seq.add("clear")
	r.nodes = append(r.nodes, node)
	return domain.ClearResult{Strategy: "set_text", Attempted: []string{"set_text"}, Cleared: 1}
}

type staticNames map[string]string

func (n staticNames) DisplayName(appID string) string {
	if name, ok := n[appID]; ok {
		return name
	}
	return appID
}

// dispatchCall is one recorded router dispatch
type dispatchCall struct {
	text  string
	appID string
	node  domain.Node
}

// recordingDispatcher finishes each flight immediately
type recordingDispatcher struct {
	mu       sync.Mutex
	cooldown *Controller
	calls    []dispatchCall
}

func (d *recordingDispatcher) Dispatch(_ context.Context, f Flight, text, appID string, node domain.Node) *domain.DispatchResult {
	d.mu.Lock()
	d.calls = append(d.calls, dispatchCall{text: text, appID: appID, node: node})
	d.mu.Unlock()
	d.cooldown.Finish(f)
	return &domain.DispatchResult{Text: text, AppID: appID}
}

func (d *recordingDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}
