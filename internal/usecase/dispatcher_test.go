package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/clocktest"
	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/infra"
)

type dispatchFixture struct {
	clock      *clocktest.FakeClock
	cooldown   *Controller
	classifier *stubClassifier
	store      *recordingStore
	presenter  *recordingPresenter
	remediator *recordingRemediator
	seq        *sequence
	dispatcher *Dispatcher
}

func newDispatchFixture(verdict domain.Verdict, grace time.Duration) *dispatchFixture {
	seq := &sequence{}
	f := &dispatchFixture{
		clock:      clocktest.New(time.UnixMilli(1_700_000_000_000)),
		classifier: &stubClassifier{verdict: verdict},
		store:      &recordingStore{},
		presenter:  &recordingPresenter{seq: seq, accept: true},
		remediator: &recordingRemediator{seq: seq},
		seq:        seq,
	}
	f.cooldown = NewController(f.clock)
	cfg := DefaultDispatcherConfig()
	cfg.GracePeriod = grace
	f.dispatcher = NewDispatcher(cfg, f.classifier, f.store, f.presenter, f.remediator,
		staticNames{"com.chat": "Chat"}, f.cooldown, f.clock, zap.NewNop(), nil)
	return f
}

func (f *dispatchFixture) run(t *testing.T, text string, node domain.Node) *domain.DispatchResult {
	t.Helper()
	flight, ok := f.cooldown.TryBegin(text)
	require.True(t, ok)
	result := f.dispatcher.Dispatch(context.Background(), flight, text, "com.chat", node)
	f.dispatcher.Wait()
	return result
}

func TestDispatcher_ConfidenceBoundary(t *testing.T) {
	tests := []struct {
		name        string
		verdict     domain.Verdict
		wantOutcome domain.DispatchOutcome
		wantEffects bool
	}{
		{
			name:        "exactly threshold is ignored",
			verdict:     domain.Verdict{IsViolation: true, Category: domain.CategoryPrivacyViolation, Confidence: 0.75},
			wantOutcome: domain.OutcomeSafe,
		},
		{
			name:        "just above threshold acts",
			verdict:     domain.Verdict{IsViolation: true, Category: domain.CategoryPrivacyViolation, Confidence: 0.751},
			wantOutcome: domain.OutcomeDetected,
			wantEffects: true,
		},
		{
			name:        "not a violation even when confident",
			verdict:     domain.Verdict{IsViolation: false, Category: domain.CategoryNone, Confidence: 0.99},
			wantOutcome: domain.OutcomeSafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture(tt.verdict, 0)
			result := f.run(t, "my password is secret123", nil)

			assert.Equal(t, tt.wantOutcome, result.Outcome)
			assert.False(t, f.cooldown.Snapshot().InFlight, "flight always released")
			if tt.wantEffects {
				assert.Equal(t, 1, f.store.Count())
				assert.Equal(t, []string{"present", "clear"}, f.seq.all())
			} else {
				assert.Equal(t, 0, f.store.Count())
				assert.Empty(t, f.seq.all())
			}
		})
	}
}

func TestDispatcher_PositiveVerdict(t *testing.T) {
	verdict := domain.Verdict{
		IsViolation: true,
		Category:    domain.CategoryPrivacyViolation,
		Confidence:  0.9,
		Reason:      "password",
	}
	f := newDispatchFixture(verdict, 0)
	node := infra.NewEditableNode("my password is secret123")

	result := f.run(t, "my password is secret123", node)

	assert.True(t, result.Presented)
	assert.Equal(t, "set_text", result.Clear.Strategy)
	require.Len(t, f.remediator.nodes, 1)
	assert.Same(t, node, f.remediator.nodes[0])

	items := f.store.ListAll()
	require.Len(t, items, 1)
	a := items[0]
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "my password is secret123", a.Content)
	assert.Equal(t, "PRIVACY_VIOLATION", a.Category)
	assert.Equal(t, "com.chat", a.AppPackage)
	assert.Equal(t, "Chat", a.AppName)
	assert.Equal(t, int64(1_700_000_000_000), a.Timestamp)
	assert.Equal(t, 0.9, a.Confidence)
	assert.False(t, a.IsCleared)

	s := f.cooldown.Snapshot()
	assert.Empty(t, s.LastDetectedText, "duplicate filter reset after detection")
}

func TestDispatcher_ClassificationFailure(t *testing.T) {
	f := newDispatchFixture(domain.Verdict{}, 0)
	f.classifier.err = errors.New("connection reset")

	result := f.run(t, "anything at all", nil)

	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	assert.EqualError(t, result.Err, "connection reset")
	assert.False(t, f.cooldown.Snapshot().InFlight)
	assert.Empty(t, f.seq.all())
	assert.Equal(t, "anything at all", f.cooldown.LastDetected(), "no automatic retry of the same text")
}

func TestDispatcher_StoreFailureIsSwallowed(t *testing.T) {
	f := newDispatchFixture(domain.Verdict{IsViolation: true, Category: domain.CategoryDeepfake, Confidence: 0.9}, 0)
	f.store.err = errors.New("disk full")

	result := f.run(t, "make a deepfake", nil)

	assert.Equal(t, domain.OutcomeDetected, result.Outcome)
	assert.Equal(t, []string{"present", "clear"}, f.seq.all())
}

func TestDispatcher_GracePeriodHoldsFlight(t *testing.T) {
	f := newDispatchFixture(domain.Verdict{IsViolation: true, Category: domain.CategoryDeepfake, Confidence: 0.9}, 500*time.Millisecond)

	flight, ok := f.cooldown.TryBegin("make a deepfake")
	require.True(t, ok)

	done := make(chan *domain.DispatchResult, 1)
	go func() {
		done <- f.dispatcher.Dispatch(context.Background(), flight, "make a deepfake", "com.chat", nil)
	}()

	require.True(t, f.clock.WaitForPending(1, time.Second))
	assert.True(t, f.cooldown.Snapshot().InFlight, "flight held during grace")
	_, ok = f.cooldown.TryBegin("another burst")
	assert.False(t, ok)

	f.clock.Advance(500 * time.Millisecond)

	select {
	case result := <-done:
		assert.Equal(t, int64(500), result.DurationMs)
	case <-time.After(time.Second):
		t.Fatal("dispatch did not finish after grace")
	}
	assert.False(t, f.cooldown.Snapshot().InFlight)
	f.dispatcher.Wait()
}

func TestDispatcher_CanceledDuringGrace(t *testing.T) {
	f := newDispatchFixture(domain.Verdict{IsViolation: true, Category: domain.CategoryDeepfake, Confidence: 0.9}, time.Hour)
	flight, _ := f.cooldown.TryBegin("make a deepfake")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.dispatcher.Dispatch(ctx, flight, "make a deepfake", "com.chat", nil)
		close(done)
	}()

	require.True(t, f.clock.WaitForPending(1, time.Second))
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("grace ignored cancellation")
	}
	assert.False(t, f.cooldown.Snapshot().InFlight)
	f.dispatcher.Wait()
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz0123...", preview(long))
}
