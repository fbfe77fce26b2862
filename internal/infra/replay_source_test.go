package infra

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/clocktest"
	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

func collect(t *testing.T, src *ReplaySource) []domain.InputEvent {
	t.Helper()
	out := make(chan domain.InputEvent, 16)
	require.NoError(t, src.Run(context.Background(), out))

	var events []domain.InputEvent
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

func TestReplaySource_Run(t *testing.T) {
	input := strings.Join([]string{
		`# comment`,
		`{"text":"my password is secret123","app":"com.chat","kind":"text_changed","at":1000,"node":{"class":"android.widget.EditText","text":"my password is secret123","editable":true}}`,
		``,
		`not json`,
		`{"text":"","app":"com.android.chrome","kind":"window_content_changed","window":{"class":"WebView","children":[{"class":"EditText","text":"deepfake","editable":true,"focused":true}]}}`,
	}, "\n")

	window := NewMemWindow(nil)
	clock := clocktest.New(time.UnixMilli(5000))
	events := collect(t, NewReplaySource(strings.NewReader(input), window, clock, zap.NewNop()))
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, domain.KindTextChanged, first.Kind)
	assert.Equal(t, "com.chat", first.AppID)
	assert.Equal(t, int64(1000), first.ObservedAt.UnixMilli())
	require.NotNil(t, first.Node)
	assert.True(t, first.Node.IsEditable())
	require.NotNil(t, first.Node.Parent(), "bare node gets a synthetic window")

	second := events[1]
	assert.Equal(t, domain.KindWindowContentChanged, second.Kind)
	assert.Equal(t, int64(5000), second.ObservedAt.UnixMilli())
	require.NotNil(t, second.Node)
	assert.Equal(t, "deepfake", second.Node.Text())
	require.NotNil(t, window.ActiveRoot())
	assert.Equal(t, "WebView", window.ActiveRoot().ClassName())
}

func TestReplaySource_SelectionAndDelay(t *testing.T) {
	input := `{"text":"","app":"com.notes","kind":"selection_changed","delay_ms":250,"node":{"text":"ssn: 123-45-6789 ok","editable":true,"selection":[0,16]}}`
	clock := clocktest.New(time.Unix(0, 0))
	src := NewReplaySource(strings.NewReader(input), NewMemWindow(nil), clock, zap.NewNop())

	out := make(chan domain.InputEvent, 1)
	done := make(chan error, 1)
	go func() { done <- src.Run(context.Background(), out) }()

	require.True(t, clock.WaitForPending(1, time.Second))
	clock.Advance(250 * time.Millisecond)

	ev := <-out
	assert.Equal(t, "ssn: 123-45-6789", ev.Node.SelectedText())
	require.NoError(t, <-done)
}

func TestReplaySource_CanceledWhileBlocked(t *testing.T) {
	input := `{"text":"a","app":"x","kind":"scrolled"}` + "\n" + `{"text":"b","app":"x","kind":"scrolled"}`
	src := NewReplaySource(strings.NewReader(input), nil, clocktest.New(time.Unix(0, 0)), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan domain.InputEvent) // unbuffered, never read
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("replay did not stop")
	}
}

func TestReplaySource_SelectionCountsRunes(t *testing.T) {
	input := `{"text":"","app":"com.notes","kind":"selection_changed","node":{"text":"mã PIN: 4821 ok","editable":true,"selection":[0,12]}}`
	events := collect(t, NewReplaySource(strings.NewReader(input), NewMemWindow(nil), clocktest.New(time.Unix(0, 0)), zap.NewNop()))

	require.Len(t, events, 1)
	assert.Equal(t, "mã PIN: 4821", events[0].Node.SelectedText())
}
