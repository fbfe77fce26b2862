package infra

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/nodetree"
)

// NodeRecord is the JSON form of a host node in a replay file.
type NodeRecord struct {
	Class       string       `json:"class"`
	Text        string       `json:"text"`
	Description string       `json:"description,omitempty"`
	Editable    bool         `json:"editable,omitempty"`
	Focused     bool         `json:"focused,omitempty"`
	ReadOnly    bool         `json:"read_only,omitempty"`
	AcceptsText bool         `json:"accepts_text,omitempty"`
	Selection   []int        `json:"selection,omitempty"` // [start, end] in runes
	Children    []NodeRecord `json:"children,omitempty"`
}

// EventRecord is one line of a replay file.
type EventRecord struct {
	Text    string      `json:"text"`
	App     string      `json:"app"`
	Kind    string      `json:"kind"`
	At      int64       `json:"at,omitempty"`       // Unix millis, 0 means now
	DelayMs int64       `json:"delay_ms,omitempty"` // Pause before delivery
	Node    *NodeRecord `json:"node,omitempty"`
	Window  *NodeRecord `json:"window,omitempty"`
}

// ReplaySource plays recorded host events from JSON lines. It stands in
// for the host observation interface when running outside the host.
type ReplaySource struct {
	r      io.Reader
	window *MemWindow
	clock  domain.Clock
	logger *zap.Logger
}

// NewReplaySource reads events from r and publishes window trees to window.
func NewReplaySource(r io.Reader, window *MemWindow, clock domain.Clock, logger *zap.Logger) *ReplaySource {
	return &ReplaySource{r: r, window: window, clock: clock, logger: logger}
}

// Run delivers events to out until the input ends or ctx is done.
// out is closed on return. Malformed lines are logged and skipped.
func (s *ReplaySource) Run(ctx context.Context, out chan<- domain.InputEvent) error {
	defer close(out)

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		var rec EventRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("skipping malformed replay line", zap.Int("line", line), zap.Error(err))
			continue
		}

		if rec.DelayMs > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.clock.After(time.Duration(rec.DelayMs) * time.Millisecond):
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- s.toEvent(rec):
		}
	}
	return scanner.Err()
}

func (s *ReplaySource) toEvent(rec EventRecord) domain.InputEvent {
	ev := domain.InputEvent{
		Text:       rec.Text,
		AppID:      rec.App,
		Kind:       domain.EventKind(rec.Kind),
		ObservedAt: s.clock.Now(),
	}
	if rec.At > 0 {
		ev.ObservedAt = time.UnixMilli(rec.At)
	}

	var node, root *MemNode
	if rec.Window != nil {
		root = BuildNode(*rec.Window)
	}
	if rec.Node != nil {
		node = BuildNode(*rec.Node)
		if root == nil {
			root = NewMemNode("android.widget.FrameLayout").Append(node)
		}
	} else if root != nil {
		node = findFocusedEditable(root)
	}

	if root != nil && s.window != nil {
		s.window.SetRoot(root)
	}
	if node != nil {
		ev.Node = node
	}
	return ev
}

// BuildNode materializes a node record and its subtree.
func BuildNode(rec NodeRecord) *MemNode {
	class := rec.Class
	if class == "" {
		class = "android.view.View"
	}
	n := NewMemNode(class).
		WithText(rec.Text).
		WithDescription(rec.Description).
		WithEditable(rec.Editable).
		WithFocused(rec.Focused).
		WithReadOnly(rec.ReadOnly).
		WithAcceptsText(rec.AcceptsText)
	if len(rec.Selection) == 2 {
		n.SetSelection(rec.Selection[0], rec.Selection[1])
	}
	for _, c := range rec.Children {
		n.Append(BuildNode(c))
	}
	return n
}

func findFocusedEditable(root *MemNode) *MemNode {
	var found *MemNode
	nodetree.Walk(root, nodetree.DefaultLimits(), func(n domain.Node, _ int) bool {
		if n.IsEditable() && n.IsFocused() {
			found = n.(*MemNode)
			return false
		}
		return true
	})
	return found
}
