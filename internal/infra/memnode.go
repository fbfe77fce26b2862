package infra

import (
	"sync"
	"unicode/utf8"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// MemNode is an in-memory host node. It backs the replay host used by the
// run command and serves as the node tree in tests.
type MemNode struct {
	mu          sync.Mutex
	className   string
	description string
	text        string
	editable    bool
	focused     bool
	readOnly    bool // Host refuses SetText even though editable
	acceptsText bool // Host accepts SetText on a non-editable node (web content)
	selStart    int
	selEnd      int
	setTextHits int
	parent      *MemNode
	children    []*MemNode
}

// NewMemNode creates a detached node of the given class.
func NewMemNode(className string) *MemNode {
	return &MemNode{className: className, selStart: -1, selEnd: -1}
}

// NewEditableNode creates an editable text field holding text.
func NewEditableNode(text string) *MemNode {
	return NewMemNode("android.widget.EditText").WithText(text).WithEditable(true)
}

func (n *MemNode) WithText(s string) *MemNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.text = s
	return n
}

func (n *MemNode) WithEditable(v bool) *MemNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.editable = v
	return n
}

func (n *MemNode) WithFocused(v bool) *MemNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.focused = v
	return n
}

func (n *MemNode) WithDescription(s string) *MemNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.description = s
	return n
}

// WithReadOnly makes the host reject SetText on this node.
func (n *MemNode) WithReadOnly(v bool) *MemNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.readOnly = v
	return n
}

// WithAcceptsText makes a non-editable node accept SetText, the way
// browsers expose some web inputs.
func (n *MemNode) WithAcceptsText(v bool) *MemNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.acceptsText = v
	return n
}

// Append attaches children and returns n.
func (n *MemNode) Append(children ...*MemNode) *MemNode {
	for _, c := range children {
		c.mu.Lock()
		c.parent = n
		c.mu.Unlock()
	}
	n.mu.Lock()
	n.children = append(n.children, children...)
	n.mu.Unlock()
	return n
}

// SetTextCalls returns how many times SetText was invoked.
func (n *MemNode) SetTextCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.setTextHits
}

func (n *MemNode) IsEditable() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.editable
}

func (n *MemNode) IsFocused() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.focused
}

func (n *MemNode) Text() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text
}

func (n *MemNode) ClassName() string {
	return n.className
}

func (n *MemNode) ContentDescription() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.description
}

func (n *MemNode) SetText(s string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.setTextHits++
	if n.readOnly || !(n.editable || n.acceptsText) {
		return false
	}
	n.text = s
	n.selStart, n.selEnd = -1, -1
	return true
}

func (n *MemNode) SetSelection(start, end int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !(n.editable || n.acceptsText) || start < 0 || end < start || end > utf8.RuneCountInString(n.text) {
		return false
	}
	n.selStart, n.selEnd = start, end
	return true
}

func (n *MemNode) SelectedText() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	runes := []rune(n.text)
	if n.selStart >= 0 && n.selEnd > n.selStart && n.selEnd <= len(runes) {
		return string(runes[n.selStart:n.selEnd])
	}
	return ""
}

func (n *MemNode) Parent() domain.Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *MemNode) Children() []domain.Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make([]domain.Node, len(n.children))
	for i, c := range n.children {
		result[i] = c
	}
	return result
}

// MemWindow implements domain.WindowSource over a swappable root.
type MemWindow struct {
	mu   sync.Mutex
	root *MemNode
}

// NewMemWindow creates a window with the given root (may be nil).
func NewMemWindow(root *MemNode) *MemWindow {
	return &MemWindow{root: root}
}

// SetRoot replaces the active window root.
func (w *MemWindow) SetRoot(root *MemNode) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.root = root
}

func (w *MemWindow) ActiveRoot() domain.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.root == nil {
		return nil
	}
	return w.root
}

var (
	_ domain.Node         = (*MemNode)(nil)
	_ domain.WindowSource = (*MemWindow)(nil)
)
