package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrActivityNotFound is returned when deleting an unknown activity ID.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrSurfaceUnavailable is returned by overlay surfaces that cannot draw.
	ErrSurfaceUnavailable = errors.New("overlay surface unavailable")
)

// Node is an opaque handle to a host UI node.
// Implementations must tolerate calls on detached nodes (return false/nil).
type Node interface {
	IsEditable() bool
	IsFocused() bool
	Text() string
	ClassName() string
	ContentDescription() string

	// SetText replaces the node text. Returns true if the host accepted it.
	SetText(s string) bool

	// SetSelection selects runes [start, end). Returns true if the host accepted it.
	SetSelection(start, end int) bool

	// SelectedText returns the currently selected substring, or "".
	SelectedText() string

	Parent() Node
	Children() []Node
}

// WindowSource exposes the root node of the active window.
type WindowSource interface {
	// ActiveRoot returns the root of the active window, or nil.
	ActiveRoot() Node
}

// Classifier turns text into a policy verdict.
// Implementation: heuristic rules locally, or a remote model.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// ActivityStore is the bounded, newest-first activity log.
// Reads always return snapshot copies.
type ActivityStore interface {
	// Append inserts at the head and trims to capacity.
	Append(ctx context.Context, activity DetectedActivity) error

	// ListAll returns all activities newest-first.
	ListAll() []DetectedActivity

	FilterByCategory(category string) []DetectedActivity
	FilterByApp(appPackage string) []DetectedActivity

	// FilterSince returns activities with timestamp >= since.
	FilterSince(since time.Time) []DetectedActivity

	Count() int
	CountByCategory(category string) int

	// Categories returns the distinct categories, sorted.
	Categories() []string

	// Apps returns the distinct app names, sorted.
	Apps() []string

	Delete(ctx context.Context, id string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
	ClearAll(ctx context.Context) error
}

// ActivityBackend persists the encoded activity log as one blob.
type ActivityBackend interface {
	// Load returns the stored blob, or nil if nothing is stored yet.
	Load() ([]byte, error)

	// Save replaces the stored blob.
	Save(data []byte) error

	// Location returns where the blob lives (file path, db path).
	Location() string

	Close() error
}

// KeyProvider supplies the encryption key for the encrypted backend.
type KeyProvider interface {
	GetKey() ([]byte, error)
	StoreKey(key []byte) error
	KeyExists() bool
}

// OverlayHandle identifies an attached overlay window.
type OverlayHandle interface{}

// OverlaySurface is the host windowing interface.
// Calls are serialized by the overlay state machine.
type OverlaySurface interface {
	Add(content OverlayContent, params LayoutParams) (OverlayHandle, error)
	Update(handle OverlayHandle, frame OverlayFrame) error
	Remove(handle OverlayHandle) error
}

// Presenter shows a warning for a verdict.
// Returns false if the request was dropped.
type Presenter interface {
	Present(v Verdict) bool
}

// ClearTarget is the context handed to each clearing strategy.
type ClearTarget struct {
	Node      Node
	AppID     string
	IsBrowser bool
	Window    Node // Active window root, may be nil
}

// ClearStrategy is one step of the remediation chain.
type ClearStrategy interface {
	// Name returns the strategy name (e.g., "set_text", "ancestor").
	Name() string

	// Applies reports whether the strategy can run for this target.
	Applies(target ClearTarget) bool

	// Clear attempts remediation and returns the number of nodes cleared.
	Clear(ctx context.Context, target ClearTarget) int
}

// Remediator runs the clearing chain. Never fails: exhausting the chain is
// a missed remediation, not an error.
type Remediator interface {
	AttemptClear(ctx context.Context, node Node, appID string) ClearResult
}

// ProcessManager inspects OS processes.
type ProcessManager interface {
	// FindByName returns PIDs of processes whose name contains pattern.
	FindByName(pattern string) ([]int, error)

	IsRunning(pid int) bool
	GetCurrentPID() int
}

// HostMonitor checks the host observation interface.
type HostMonitor interface {
	// IsObserving reports whether the host is still delivering events.
	IsObserving() bool

	// RequestRestart sends a best-effort restart signal.
	RequestRestart() error
}

// KeepAlive is a resource held for the pipeline's lifetime.
type KeepAlive interface {
	Acquire() error
	Release() error
}

// AppNameResolver maps an app package to a display name.
type AppNameResolver interface {
	DisplayName(appID string) string
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. Returns false if it already fired.
	Stop() bool
}

// Clock abstracts time so lifecycle timing is testable.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	After(d time.Duration) <-chan time.Time
}
