// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies
// except for ID generation.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the kind of host input event.
type EventKind string

const (
	KindTextChanged          EventKind = "text_changed"
	KindSelectionChanged     EventKind = "selection_changed"
	KindFocused              EventKind = "focused"
	KindClicked              EventKind = "clicked"
	KindWindowContentChanged EventKind = "window_content_changed"
	KindWindowStateChanged   EventKind = "window_state_changed"
	KindScrolled             EventKind = "scrolled"
)

// AllEventKinds lists every event kind the router must handle.
// Adding a kind here without a route fails the router tests.
var AllEventKinds = []EventKind{
	KindTextChanged,
	KindSelectionChanged,
	KindFocused,
	KindClicked,
	KindWindowContentChanged,
	KindWindowStateChanged,
	KindScrolled,
}

// InputEvent is a single observation delivered by the host.
// Transient: owned by the call that receives it, never persisted.
type InputEvent struct {
	Text       string
	AppID      string
	Kind       EventKind
	ObservedAt time.Time
	Node       Node // Source node, may be nil
}

// Category is the classifier's policy category.
type Category string

const (
	CategoryPrivacyViolation       Category = "PRIVACY_VIOLATION"
	CategoryHarmfulContent         Category = "HARMFUL_CONTENT"
	CategoryDeepfake               Category = "DEEPFAKE"
	CategoryCelebrityImpersonation Category = "CELEBRITY_IMPERSONATION"
	CategoryCopyrightViolation     Category = "COPYRIGHT_VIOLATION"
	CategoryNone                   Category = "NONE"
)

// Title returns the overlay headline for the category.
func (c Category) Title() string {
	switch c {
	case CategoryPrivacyViolation:
		return "Privacy Violation Detected"
	case CategoryHarmfulContent:
		return "Harmful Content Detected"
	case CategoryDeepfake:
		return "Image/Video Misuse Detected"
	case CategoryCelebrityImpersonation:
		return "Celebrity Impersonation Detected"
	case CategoryCopyrightViolation:
		return "Copyright Violation Detected"
	default:
		return "Content Analysis Complete"
	}
}

// Label returns the category with underscores replaced by spaces.
func (c Category) Label() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

// Verdict is the classifier's judgment about a text fragment.
type Verdict struct {
	IsViolation bool
	Category    Category
	Confidence  float64 // 0.0-1.0
	Reason      string
	Suggestions []string
}

// DetectedActivity is one entry of the activity log.
// The JSON layout is the on-disk format of the log.
type DetectedActivity struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	AppPackage string  `json:"appPackage"`
	AppName    string  `json:"appName"`
	Timestamp  int64   `json:"timestamp"` // Unix millis
	Confidence float64 `json:"confidence"`
	IsCleared  bool    `json:"isCleared"`
}

// NewDetectedActivity builds an activity with a fresh UUID.
// IsCleared is always false: remediation results are not written back.
func NewDetectedActivity(content string, category Category, appPackage, appName string, at time.Time, confidence float64) DetectedActivity {
	return DetectedActivity{
		ID:         uuid.NewString(),
		Content:    content,
		Category:   string(category),
		AppPackage: appPackage,
		AppName:    appName,
		Timestamp:  at.UnixMilli(),
		Confidence: confidence,
	}
}

// DetectedAt returns the activity timestamp as time.Time.
func (a DetectedActivity) DetectedAt() time.Time {
	return time.UnixMilli(a.Timestamp)
}

// CooldownState is a point-in-time copy of the debounce controller state.
type CooldownState struct {
	LastDetectedText string
	CurrentInput     string
	LastInputTime    time.Time
	InFlight         bool
	InFlightSince    time.Time
	DetectionEnabled bool
}

// OverlayPhase is the lifecycle phase of the warning overlay.
type OverlayPhase string

const (
	PhaseIdle         OverlayPhase = "idle"
	PhaseAnimatingIn  OverlayPhase = "animating_in"
	PhaseVisible      OverlayPhase = "visible"
	PhaseAnimatingOut OverlayPhase = "animating_out"
)

// OverlayContent is what the overlay displays.
type OverlayContent struct {
	Category    Category
	Title       string
	Description string
	Suggestion  string
}

// DefaultSuggestion is shown when the verdict carries no suggestions.
const DefaultSuggestion = "Please review your content"

// NewOverlayContent derives overlay text from a verdict.
func NewOverlayContent(v Verdict) OverlayContent {
	suggestion := DefaultSuggestion
	if len(v.Suggestions) > 0 && v.Suggestions[0] != "" {
		suggestion = v.Suggestions[0]
	}
	return OverlayContent{
		Category:    v.Category,
		Title:       v.Category.Title(),
		Description: v.Reason,
		Suggestion:  suggestion,
	}
}

// Gravity positions the overlay on screen.
type Gravity string

const GravityCenter Gravity = "center"

// LayoutParams describe how the host should attach the overlay window.
type LayoutParams struct {
	Focusable     bool
	ScreenOverlay bool
	Gravity       Gravity
	WrapContent   bool
}

// OverlayLayout is the only layout the pipeline requests: a centered,
// non-focusable screen overlay sized to its content.
func OverlayLayout() LayoutParams {
	return LayoutParams{
		Focusable:     false,
		ScreenOverlay: true,
		Gravity:       GravityCenter,
		WrapContent:   true,
	}
}

// OverlayFrame is one rendered animation step.
type OverlayFrame struct {
	Alpha    float64
	Scale    float64
	Progress int // Auto-dismiss progress, 100 down to 0
}

// ClearResult records one remediation attempt chain.
type ClearResult struct {
	Strategy  string   // Strategy that succeeded, empty if none
	Attempted []string // Strategies tried, in order
	Cleared   int      // Nodes cleared
}

// Succeeded reports whether any strategy cleared input.
func (r ClearResult) Succeeded() bool {
	return r.Strategy != ""
}

// DispatchOutcome classifies how a dispatch ended.
type DispatchOutcome string

const (
	OutcomeDetected DispatchOutcome = "detected"
	OutcomeSafe     DispatchOutcome = "safe"
	OutcomeFailed   DispatchOutcome = "failed"
)

// DispatchResult captures what happened during a single dispatch.
type DispatchResult struct {
	Text       string
	AppID      string
	Outcome    DispatchOutcome
	Verdict    Verdict
	Presented  bool
	Clear      ClearResult
	Err        error
	ExecutedAt time.Time
	DurationMs int64
}
