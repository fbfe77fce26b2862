package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// DefaultMaxLength is the longest fragment treated as typed input.
const DefaultMaxLength = 100

// RejectReason explains why the gate dropped a fragment.
// The empty reason means the fragment passes.
type RejectReason string

const (
	Accept           RejectReason = ""
	RejectBlank      RejectReason = "blank"
	RejectDuplicate  RejectReason = "duplicate"
	RejectNavigation RejectReason = "navigation"
	RejectTooLong    RejectReason = "too_long"
	RejectTooShort   RejectReason = "too_short"
	RejectIdentifier RejectReason = "identifier"
)

// navigationMarkers flag URLs, domains and paths.
var navigationMarkers = []string{"http", "www", ".com", ".org", ".net", ".in", "/"}

// identifierPattern matches app chrome such as ids and hostnames, not prose.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)

// Gate decides whether a fragment is worth classifying.
// Pure: no state, no side effects.
type Gate struct {
	registry  *Registry
	maxLength int
}

// NewGate creates a gate backed by the origin registry.
func NewGate(registry *Registry, maxLength int) *Gate {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Gate{registry: registry, maxLength: maxLength}
}

// ShouldAnalyze reports whether the event text should be classified.
func (g *Gate) ShouldAnalyze(ev domain.InputEvent, lastDetected string) bool {
	return g.Check(ev.Text, ev.AppID, lastDetected) == Accept
}

// Check returns the first rule the text fails, or Accept.
func (g *Gate) Check(text, appID, lastDetected string) RejectReason {
	if strings.TrimSpace(text) == "" {
		return RejectBlank
	}
	if text == lastDetected {
		return RejectDuplicate
	}
	if IsNavigation(text) {
		return RejectNavigation
	}
	n := utf8.RuneCountInString(text)
	if n > g.maxLength {
		return RejectTooLong
	}
	if n < g.registry.Resolve(appID).MinTextLength() {
		return RejectTooShort
	}
	if identifierPattern.MatchString(text) {
		return RejectIdentifier
	}
	return Accept
}

// IsNoise reports text that is never typed input: blank, navigation or
// overlong. Noise does not update the current-input buffer.
func (g *Gate) IsNoise(text string) bool {
	return strings.TrimSpace(text) == "" ||
		IsNavigation(text) ||
		utf8.RuneCountInString(text) > g.maxLength
}

// IsNavigation reports whether text carries URL or domain markers.
func IsNavigation(text string) bool {
	for _, m := range navigationMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
