// Package policy implements the Strategy pattern for origin-specific gating.
// Each origin class (web browsers, everything else) has its own profile
// deciding how much text is needed before it is worth classifying.
package policy

import "strings"

const (
	// DefaultMinLength applies to ordinary apps.
	DefaultMinLength = 2

	// BrowserMinLength is higher because browser DOMs expose more noise.
	BrowserMinLength = 3
)

// OriginProfile defines how text from a class of apps is treated.
type OriginProfile interface {
	// ID returns unique identifier (e.g., "browser", "default").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Matches reports whether the profile covers the app package.
	Matches(appID string) bool

	// IsBrowser enables the web-specific scan and clearing passes.
	IsBrowser() bool

	// MinTextLength is the shortest text worth classifying.
	MinTextLength() int
}

// DefaultBrowserMarkers are package-name fragments of browser-class apps.
var DefaultBrowserMarkers = []string{
	"chrome",
	"firefox",
	"samsung",
	"browser",
	"edge",
	"opera",
	"brave",
	"ucbrowser",
	"maxthon",
	"dolphin",
	"webview",
	"webview2",
	"chromium",
	"webkit",
}

// BrowserProfile matches apps whose package contains a browser marker.
type BrowserProfile struct {
	markers   []string
	minLength int
}

// NewBrowserProfile creates the browser profile with the default markers
// plus any extra ones.
func NewBrowserProfile(minLength int, extraMarkers ...string) *BrowserProfile {
	markers := make([]string, 0, len(DefaultBrowserMarkers)+len(extraMarkers))
	markers = append(markers, DefaultBrowserMarkers...)
	for _, m := range extraMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}
	return &BrowserProfile{markers: markers, minLength: minLength}
}

func (p *BrowserProfile) ID() string { return "browser" }

func (p *BrowserProfile) Name() string { return "Web browser" }

func (p *BrowserProfile) Matches(appID string) bool {
	id := strings.ToLower(appID)
	for _, m := range p.markers {
		if strings.Contains(id, m) {
			return true
		}
	}
	return false
}

func (p *BrowserProfile) IsBrowser() bool { return true }

func (p *BrowserProfile) MinTextLength() int { return p.minLength }

// DefaultProfile covers every app no other profile claims.
type DefaultProfile struct {
	minLength int
}

// NewDefaultProfile creates the catch-all profile.
func NewDefaultProfile(minLength int) *DefaultProfile {
	return &DefaultProfile{minLength: minLength}
}

func (p *DefaultProfile) ID() string { return "default" }

func (p *DefaultProfile) Name() string { return "Application" }

func (p *DefaultProfile) Matches(string) bool { return true }

func (p *DefaultProfile) IsBrowser() bool { return false }

func (p *DefaultProfile) MinTextLength() int { return p.minLength }

var (
	_ OriginProfile = (*BrowserProfile)(nil)
	_ OriginProfile = (*DefaultProfile)(nil)
)
