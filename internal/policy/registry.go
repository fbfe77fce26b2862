package policy

import (
	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// Options configures a Registry.
type Options struct {
	MinLength        int
	BrowserMinLength int
	BrowserMarkers   []string          // Added to DefaultBrowserMarkers
	AppNames         map[string]string // Package id -> display name
}

// DefaultOptions returns the built-in thresholds with no extra markers.
func DefaultOptions() Options {
	return Options{
		MinLength:        DefaultMinLength,
		BrowserMinLength: BrowserMinLength,
	}
}

// Registry holds origin profiles in match priority order.
// The last resort is the default profile.
type Registry struct {
	profiles []OriginProfile
	fallback OriginProfile
	names    map[string]string
}

// NewRegistry creates a registry with the browser and default profiles.
func NewRegistry(opts Options) *Registry {
	r := NewRegistryWithProfiles(NewDefaultProfile(opts.MinLength),
		NewBrowserProfile(opts.BrowserMinLength, opts.BrowserMarkers...))
	for id, name := range opts.AppNames {
		r.names[id] = name
	}
	return r
}

// NewRegistryWithProfiles creates a registry with custom profiles (for testing).
func NewRegistryWithProfiles(fallback OriginProfile, profiles ...OriginProfile) *Registry {
	r := &Registry{
		fallback: fallback,
		names:    make(map[string]string),
	}
	for _, p := range profiles {
		r.Register(p)
	}
	return r
}

// Register adds a profile. Earlier registrations win on overlap.
func (r *Registry) Register(p OriginProfile) {
	r.profiles = append(r.profiles, p)
}

// Resolve returns the profile that covers appID.
func (r *Registry) Resolve(appID string) OriginProfile {
	for _, p := range r.profiles {
		if p.Matches(appID) {
			return p
		}
	}
	return r.fallback
}

// IsBrowser reports whether appID is a browser-class origin.
func (r *Registry) IsBrowser(appID string) bool {
	return r.Resolve(appID).IsBrowser()
}

// GetAll returns all registered profiles, fallback last.
func (r *Registry) GetAll() []OriginProfile {
	result := make([]OriginProfile, 0, len(r.profiles)+1)
	result = append(result, r.profiles...)
	return append(result, r.fallback)
}

// DisplayName implements domain.AppNameResolver.
// Unknown packages fall back to the package id.
func (r *Registry) DisplayName(appID string) string {
	if name, ok := r.names[appID]; ok && name != "" {
		return name
	}
	return appID
}

var _ domain.AppNameResolver = (*Registry)(nil)
