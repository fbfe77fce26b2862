package daemon

import (
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

var errRestartFailed = errors.New("restart failed")

// mockHost is a test double for domain.HostMonitor
type mockHost struct {
	mu         sync.Mutex
	observing  bool
	restartErr error
	restarts   int
}

func (h *mockHost) IsObserving() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.observing
}

func (h *mockHost) RequestRestart() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.restarts++
	return h.restartErr
}

func (h *mockHost) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts
}

// mockKeepAlive records acquire/release calls
type mockKeepAlive struct {
	mu         sync.Mutex
	acquireErr error
	acquired   int
	released   int
}

func (k *mockKeepAlive) Acquire() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.acquireErr != nil {
		return k.acquireErr
	}
	k.acquired++
	return nil
}

func (k *mockKeepAlive) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.released++
	return nil
}

// recordingSurface is a domain.OverlaySurface that keeps every call
type recordingSurface struct {
	mu      sync.Mutex
	added   []domain.OverlayContent
	removed int
}

func (s *recordingSurface) Add(content domain.OverlayContent, _ domain.LayoutParams) (domain.OverlayHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, content)
	return len(s.added), nil
}

func (s *recordingSurface) Update(domain.OverlayHandle, domain.OverlayFrame) error {
	return nil
}

func (s *recordingSurface) Remove(domain.OverlayHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed++
	return nil
}

func (s *recordingSurface) Added() []domain.OverlayContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OverlayContent(nil), s.added...)
}

func (s *recordingSurface) Removed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

// memBackend is an in-memory domain.ActivityBackend
type memBackend struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

func (b *memBackend) Load() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data, nil
}

func (b *memBackend) Save(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	return nil
}

func (b *memBackend) Location() string { return "mem://activities" }

func (b *memBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// mockRunner records detached starts
type mockRunner struct {
	name string
	args []string
}

func (r *mockRunner) Start(name string, args ...string) error {
	r.name = name
	r.args = args
	return nil
}
