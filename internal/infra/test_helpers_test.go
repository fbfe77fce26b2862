package infra

import (
	"context"
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

func testCtx() context.Context {
	return context.Background()
}

// stubBrowsers is a test double for the browser detector
type stubBrowsers map[string]bool

func (s stubBrowsers) IsBrowser(appID string) bool {
	return s[appID]
}

// memBackend is an in-memory domain.ActivityBackend
type memBackend struct {
	mu       sync.Mutex
	data     []byte
	saves    int
	loadErr  error
	saveErr  error
	location string
}

func newMemBackend(initial string) *memBackend {
	b := &memBackend{location: "mem://activities"}
	if initial != "" {
		b.data = []byte(initial)
	}
	return b
}

func (b *memBackend) Load() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.data, nil
}

func (b *memBackend) Save(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saves++
	b.data = append([]byte(nil), data...)
	return nil
}

func (b *memBackend) Location() string { return b.location }
func (b *memBackend) Close() error     { return nil }

var errDiskFull = errors.New("disk full")

// mockProcessManager is a test double for domain.ProcessManager
type mockProcessManager struct {
	mu      sync.Mutex
	byName  map[string][]int
	running map[int]bool
	findErr error
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		byName:  make(map[string][]int),
		running: make(map[int]bool),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byName[pattern], nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[pid]
}

func (m *mockProcessManager) GetCurrentPID() int { return 1 }

func (m *mockProcessManager) setProcess(name string, pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName[name] = append(m.byName[name], pid)
	m.running[pid] = true
}

// mockCommandRunner records restart commands
type mockCommandRunner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *mockCommandRunner) Start(name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.err
}

func (r *mockCommandRunner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

var (
	_ domain.ActivityBackend = (*memBackend)(nil)
	_ domain.ProcessManager  = (*mockProcessManager)(nil)
)
