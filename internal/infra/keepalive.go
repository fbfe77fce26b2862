package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// ErrAlreadyRunning is returned when another pipeline holds the lock.
var ErrAlreadyRunning = errors.New("another instance holds the lock")

// LockFile implements domain.KeepAlive with an exclusive flock on a PID file.
// Holding it keeps a second pipeline off the same host.
type LockFile struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

func (l *LockFile) Path() string {
	return l.path
}

// Acquire takes the lock without blocking. Acquiring twice is a no-op.
func (l *LockFile) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrAlreadyRunning
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}
	l.file = f
	return nil
}

// Release clears the recorded PID and drops the lock. The file itself stays
// so every contender locks the same inode. Safe to call when not held.
func (l *LockFile) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	_ = f.Truncate(0)
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return f.Close()
}

var _ domain.KeepAlive = (*LockFile)(nil)

// HolderPID returns the PID recorded in the lock file, or 0 if there is
// no lock file or it holds no PID.
func (l *LockFile) HolderPID() int {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
