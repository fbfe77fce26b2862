package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// FileBackend implements domain.ActivityBackend with a plain JSON file.
// Writes go through a temp file and rename under an exclusive flock, so a
// concurrent reader never observes a half-written log.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend at path. The file is created on first Save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Location() string {
	return b.path
}

// Load returns nil when the file does not exist yet.
func (b *FileBackend) Load() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Save replaces the file contents atomically.
func (b *FileBackend) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	lockFile, err := os.OpenFile(b.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	tmpPath := fmt.Sprintf("%s.%d.tmp", b.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// LastSaved returns the file's modification time, or zero if never saved.
func (b *FileBackend) LastSaved() (time.Time, error) {
	info, err := os.Stat(b.path)
	if os.IsNotExist(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (b *FileBackend) Close() error { return nil }

var _ domain.ActivityBackend = (*FileBackend)(nil)
