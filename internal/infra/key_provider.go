package infra

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

const (
	keyFileName = ".key"
	keySize     = 32 // 256-bit SQLCipher key
)

var (
	// ErrKeyExists is returned when storing over an existing key. Replacing
	// the key would make the existing database unreadable.
	ErrKeyExists = errors.New("encryption key already exists")

	// ErrKeyExposed is returned for a key file readable by other users.
	ErrKeyExposed = errors.New("encryption key file is accessible by other users")

	// ErrKeyReadOnly is returned by providers that cannot persist keys.
	ErrKeyReadOnly = errors.New("key provider is read-only")
)

// FileKeyProvider keeps the activity database key next to the database,
// base64 encoded, readable only by the owner.
type FileKeyProvider struct {
	keyPath string
}

func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: filepath.Join(dataDir, keyFileName)}
}

// GetKey reads the key, refusing files with group or world permissions.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	info, err := os.Stat(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %o", ErrKeyExposed, p.keyPath, info.Mode().Perm())
	}

	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return checkKeySize(key)
}

// StoreKey writes a new key. It never replaces an existing one.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if _, err := checkKeySize(key); err != nil {
		return err
	}
	if p.KeyExists() {
		return fmt.Errorf("%w: %s", ErrKeyExists, p.keyPath)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", p.keyPath, os.Getpid())
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(tmp, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(tmp, p.keyPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to install key file: %w", err)
	}
	return nil
}

func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// EnvKeyProvider reads a hex key from an environment variable, for hosts
// where the key is injected rather than kept on disk.
type EnvKeyProvider struct {
	name   string
	lookup func(string) (string, bool)
}

func NewEnvKeyProvider(name string) *EnvKeyProvider {
	return &EnvKeyProvider{name: name, lookup: os.LookupEnv}
}

func (p *EnvKeyProvider) GetKey() ([]byte, error) {
	value, ok := p.lookup(p.name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("key variable %s is not set", p.name)
	}
	key, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p.name, err)
	}
	return checkKeySize(key)
}

func (p *EnvKeyProvider) StoreKey([]byte) error {
	return fmt.Errorf("%w: set %s instead", ErrKeyReadOnly, p.name)
}

func (p *EnvKeyProvider) KeyExists() bool {
	value, ok := p.lookup(p.name)
	return ok && strings.TrimSpace(value) != ""
}

func checkKeySize(key []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// GenerateKey creates a new random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating one on first use.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var (
	_ domain.KeyProvider = (*FileKeyProvider)(nil)
	_ domain.KeyProvider = (*EnvKeyProvider)(nil)
)
