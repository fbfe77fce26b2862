package infra

import (
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyProvider_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	p := NewFileKeyProvider(dir)
	assert.False(t, p.KeyExists())

	key, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, p.StoreKey(key))
	assert.True(t, p.KeyExists())

	got, err := p.GetKey()
	require.NoError(t, err)
	assert.Equal(t, key, got)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileKeyProvider_NeverReplacesKey(t *testing.T) {
	p := NewFileKeyProvider(t.TempDir())
	first, _ := GenerateKey()
	second, _ := GenerateKey()

	require.NoError(t, p.StoreKey(first))
	assert.ErrorIs(t, p.StoreKey(second), ErrKeyExists)

	got, err := p.GetKey()
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestFileKeyProvider_RejectsBadKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, keyFileName)
	p := NewFileKeyProvider(dir)

	assert.Error(t, p.StoreKey(make([]byte, 16)), "short key")

	tests := []struct {
		name    string
		content string
		mode    os.FileMode
		wantErr error
	}{
		{"missing", "", 0, nil},
		{"not base64", "!!!not-base64!!!", 0600, nil},
		{"wrong size", base64.StdEncoding.EncodeToString(make([]byte, 16)), 0600, nil},
		{"world readable", base64.StdEncoding.EncodeToString(make([]byte, keySize)), 0644, ErrKeyExposed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = os.Remove(path)
			if tt.mode != 0 {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), tt.mode))
				require.NoError(t, os.Chmod(path, tt.mode))
			}

			_, err := p.GetKey()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestFileKeyProvider_TrailingNewline(t *testing.T) {
	dir := t.TempDir()
	key, _ := GenerateKey()
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte(encoded), 0600))

	got, err := NewFileKeyProvider(dir).GetKey()
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestEnvKeyProvider(t *testing.T) {
	key, _ := GenerateKey()
	env := map[string]string{
		"GOOD":  hex.EncodeToString(key) + "\n",
		"SHORT": hex.EncodeToString(key[:8]),
		"BAD":   "zz",
		"BLANK": "  ",
	}
	provider := func(name string) *EnvKeyProvider {
		p := NewEnvKeyProvider(name)
		p.lookup = func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}
		return p
	}

	got, err := provider("GOOD").GetKey()
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.True(t, provider("GOOD").KeyExists())

	for _, name := range []string{"SHORT", "BAD", "BLANK", "UNSET"} {
		_, err := provider(name).GetKey()
		assert.Error(t, err, name)
	}
	assert.False(t, provider("BLANK").KeyExists())
	assert.False(t, provider("UNSET").KeyExists())

	assert.ErrorIs(t, provider("GOOD").StoreKey(key), ErrKeyReadOnly)
}

func TestGenerateKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.Len(t, key, keySize)

		s := hex.EncodeToString(key)
		assert.False(t, seen[s], "keys must be unique")
		seen[s] = true
	}
}

func TestEnsureKey(t *testing.T) {
	dir := t.TempDir()
	p := NewFileKeyProvider(dir)

	first, err := EnsureKey(p)
	require.NoError(t, err)
	second, err := EnsureKey(p)
	require.NoError(t, err)
	assert.Equal(t, first, second, "second call reuses the stored key")
}

func TestEnsureKey_EnvProviderCannotGenerate(t *testing.T) {
	p := NewEnvKeyProvider("INPUTGUARD_TEST_KEY_UNSET")
	p.lookup = func(string) (string, bool) { return "", false }

	_, err := EnsureKey(p)
	assert.ErrorIs(t, err, ErrKeyReadOnly)
	assert.False(t, strings.Contains(err.Error(), "invalid key size"))
}
