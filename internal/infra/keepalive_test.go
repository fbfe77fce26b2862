package infra

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "inputguard.lock")
	first := NewLockFile(path)

	require.NoError(t, first.Acquire())
	require.NoError(t, first.Acquire(), "re-acquire by holder is a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	second := NewLockFile(path)
	assert.ErrorIs(t, second.Acquire(), ErrAlreadyRunning)

	require.NoError(t, first.Release())
	require.NoError(t, first.Release(), "double release is safe")

	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestLockFile_ReleaseKeepsInode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputguard.lock")
	first := NewLockFile(path)
	require.NoError(t, first.Acquire())
	before, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, first.Release())

	after, err := os.Stat(path)
	require.NoError(t, err, "lock file survives release")
	assert.True(t, os.SameFile(before, after))
	assert.Zero(t, after.Size(), "pid cleared on release")

	// Every contender locks the one surviving inode.
	second := NewLockFile(path)
	third := NewLockFile(path)
	require.NoError(t, second.Acquire())
	assert.ErrorIs(t, third.Acquire(), ErrAlreadyRunning)
	require.NoError(t, second.Release())
}

func TestLockFile_HolderPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputguard.lock")
	lock := NewLockFile(path)
	assert.Equal(t, 0, lock.HolderPID())

	require.NoError(t, lock.Acquire())
	assert.Equal(t, os.Getpid(), lock.HolderPID())

	require.NoError(t, lock.Release())
	assert.Equal(t, 0, lock.HolderPID())

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))
	assert.Equal(t, 0, lock.HolderPID())
}
