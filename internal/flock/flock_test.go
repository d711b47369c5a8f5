//go:build unix

package flock_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucidev/crucible/internal/flock"
)

func openLockFile(t *testing.T, flags int) *os.File {
	t.Helper()

	path := filepath.Join(t.TempDir(), "run.lock")
	f, err := os.OpenFile(path, flags, 0o600) // #nosec G304 -- test fixture in temp dir
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestExclusiveLock(t *testing.T) {
	t.Parallel()

	t.Run("acquires and releases", func(t *testing.T) {
		t.Parallel()
		f := openLockFile(t, os.O_RDWR|os.O_CREATE)

		require.NoError(t, flock.Exclusive(f.Fd()))
		require.NoError(t, flock.Unlock(f.Fd()))
	})

	t.Run("second holder is refused without blocking", func(t *testing.T) {
		t.Parallel()
		f1 := openLockFile(t, os.O_RDWR|os.O_CREATE)
		require.NoError(t, flock.Exclusive(f1.Fd()))
		defer func() { _ = flock.Unlock(f1.Fd()) }()

		f2, err := os.OpenFile(f1.Name(), os.O_RDWR, 0o600) // #nosec G304 -- test fixture in temp dir
		require.NoError(t, err)
		defer func() { _ = f2.Close() }()

		assert.Error(t, flock.Exclusive(f2.Fd()))
	})

	t.Run("reacquirable after unlock", func(t *testing.T) {
		t.Parallel()
		f := openLockFile(t, os.O_RDWR|os.O_CREATE)

		require.NoError(t, flock.Exclusive(f.Fd()))
		require.NoError(t, flock.Unlock(f.Fd()))

		require.NoError(t, flock.Exclusive(f.Fd()))
		assert.NoError(t, flock.Unlock(f.Fd()))
	})
}
