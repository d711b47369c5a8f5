package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crucerrors "github.com/crucidev/crucible/internal/errors"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()

	workDir := t.TempDir()
	root := t.TempDir()
	return NewManager(workDir, root, zerolog.Nop()), workDir
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	}
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()

	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if d.IsDir() {
			if ignoredEntries[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		require.NoError(t, relErr)
		data, readErr := os.ReadFile(path) //#nosec G304 -- test fixture
		require.NoError(t, readErr)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestGenerateSnapshotID(t *testing.T) {
	id := GenerateSnapshotID()
	assert.Regexp(t, `^snap-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, GenerateSnapshotID())
}

func TestManagerCreate(t *testing.T) {
	t.Run("captures full tree with digests", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{
			"main.py":          "print('hello')\n",
			"pkg/util.py":      "def f(): pass\n",
			"pkg/deep/data.py": "x = 1\n",
		})

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)

		assert.Regexp(t, `^snap-[0-9a-f]{8}$`, info.ID)
		assert.Equal(t, 3, info.FileCount)
		assert.Len(t, info.Files, 3)
		assert.False(t, info.CreatedAt.IsZero())

		// Manifest entries are sorted and use forward slashes.
		assert.Equal(t, "main.py", info.Files[0].Path)
		assert.Equal(t, "pkg/deep/data.py", info.Files[1].Path)
		assert.Equal(t, "pkg/util.py", info.Files[2].Path)
		for _, f := range info.Files {
			assert.Len(t, f.SHA256, 64)
		}
	})

	t.Run("skips version control and run metadata", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{
			"main.py":              "print('hello')\n",
			".git/HEAD":            "ref: refs/heads/main\n",
			".crucible/config.yaml": "generation:\n  model: x\n",
		})

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, info.FileCount)
		assert.Equal(t, "main.py", info.Files[0].Path)
	})

	t.Run("empty tree produces empty snapshot", func(t *testing.T) {
		mgr, _ := newTestManager(t)

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, info.FileCount)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		mgr, _ := newTestManager(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := mgr.Create(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestManagerRestore(t *testing.T) {
	t.Run("restores tree bit for bit", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		original := map[string]string{
			"main.py":     "print('v1')\n",
			"pkg/util.py": "def f(): pass\n",
		}
		writeTree(t, workDir, original)

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)

		// Mutate: modify a file, add a stray file, delete another.
		writeTree(t, workDir, map[string]string{
			"main.py":  "print('v2 broken')\n",
			"stray.py": "leftover from failed stage\n",
		})
		require.NoError(t, os.Remove(filepath.Join(workDir, "pkg", "util.py")))

		require.NoError(t, mgr.Restore(context.Background(), info.ID))
		assert.Equal(t, original, readTree(t, workDir))
	})

	t.Run("recreates directories that were empty at snapshot time", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{"a.py": "a\n"})
		require.NoError(t, os.MkdirAll(filepath.Join(workDir, "tests", "fixtures"), 0o750))

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)

		require.NoError(t, os.RemoveAll(filepath.Join(workDir, "tests")))

		require.NoError(t, mgr.Restore(context.Background(), info.ID))
		fi, statErr := os.Stat(filepath.Join(workDir, "tests", "fixtures"))
		require.NoError(t, statErr)
		assert.True(t, fi.IsDir())
	})

	t.Run("removes files not present at snapshot time", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{"a.py": "a\n"})

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)

		writeTree(t, workDir, map[string]string{"partial/half_written.py": "oops"})

		require.NoError(t, mgr.Restore(context.Background(), info.ID))
		_, statErr := os.Stat(filepath.Join(workDir, "partial"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("preserves run metadata during restore", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{"a.py": "a\n"})

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)

		writeTree(t, workDir, map[string]string{".crucible/config.yaml": "kept\n"})

		require.NoError(t, mgr.Restore(context.Background(), info.ID))
		data, readErr := os.ReadFile(filepath.Join(workDir, ".crucible", "config.yaml"))
		require.NoError(t, readErr)
		assert.Equal(t, "kept\n", string(data))
	})

	t.Run("unknown snapshot", func(t *testing.T) {
		mgr, _ := newTestManager(t)

		err := mgr.Restore(context.Background(), "snap-missing1")
		require.ErrorIs(t, err, crucerrors.ErrSnapshotNotFound)
	})
}

func TestManagerVerify(t *testing.T) {
	t.Run("clean snapshot verifies", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{"a.py": "a\n", "b.py": "b\n"})

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)
		require.NoError(t, mgr.Verify(context.Background(), info.ID))
	})

	t.Run("tampered file detected", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{"a.py": "a\n"})

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)

		tampered := filepath.Join(mgr.root, info.ID, treeDirName, "a.py")
		require.NoError(t, os.WriteFile(tampered, []byte("modified\n"), 0o600))

		err = mgr.Verify(context.Background(), info.ID)
		require.ErrorIs(t, err, crucerrors.ErrSnapshotCorrupted)
		assert.Contains(t, err.Error(), "a.py")
	})

	t.Run("missing captured file detected", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{"a.py": "a\n"})

		info, err := mgr.Create(context.Background())
		require.NoError(t, err)

		require.NoError(t, os.Remove(filepath.Join(mgr.root, info.ID, treeDirName, "a.py")))
		require.ErrorIs(t, mgr.Verify(context.Background(), info.ID), crucerrors.ErrSnapshotCorrupted)
	})
}

func TestManagerList(t *testing.T) {
	t.Run("empty root", func(t *testing.T) {
		mgr, _ := newTestManager(t)

		infos, err := mgr.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("ordered oldest first", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{"a.py": "a\n"})

		var ids []string
		for range 3 {
			info, err := mgr.Create(context.Background())
			require.NoError(t, err)
			ids = append(ids, info.ID)
		}

		infos, err := mgr.List(context.Background())
		require.NoError(t, err)
		require.Len(t, infos, 3)
		for i, info := range infos {
			assert.Equal(t, ids[i], info.ID)
		}
	})
}

func TestManagerPrune(t *testing.T) {
	t.Run("keeps newest", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{"a.py": "a\n"})

		var ids []string
		for range 5 {
			info, err := mgr.Create(context.Background())
			require.NoError(t, err)
			ids = append(ids, info.ID)
		}

		removed, err := mgr.Prune(context.Background(), 2)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		infos, err := mgr.List(context.Background())
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, ids[3], infos[0].ID)
		assert.Equal(t, ids[4], infos[1].ID)
	})

	t.Run("noop when under limit", func(t *testing.T) {
		mgr, workDir := newTestManager(t)
		writeTree(t, workDir, map[string]string{"a.py": "a\n"})

		_, err := mgr.Create(context.Background())
		require.NoError(t, err)

		removed, err := mgr.Prune(context.Background(), 5)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}
