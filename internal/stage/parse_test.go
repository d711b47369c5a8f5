package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crucerrors "github.com/crucidev/crucible/internal/errors"
)

func TestParseFileBlocks(t *testing.T) {
	t.Run("single block", func(t *testing.T) {
		text := "Here is the project.\n\n" +
			"### FILE: main.py\n" +
			"```python\n" +
			"print('hello')\n" +
			"```\n"

		blocks, err := ParseFileBlocks(text)
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, "main.py", blocks[0].Path)
		assert.Equal(t, "print('hello')\n", blocks[0].Content)
	})

	t.Run("multiple blocks with nested paths", func(t *testing.T) {
		text := "### FILE: pkg/util.py\n```\ndef f(): pass\n```\n" +
			"Some commentary between files.\n" +
			"### FILE: main.py\n```python\nimport pkg.util\n```\n"

		blocks, err := ParseFileBlocks(text)
		require.NoError(t, err)
		require.Len(t, blocks, 2)
		assert.Equal(t, filepath.FromSlash("pkg/util.py"), blocks[0].Path)
		assert.Equal(t, "main.py", blocks[1].Path)
	})

	t.Run("no blocks", func(t *testing.T) {
		_, err := ParseFileBlocks("Sorry, I cannot produce that.")
		require.ErrorIs(t, err, crucerrors.ErrMalformedGeneration)
	})

	t.Run("unterminated fence", func(t *testing.T) {
		_, err := ParseFileBlocks("### FILE: main.py\n```python\nprint('x')\n")
		require.ErrorIs(t, err, crucerrors.ErrMalformedGeneration)
	})

	t.Run("traversal rejected", func(t *testing.T) {
		_, err := ParseFileBlocks("### FILE: ../../etc/passwd\n```\nx\n```\n")
		require.ErrorIs(t, err, crucerrors.ErrPathTraversal)
	})

	t.Run("absolute path rejected", func(t *testing.T) {
		_, err := ParseFileBlocks("### FILE: /etc/passwd\n```\nx\n```\n")
		require.ErrorIs(t, err, crucerrors.ErrPathTraversal)
	})
}

func TestWriteFileBlocks(t *testing.T) {
	dir := t.TempDir()
	blocks := []FileBlock{
		{Path: "main.py", Content: "print('hello')\n"},
		{Path: filepath.FromSlash("pkg/util.py"), Content: "def f(): pass\n"},
	}

	require.NoError(t, WriteFileBlocks(dir, blocks))

	data, err := os.ReadFile(filepath.Join(dir, "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hello')\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "pkg", "util.py"))
	require.NoError(t, err)
	assert.Equal(t, "def f(): pass\n", string(data))
}
