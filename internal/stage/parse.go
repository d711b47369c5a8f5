package stage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// fileHeaderPrefix marks the start of a file block in generation output.
// The generation prompt instructs the model to emit each file as:
//
//	### FILE: relative/path.py
//	```python
//	<content>
//	```
const fileHeaderPrefix = "### FILE:"

// FileBlock is one generated file extracted from generation output.
type FileBlock struct {
	Path    string
	Content string
}

// ParseFileBlocks extracts fenced file blocks from generation output.
// Returns ErrMalformedGeneration if no complete block is found or a fence
// is left unterminated, and ErrPathTraversal for paths escaping the tree.
func ParseFileBlocks(text string) ([]FileBlock, error) {
	var blocks []FileBlock

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		path    string
		inFence bool
		content []string
	)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case !inFence && strings.HasPrefix(line, fileHeaderPrefix):
			path = strings.TrimSpace(strings.TrimPrefix(line, fileHeaderPrefix))

		case path != "" && !inFence && strings.HasPrefix(line, "```"):
			inFence = true
			content = content[:0]

		case inFence && strings.TrimSpace(line) == "```":
			cleaned, err := cleanPath(path)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, FileBlock{
				Path:    cleaned,
				Content: strings.Join(content, "\n") + "\n",
			})
			path = ""
			inFence = false

		case inFence:
			content = append(content, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", crucerrors.ErrMalformedGeneration, err)
	}

	if inFence {
		return nil, fmt.Errorf("%w: unterminated file block for %q", crucerrors.ErrMalformedGeneration, path)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no file blocks found", crucerrors.ErrMalformedGeneration)
	}

	return blocks, nil
}

// cleanPath normalizes a generated file path and rejects escapes.
func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("%w: empty file path", crucerrors.ErrMalformedGeneration)
	}

	cleaned := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", p, crucerrors.ErrPathTraversal)
	}
	return cleaned, nil
}

// WriteFileBlocks writes parsed file blocks into the working tree.
func WriteFileBlocks(workDir string, blocks []FileBlock) error {
	for _, b := range blocks {
		full := filepath.Join(workDir, b.Path)
		if dir := filepath.Dir(full); dir != workDir {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", b.Path, err)
			}
		}
		if err := os.WriteFile(full, []byte(b.Content), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", b.Path, err)
		}
	}
	return nil
}
