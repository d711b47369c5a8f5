package stage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucidev/crucible/internal/config"
	"github.com/crucidev/crucible/internal/constants"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/tool"
)

// fakeExecutor returns scripted results per command and records call order.
type fakeExecutor struct {
	mu       sync.Mutex
	outcomes map[string]tool.Result
	errs     map[string]error
	calls    []string
}

func (f *fakeExecutor) Run(_ context.Context, commands []string, _ string) ([]tool.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	results := make([]tool.Result, 0, len(commands))
	for _, cmd := range commands {
		f.calls = append(f.calls, cmd)
		if err, ok := f.errs[cmd]; ok {
			return results, err
		}
		if r, ok := f.outcomes[cmd]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, tool.Result{Command: cmd, Success: true})
	}
	return results, nil
}

func testTools() config.ToolsConfig {
	return config.ToolsConfig{
		Formatter:   []string{"black ."},
		Linter:      []string{"pylint ."},
		TypeChecker: []string{"mypy ."},
		TestRunner:  []string{"pytest"},
	}
}

func TestStandardsRunner(t *testing.T) {
	t.Run("all clean passes", func(t *testing.T) {
		exec := &fakeExecutor{}
		runner := NewStandardsRunner(exec, testTools())

		v, err := runner.Run(context.Background(), testPipeline(), &Instructions{WorkDir: t.TempDir()})
		require.NoError(t, err)
		assert.Equal(t, constants.VerdictPass, v.Status)
		assert.ElementsMatch(t, []string{"black .", "pylint .", "mypy ."}, exec.calls)
	})

	t.Run("formatter runs before read-only tools", func(t *testing.T) {
		exec := &fakeExecutor{}
		runner := NewStandardsRunner(exec, testTools())

		_, err := runner.Run(context.Background(), testPipeline(), &Instructions{WorkDir: t.TempDir()})
		require.NoError(t, err)
		require.NotEmpty(t, exec.calls)
		assert.Equal(t, "black .", exec.calls[0])
	})

	t.Run("findings aggregate into needs_revision", func(t *testing.T) {
		exec := &fakeExecutor{outcomes: map[string]tool.Result{
			"pylint .": {Command: "pylint .", Success: false, ExitCode: 2, Stderr: "C0114 missing docstring"},
			"mypy .":   {Command: "mypy .", Success: false, ExitCode: 1, Stderr: "error: bad type"},
		}}
		runner := NewStandardsRunner(exec, testTools())

		v, err := runner.Run(context.Background(), testPipeline(), &Instructions{WorkDir: t.TempDir()})
		require.NoError(t, err)
		assert.Equal(t, constants.VerdictNeedsRevision, v.Status)
		require.Len(t, v.Diagnostics, 2)
	})

	t.Run("tool crash is a fail verdict", func(t *testing.T) {
		exec := &fakeExecutor{errs: map[string]error{
			"mypy .": fmt.Errorf("mypy .: %w", crucerrors.ErrToolCrashed),
		}}
		runner := NewStandardsRunner(exec, testTools())

		v, err := runner.Run(context.Background(), testPipeline(), &Instructions{WorkDir: t.TempDir()})
		require.NoError(t, err)
		assert.Equal(t, constants.VerdictFail, v.Status)
	})

	t.Run("formatter timeout is a fail verdict", func(t *testing.T) {
		exec := &fakeExecutor{errs: map[string]error{
			"black .": fmt.Errorf("black .: %w", crucerrors.ErrToolTimeout),
		}}
		runner := NewStandardsRunner(exec, testTools())

		v, err := runner.Run(context.Background(), testPipeline(), &Instructions{WorkDir: t.TempDir()})
		require.NoError(t, err)
		assert.Equal(t, constants.VerdictFail, v.Status)
	})
}

func TestTestingRunner(t *testing.T) {
	t.Run("green tests pass", func(t *testing.T) {
		exec := &fakeExecutor{}
		runner := NewTestingRunner(exec, testTools())

		v, err := runner.Run(context.Background(), testPipeline(), &Instructions{WorkDir: t.TempDir()})
		require.NoError(t, err)
		assert.Equal(t, constants.VerdictPass, v.Status)
		assert.Equal(t, []string{"pytest"}, exec.calls)
	})

	t.Run("failing tests need revision", func(t *testing.T) {
		exec := &fakeExecutor{outcomes: map[string]tool.Result{
			"pytest": {Command: "pytest", Success: false, ExitCode: 1, Stdout: "2 failed, 5 passed"},
		}}
		runner := NewTestingRunner(exec, testTools())

		v, err := runner.Run(context.Background(), testPipeline(), &Instructions{WorkDir: t.TempDir()})
		require.NoError(t, err)
		assert.Equal(t, constants.VerdictNeedsRevision, v.Status)
		require.Len(t, v.Diagnostics, 1)
		assert.Contains(t, v.Diagnostics[0], "2 failed")
	})

	t.Run("runner crash is a fail verdict", func(t *testing.T) {
		exec := &fakeExecutor{errs: map[string]error{
			"pytest": fmt.Errorf("pytest: %w", crucerrors.ErrToolCrashed),
		}}
		runner := NewTestingRunner(exec, testTools())

		v, err := runner.Run(context.Background(), testPipeline(), &Instructions{WorkDir: t.TempDir()})
		require.NoError(t, err)
		assert.Equal(t, constants.VerdictFail, v.Status)
	})
}
