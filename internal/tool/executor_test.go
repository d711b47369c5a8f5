package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// fakeRunner returns scripted outcomes keyed by command.
type fakeRunner struct {
	outcomes map[string]fakeOutcome
	calls    []string
}

type fakeOutcome struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
	delay    time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, _ string, command string) (string, string, int, error) {
	f.calls = append(f.calls, command)
	out, ok := f.outcomes[command]
	if !ok {
		return "", "", 0, nil
	}
	if out.delay > 0 {
		select {
		case <-time.After(out.delay):
		case <-ctx.Done():
			return "", "", 1, ctx.Err()
		}
	}
	return out.stdout, out.stderr, out.exitCode, out.err
}

func TestExecutorRun(t *testing.T) {
	t.Run("all commands succeed", func(t *testing.T) {
		runner := &fakeRunner{outcomes: map[string]fakeOutcome{
			"black .": {stdout: "reformatted 0 files"},
			"pylint .": {},
		}}
		exec := NewExecutorWithRunner(time.Minute, runner)

		results, err := exec.Run(context.Background(), []string{"black .", "pylint ."}, t.TempDir())
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.True(t, results[0].Success)
		assert.True(t, results[1].Success)
	})

	t.Run("findings do not stop the sequence", func(t *testing.T) {
		runner := &fakeRunner{outcomes: map[string]fakeOutcome{
			"pylint .": {stderr: "E0001: syntax error", exitCode: 2},
			"mypy .":   {},
		}}
		exec := NewExecutorWithRunner(time.Minute, runner)

		results, err := exec.Run(context.Background(), []string{"pylint .", "mypy ."}, t.TempDir())
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.False(t, results[0].Success)
		assert.Equal(t, 2, results[0].ExitCode)
		assert.True(t, results[1].Success)
		assert.Equal(t, []string{"pylint .", "mypy ."}, runner.calls)
	})

	t.Run("crash stops the sequence", func(t *testing.T) {
		runner := &fakeRunner{outcomes: map[string]fakeOutcome{
			"pylint .": {err: errors.New("executable not found")},
		}}
		exec := NewExecutorWithRunner(time.Minute, runner)

		results, err := exec.Run(context.Background(), []string{"pylint .", "mypy ."}, t.TempDir())
		require.ErrorIs(t, err, crucerrors.ErrToolCrashed)
		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
		assert.Equal(t, []string{"pylint ."}, runner.calls)
	})

	t.Run("timeout reported as ErrToolTimeout", func(t *testing.T) {
		runner := &fakeRunner{outcomes: map[string]fakeOutcome{
			"pytest": {delay: time.Second},
		}}
		exec := NewExecutorWithRunner(10*time.Millisecond, runner)

		results, err := exec.Run(context.Background(), []string{"pytest"}, t.TempDir())
		require.ErrorIs(t, err, crucerrors.ErrToolTimeout)
		require.Len(t, results, 1)
		assert.Equal(t, "command timed out", results[0].Error)
	})

	t.Run("caller cancellation is not a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		exec := NewExecutorWithRunner(time.Minute, &fakeRunner{})

		_, err := exec.Run(ctx, []string{"pytest"}, t.TempDir())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestResultDiagnostic(t *testing.T) {
	t.Run("prefers stderr", func(t *testing.T) {
		r := &Result{Command: "pylint .", ExitCode: 2, Stdout: "ignored", Stderr: "E0001: bad"}
		assert.Equal(t, "pylint . (exit 2): E0001: bad", r.Diagnostic())
	})

	t.Run("falls back to stdout then error", func(t *testing.T) {
		r := &Result{Command: "mypy .", ExitCode: 1, Stdout: "error: incompatible types"}
		assert.Contains(t, r.Diagnostic(), "incompatible types")

		r = &Result{Command: "mypy .", ExitCode: 1, Error: "exit code 1"}
		assert.Contains(t, r.Diagnostic(), "exit code 1")
	})

	t.Run("bounded length", func(t *testing.T) {
		r := &Result{Command: "pytest", ExitCode: 1, Stderr: strings.Repeat("x", 10000)}
		assert.LessOrEqual(t, len(r.Diagnostic()), maxDiagnosticLen)
	})
}

func TestDefaultCommandRunner(t *testing.T) {
	runner := &DefaultCommandRunner{}

	t.Run("captures stdout", func(t *testing.T) {
		stdout, _, code, err := runner.Run(context.Background(), t.TempDir(), "printf hello")
		require.NoError(t, err)
		assert.Zero(t, code)
		assert.Equal(t, "hello", stdout)
	})

	t.Run("nonzero exit is not an error", func(t *testing.T) {
		_, _, code, err := runner.Run(context.Background(), t.TempDir(), "exit 3")
		require.NoError(t, err)
		assert.Equal(t, 3, code)
	})
}
