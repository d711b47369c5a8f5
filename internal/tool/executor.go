package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// DefaultTimeout is the default timeout for a single quality command.
const DefaultTimeout = 5 * time.Minute

// maxDiagnosticLen caps a single diagnostic line carried into a verdict.
// Full output is preserved in Result; diagnostics feed generation prompts
// and must stay bounded.
const maxDiagnosticLen = 2000

// Result captures the outcome of a single quality command.
type Result struct {
	Command     string    `json:"command"`
	Success     bool      `json:"success"`
	ExitCode    int       `json:"exit_code"`
	Stdout      string    `json:"stdout"`
	Stderr      string    `json:"stderr"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Diagnostic renders the result as a single bounded diagnostic string
// suitable for feeding back into a revision prompt.
func (r *Result) Diagnostic() string {
	out := strings.TrimSpace(r.Stderr)
	if out == "" {
		out = strings.TrimSpace(r.Stdout)
	}
	if out == "" {
		out = r.Error
	}
	d := fmt.Sprintf("%s (exit %d): %s", r.Command, r.ExitCode, out)
	if len(d) > maxDiagnosticLen {
		d = d[:maxDiagnosticLen]
	}
	return d
}

// Executor runs quality commands against a working tree.
type Executor struct {
	runner  CommandRunner
	timeout time.Duration
}

// NewExecutor creates an executor with the default command runner.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		runner:  &DefaultCommandRunner{},
		timeout: timeout,
	}
}

// NewExecutorWithRunner creates an executor with a custom runner (for testing).
func NewExecutorWithRunner(timeout time.Duration, runner CommandRunner) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		runner:  runner,
		timeout: timeout,
	}
}

// Run executes commands sequentially against workDir, collecting a result
// per command. A nonzero exit is a finding and does not stop the sequence;
// later tools still report so one revision pass can address everything.
// A crashed or timed-out command stops the sequence with an error.
func (e *Executor) Run(ctx context.Context, commands []string, workDir string) ([]Result, error) {
	results := make([]Result, 0, len(commands))

	for _, cmd := range commands {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result, err := e.RunSingle(ctx, cmd, workDir)
		if result != nil {
			results = append(results, *result)
		}
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// RunSingle executes a single command with timeout handling.
func (e *Executor) RunSingle(ctx context.Context, command, workDir string) (*Result, error) {
	log := zerolog.Ctx(ctx)

	startTime := time.Now()
	log.Info().
		Str("command", command).
		Str("work_dir", workDir).
		Msg("executing quality command")

	cmdCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stdout, stderr, exitCode, runErr := e.runner.Run(cmdCtx, workDir, command)

	completedAt := time.Now()
	duration := completedAt.Sub(startTime)

	result := &Result{
		Command:     command,
		ExitCode:    exitCode,
		Stdout:      stdout,
		Stderr:      stderr,
		DurationMs:  duration.Milliseconds(),
		StartedAt:   startTime,
		CompletedAt: completedAt,
	}

	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		result.Success = false
		result.Error = "command timed out"

		log.Error().
			Str("command", command).
			Dur("duration_ms", duration).
			Str("stderr", stderr).
			Msg("quality command timed out")

		return result, fmt.Errorf("%s: %w", command, crucerrors.ErrToolTimeout)
	}

	if ctx.Err() != nil {
		result.Success = false
		result.Error = "context canceled"
		return result, ctx.Err()
	}

	if runErr != nil {
		result.Success = false
		result.Error = runErr.Error()

		log.Error().
			Str("command", command).
			Str("error", runErr.Error()).
			Msg("quality command could not run")

		return result, fmt.Errorf("%s: %w: %s", command, crucerrors.ErrToolCrashed, runErr)
	}

	if exitCode != 0 {
		result.Success = false
		result.Error = fmt.Sprintf("exit code %d", exitCode)

		log.Warn().
			Str("command", command).
			Int("exit_code", exitCode).
			Dur("duration_ms", duration).
			Str("stderr", stderr).
			Msg("quality command reported findings")

		return result, nil
	}

	result.Success = true

	log.Info().
		Str("command", command).
		Int("exit_code", exitCode).
		Dur("duration_ms", duration).
		Msg("quality command completed")

	return result, nil
}
