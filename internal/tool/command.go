// Package tool provides quality-tool execution for Crucible stages.
//
// SECURITY NOTE: The commands executed by this package come from project
// configuration files (.crucible/config.yaml) or the user's global config
// (~/.crucible/config.yaml). These are treated as trusted input because:
//   - Project configs are committed to the repository (anyone who can modify
//     them already has repository write access and could add arbitrary scripts)
//   - Global configs are in the user's home directory (same trust level as .bashrc)
//
// This is the same trust model as Makefiles, npm scripts, or CI/CD
// configurations. The sh -c invocation is intentional to support shell
// features (pipes, redirects, etc.) commonly used in quality commands.
package tool

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandRunner defines the interface for executing shell commands.
// This allows for testing by injecting mock implementations.
type CommandRunner interface {
	// Run executes a shell command and returns its output.
	Run(ctx context.Context, workDir, command string) (stdout, stderr string, exitCode int, err error)
}

// DefaultCommandRunner implements CommandRunner using os/exec.
type DefaultCommandRunner struct{}

// Run executes a shell command using sh -c.
func (r *DefaultCommandRunner) Run(ctx context.Context, workDir, command string) (stdout, stderr string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = workDir

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			// A nonzero exit is a finding, not an execution failure.
			err = nil
		} else {
			exitCode = 1
		}
	}

	return stdout, stderr, exitCode, err
}
