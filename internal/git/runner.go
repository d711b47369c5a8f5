// Package git wraps the git CLI operations Crucible needs to publish a
// delivered working tree: repository initialization, staging, committing,
// and pushing to a remote.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/crucidev/crucible/internal/ctxutil"
	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// Committer identity used for unattended commits. Deliveries are machine
// authored; there is no operator identity to borrow.
const (
	commitAuthorName  = "crucible"
	commitAuthorEmail = "crucible@localhost"
)

// RunCommand executes a git command in the specified directory and returns
// its trimmed stdout. Failures are wrapped with ErrGitOperation and include
// stderr for debugging.
func RunCommand(ctx context.Context, workDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...) //#nosec G204 -- args are constructed internally, not user input
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("git %s failed: %s: %w", args[0], strings.TrimSpace(stderr.String()), crucerrors.ErrGitOperation)
		}
		return "", fmt.Errorf("git %s failed: %w", args[0], crucerrors.ErrGitOperation)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Runner executes git operations against one working directory.
type Runner struct {
	workDir string
}

// NewRunner creates a Runner for the given directory. The directory does not
// need to be a repository yet; Init creates one.
func NewRunner(workDir string) (*Runner, error) {
	if workDir == "" {
		return nil, fmt.Errorf("work directory cannot be empty: %w", crucerrors.ErrEmptyValue)
	}
	return &Runner{workDir: workDir}, nil
}

// Init creates a repository on branch main and pins the unattended committer
// identity into local config.
func (r *Runner) Init(ctx context.Context) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if _, err := RunCommand(ctx, r.workDir, "init", "--initial-branch", "main"); err != nil {
		return fmt.Errorf("failed to init repository: %w", err)
	}
	if _, err := RunCommand(ctx, r.workDir, "config", "user.name", commitAuthorName); err != nil {
		return err
	}
	if _, err := RunCommand(ctx, r.workDir, "config", "user.email", commitAuthorEmail); err != nil {
		return err
	}
	return nil
}

// Add stages files for commit. If paths is empty, stages all changes.
func (r *Runner) Add(ctx context.Context, paths []string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	args := []string{"add"}
	if len(paths) == 0 {
		args = append(args, "-A")
	} else {
		args = append(args, "--")
		args = append(args, paths...)
	}

	if _, err := RunCommand(ctx, r.workDir, args...); err != nil {
		return fmt.Errorf("failed to add files: %w", err)
	}
	return nil
}

// Commit creates a commit with the given message and returns its hash.
func (r *Runner) Commit(ctx context.Context, message string) (string, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("commit message cannot be empty: %w", crucerrors.ErrEmptyValue)
	}

	if _, err := RunCommand(ctx, r.workDir, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	hash, err := RunCommand(ctx, r.workDir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to read commit hash: %w", err)
	}
	return hash, nil
}

// AddRemote registers a named remote URL.
func (r *Runner) AddRemote(ctx context.Context, name, url string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if name == "" || url == "" {
		return fmt.Errorf("remote name and url cannot be empty: %w", crucerrors.ErrEmptyValue)
	}

	if _, err := RunCommand(ctx, r.workDir, "remote", "add", name, url); err != nil {
		return fmt.Errorf("failed to add remote %q: %w", name, err)
	}
	return nil
}

// Push pushes the branch to the remote with upstream tracking.
func (r *Runner) Push(ctx context.Context, remote, branch string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if remote == "" || branch == "" {
		return fmt.Errorf("remote and branch cannot be empty: %w", crucerrors.ErrEmptyValue)
	}

	if _, err := RunCommand(ctx, r.workDir, "push", "-u", remote, branch); err != nil {
		return fmt.Errorf("failed to push to %s/%s: %w", remote, branch, err)
	}
	return nil
}

// CurrentBranch returns the checked out branch name.
func (r *Runner) CurrentBranch(ctx context.Context) (string, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}

	branch, err := RunCommand(ctx, r.workDir, "branch", "--show-current")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	if branch == "" {
		return "", fmt.Errorf("detached HEAD state: %w", crucerrors.ErrGitOperation)
	}
	return branch, nil
}
