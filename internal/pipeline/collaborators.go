package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/humanio"
)

// EnvironmentPreparer readies the execution environment before a run starts.
// Failure is fatal: the pipeline moves straight to failed with no retry.
type EnvironmentPreparer interface {
	Prepare(ctx context.Context) error
}

// IntentCollector captures the project intent from the operator. On revision
// loops it is re-queried with the current diagnostics so refined constraints
// can be folded into the next round.
type IntentCollector interface {
	Collect(ctx context.Context, prior *domain.Intent, diags []string) (*domain.Intent, error)
}

// ExecPreparer is the default EnvironmentPreparer: it checks that the
// configured generator command resolves and the working tree is writable.
type ExecPreparer struct {
	generatorCommand string
	workDir          string
}

// NewExecPreparer creates an ExecPreparer for the given generator command
// and working tree.
func NewExecPreparer(generatorCommand, workDir string) *ExecPreparer {
	return &ExecPreparer{generatorCommand: generatorCommand, workDir: workDir}
}

// Prepare verifies the generator command and workspace writability.
func (p *ExecPreparer) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := exec.LookPath(p.generatorCommand); err != nil {
		return fmt.Errorf("generator command %q not found: %w", p.generatorCommand, crucerrors.ErrEnvironmentUnavailable)
	}

	if err := os.MkdirAll(p.workDir, 0o750); err != nil {
		return fmt.Errorf("working tree %q not usable: %w", p.workDir, crucerrors.ErrEnvironmentUnavailable)
	}

	probe := filepath.Join(p.workDir, ".crucible-write-probe")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return fmt.Errorf("working tree %q not writable: %w", p.workDir, crucerrors.ErrEnvironmentUnavailable)
	}
	_ = os.Remove(probe)

	return nil
}

// InteractiveCollector captures intent through the humanio boundary.
type InteractiveCollector struct {
	io humanio.Interactor
}

// NewInteractiveCollector creates an IntentCollector backed by the given
// interactor.
func NewInteractiveCollector(io humanio.Interactor) *InteractiveCollector {
	return &InteractiveCollector{io: io}
}

// Collect gathers the project description and the literal start confirmation.
// The confirmation answer is recorded verbatim; an unconfirmed intent keeps
// the pipeline out of the development cycle. On revision rounds the prior
// description is kept and only refinement constraints are gathered.
func (c *InteractiveCollector) Collect(ctx context.Context, prior *domain.Intent, diags []string) (*domain.Intent, error) {
	if prior != nil && prior.StartConfirmed {
		// Revision round: intent is settled, only refinements are wanted.
		return c.refine(ctx, prior, diags)
	}

	description, err := c.io.Input(ctx, "Describe the project to build", "e.g. a CLI tool that converts CSV files to JSON")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("project description: %w", crucerrors.ErrEmptyValue)
	}

	confirmed, err := c.io.Confirm(ctx, "Start the unattended build now?", false)
	if err != nil {
		return nil, err
	}

	return &domain.Intent{
		Description:    strings.TrimSpace(description),
		StartConfirmed: confirmed,
		CapturedAt:     time.Now().UTC(),
	}, nil
}

// refine shows the current diagnostics and gathers optional extra constraints.
func (c *InteractiveCollector) refine(ctx context.Context, prior *domain.Intent, diags []string) (*domain.Intent, error) {
	prompt := "The build needs revision. Additional constraints? (leave empty to keep going)"
	if len(diags) > 0 {
		prompt = fmt.Sprintf("The build needs revision:\n- %s\n\nAdditional constraints? (leave empty to keep going)",
			strings.Join(diags, "\n- "))
	}

	extra, err := c.io.Input(ctx, prompt, "")
	if err != nil {
		return nil, err
	}

	refined := *prior
	if strings.TrimSpace(extra) != "" {
		refined.Description = prior.Description + "\n\nRefinement: " + strings.TrimSpace(extra)
	}
	return &refined, nil
}
