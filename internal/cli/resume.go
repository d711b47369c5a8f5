package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/pipeline"
)

// AddResumeCommand adds the resume command to the root command.
func AddResumeCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Resume a paused or interrupted run",
		Long: `Continue a run from its checkpointed state. A paused run re-enters the
stage it was suspended at; an interrupted run picks up at its current
phase. Resumption happens only on this explicit command, never on a
timer.

Examples:
  crucible resume run-0a1b2c3d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd.Context(), os.Stdout, args[0])
		},
	}
	parent.AddCommand(cmd)
}

// runResume executes the resume command.
func runResume(ctx context.Context, w io.Writer, runID string) error {
	logger := GetLogger()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}

	p, err := rt.store.Get(ctx, runID)
	if err != nil {
		return err
	}

	if pipeline.IsTerminalPhase(p.Phase) {
		return fmt.Errorf("run '%s' already %s: %w", p.ID, p.Phase, errors.ErrInvalidTransition)
	}

	var runErr error
	if p.Paused {
		runErr = rt.engine.Resume(ctx, p)
	} else {
		runErr = rt.engine.Run(ctx, p)
	}

	fmt.Fprintf(w, "Run %s is %s\n", p.ID, p.Phase)

	switch {
	case runErr == nil && p.Phase == constants.PhaseApproved:
		fmt.Fprintf(w, "Candidate approved. Package it with: crucible deliver %s\n", p.ID)
		return nil
	case stderrors.Is(runErr, errors.ErrPipelinePaused):
		fmt.Fprintf(w, "Paused again: %s\n", p.PauseReason)
		fmt.Fprintf(w, "Resume with: crucible resume %s\n", p.ID)
		return runErr
	case stderrors.Is(runErr, errors.ErrStartNotConfirmed):
		fmt.Fprintf(w, "Start was not confirmed. Run: crucible resume %s\n", p.ID)
		return runErr
	default:
		return runErr
	}
}
