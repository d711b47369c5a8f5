package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crucidev/crucible/internal/errors"
)

// AddStartCommand adds the start command to the root command.
func AddStartCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new unattended build run",
		Long: `Create a new run and drive it through the pipeline: environment
preparation, intent capture, then the development cycle iterating until
the candidate is approved.

The run pauses (not fails) when the generation service is out of quota
or unavailable; resume it later with 'crucible resume'. The development
cycle starts only after you give a literal confirmation during intent
capture.

Examples:
  crucible start              # Interactive intent capture, then hands-off
  crucible start --verbose    # Watch every stage decision`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd.Context(), os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runStart executes the start command with production dependencies.
func runStart(ctx context.Context, w io.Writer) error {
	logger := GetLogger()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}

	p, runErr := rt.engine.Start(ctx)
	if p != nil {
		fmt.Fprintf(w, "Run %s is %s\n", p.ID, p.Phase)
	}

	switch {
	case runErr == nil:
		fmt.Fprintf(w, "Candidate approved. Package it with: crucible deliver %s\n", p.ID)
		return nil
	case stderrors.Is(runErr, errors.ErrPipelinePaused):
		fmt.Fprintf(w, "Paused: %s\n", p.PauseReason)
		fmt.Fprintf(w, "Resume with: crucible resume %s\n", p.ID)
		return runErr
	case stderrors.Is(runErr, errors.ErrStartNotConfirmed):
		fmt.Fprintf(w, "Start was not confirmed. Confirm later with: crucible resume %s\n", p.ID)
		return runErr
	default:
		return runErr
	}
}
