package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crucidev/crucible/internal/humanio"
)

// AddAbandonCommand adds the abandon command to the root command.
func AddAbandonCommand(parent *cobra.Command) {
	var force bool

	cmd := &cobra.Command{
		Use:   "abandon <run-id>",
		Short: "Abandon a run, marking it failed",
		Long: `Move a non-terminal run to failed. The working tree and the last-good
snapshot are left untouched for manual inspection; nothing is restored
or deleted.

Use --force to skip the confirmation prompt.

Examples:
  crucible abandon run-0a1b2c3d
  crucible abandon run-0a1b2c3d --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAbandon(cmd.Context(), os.Stdout, args[0], force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	parent.AddCommand(cmd)
}

// runAbandon executes the abandon command.
func runAbandon(ctx context.Context, w io.Writer, runID string, force bool) error {
	logger := GetLogger()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}

	p, err := rt.store.Get(ctx, runID)
	if err != nil {
		return err
	}

	if !force {
		prompter := humanio.NewPrompter(stdinIsTerminal)
		confirmed, err := prompter.Confirm(ctx,
			fmt.Sprintf("Abandon run %s (currently %s)?", p.ID, p.Phase), false)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(w, "Abandon canceled.")
			return nil
		}
	}

	if err := rt.engine.Abort(ctx, p, "abandoned by operator"); err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s abandoned. Working tree and snapshots are preserved.\n", p.ID)
	return nil
}
