package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/humanio"
)

// AddDeliverCommand adds the deliver command to the root command.
func AddDeliverCommand(parent *cobra.Command) {
	var (
		method         string
		pruneSnapshots bool
	)

	cmd := &cobra.Command{
		Use:   "deliver <run-id>",
		Short: "Package an approved run",
		Long: `Package the approved working tree with an explicitly selected method:

  github      repository with CI workflow, committed and optionally pushed
  executable  export with build and install scaffolding
  source      plain export with run instructions

Without --method the choice is prompted interactively. Delivery is
refused while the run is not approved. --prune-snapshots trims the
snapshot store down to the most recent ones after a successful delivery.

Examples:
  crucible deliver run-0a1b2c3d --method source
  crucible deliver run-0a1b2c3d --method github --prune-snapshots`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeliver(cmd.Context(), os.Stdout, args[0], method, pruneSnapshots)
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", "", "delivery method (github|executable|source)")
	cmd.Flags().BoolVar(&pruneSnapshots, "prune-snapshots", false, "prune old snapshots after delivery")

	parent.AddCommand(cmd)
}

// runDeliver executes the deliver command.
func runDeliver(ctx context.Context, w io.Writer, runID, method string, pruneSnapshots bool) error {
	logger := GetLogger()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}

	p, err := rt.store.Get(ctx, runID)
	if err != nil {
		return err
	}

	if method == "" {
		method, err = selectMethod(ctx)
		if err != nil {
			return err
		}
	}

	dm := constants.DeliveryMethod(method)
	if !constants.IsValidDeliveryMethod(dm) {
		return fmt.Errorf("%q: %w", method, errors.ErrInvalidDeliveryMethod)
	}

	location, err := rt.engine.Deliver(ctx, p, dm)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s delivered (%s): %s\n", p.ID, dm, location)

	if pruneSnapshots {
		removed, err := rt.newSnapshotManager(logger).Prune(ctx, constants.DefaultSnapshotKeep)
		if err != nil {
			// Delivery already succeeded; pruning is housekeeping.
			logger.Warn().Err(err).Msg("snapshot prune failed")
			return nil
		}
		fmt.Fprintf(w, "Pruned %d old snapshots.\n", removed)
	}
	return nil
}

// selectMethod prompts for the delivery method.
func selectMethod(ctx context.Context) (string, error) {
	options := make([]string, 0, 3)
	for _, m := range constants.ValidDeliveryMethods() {
		options = append(options, string(m))
	}

	prompter := humanio.NewPrompter(stdinIsTerminal)
	return prompter.Select(ctx, "How should the artifact be delivered?", options)
}
