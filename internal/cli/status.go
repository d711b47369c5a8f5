package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/crucidev/crucible/internal/checkpoint"
	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	"github.com/crucidev/crucible/internal/pipeline"
)

// Styles for the status table.
var (
	statusHeaderStyle = lipgloss.NewStyle(). //nolint:gochecknoglobals // Render styles
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "236", Dark: "252"})

	statusPausedStyle = lipgloss.NewStyle(). //nolint:gochecknoglobals // Render styles
				Foreground(lipgloss.AdaptiveColor{Light: "166", Dark: "214"})

	statusFailedStyle = lipgloss.NewStyle(). //nolint:gochecknoglobals // Render styles
				Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "203"})

	statusDoneStyle = lipgloss.NewStyle(). //nolint:gochecknoglobals // Render styles
			Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "78"})
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show run status",
		Long: `Display the state of all runs, or the detail of one run: its phase,
iteration, retry budget, pause condition, and transition history.

Examples:
  crucible status                 # Table of all runs
  crucible status run-0a1b2c3d    # One run in detail
  crucible status --output json   # Machine-readable`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) > 0 {
				runID = args[0]
			}
			output := cmd.Flag("output").Value.String()
			return runStatus(cmd.Context(), os.Stdout, runID, output)
		},
	}
	parent.AddCommand(cmd)
}

// runStatus executes the status command.
func runStatus(ctx context.Context, w io.Writer, runID, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store, err := checkpoint.NewFileStore("")
	if err != nil {
		return err
	}

	if runID != "" {
		p, err := store.Get(ctx, runID)
		if err != nil {
			return err
		}
		return renderRunDetail(w, p, output)
	}

	runs, err := store.List(ctx)
	if err != nil {
		return err
	}
	return renderRunTable(w, runs, output)
}

// renderRunTable prints all runs, newest first.
func renderRunTable(w io.Writer, runs []*domain.Pipeline, output string) error {
	if output == OutputJSON {
		return json.NewEncoder(w).Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs yet. Start one with: crucible start")
		return nil
	}

	fmt.Fprintln(w, statusHeaderStyle.Render(fmt.Sprintf("%-14s %-16s %5s %7s %-8s %s",
		"RUN", "PHASE", "ITER", "RETRIES", "STATE", "UPDATED")))
	for _, p := range runs {
		fmt.Fprintf(w, "%-14s %-16s %5d %7d %-8s %s\n",
			p.ID, renderPhase(p), p.Iteration, p.RetryCount, runState(p),
			p.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}

// renderRunDetail prints one run with its transition history.
func renderRunDetail(w io.Writer, p *domain.Pipeline, output string) error {
	if output == OutputJSON {
		return json.NewEncoder(w).Encode(p)
	}

	fmt.Fprintf(w, "Run:        %s\n", p.ID)
	fmt.Fprintf(w, "Phase:      %s\n", renderPhase(p))
	fmt.Fprintf(w, "Iteration:  %d\n", p.Iteration)
	fmt.Fprintf(w, "Retries:    %d\n", p.RetryCount)
	if p.Intent != nil {
		fmt.Fprintf(w, "Intent:     %s\n", firstLine(p.Intent.Description))
	}
	if p.Paused {
		fmt.Fprintf(w, "Paused:     %s (at %s)\n",
			statusPausedStyle.Render(p.PauseReason), p.PausedStage)
		fmt.Fprintf(w, "            resume with: crucible resume %s\n", p.ID)
	}
	if p.Phase == constants.PhaseApproved {
		fmt.Fprintf(w, "Next:       crucible deliver %s\n", p.ID)
	}

	if len(p.Transitions) > 0 {
		fmt.Fprintln(w, "\nHistory:")
		for _, tr := range p.Transitions {
			fmt.Fprintf(w, "  %s  %s -> %s  %s\n",
				tr.Timestamp.Local().Format(time.DateTime), tr.FromPhase, tr.ToPhase, tr.Reason)
		}
	}
	return nil
}

// renderPhase colors the phase by its disposition.
func renderPhase(p *domain.Pipeline) string {
	phase := string(p.Phase)
	switch {
	case p.Paused:
		return statusPausedStyle.Render(phase)
	case p.Phase == constants.PhaseFailed:
		return statusFailedStyle.Render(phase)
	case p.Phase == constants.PhaseDelivered || p.Phase == constants.PhaseApproved:
		return statusDoneStyle.Render(phase)
	default:
		return phase
	}
}

// runState summarizes a run's disposition for the table.
func runState(p *domain.Pipeline) string {
	switch {
	case p.Paused:
		return "paused"
	case pipeline.IsTerminalPhase(p.Phase):
		return "done"
	default:
		return "active"
	}
}

// firstLine returns the first line of a multi-line description.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
