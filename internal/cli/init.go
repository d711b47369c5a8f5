package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crucidev/crucible/internal/config"
	"github.com/crucidev/crucible/internal/constants"
)

// AddInitCommand adds the init command to the root command.
func AddInitCommand(parent *cobra.Command) {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the crucible home directory and default config",
		Long: `Create ~/.crucible with its runs, snapshots, logs, and deliveries
directories, and write a default config.yaml.

The config file documents every knob: the pinned generation model, the
retry bound, the rejection policy, quality tool commands, and delivery
settings. Existing config is never overwritten without --force.

Examples:
  crucible init           # Scaffold ~/.crucible
  crucible init --force   # Rewrite config.yaml with defaults`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), os.Stdout, force, "")
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")

	parent.AddCommand(cmd)
}

// runInit scaffolds the crucible home. homeOverride is for tests.
func runInit(ctx context.Context, w io.Writer, force bool, homeOverride string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	home := homeOverride
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to determine home directory: %w", err)
		}
		home = filepath.Join(userHome, constants.CrucibleHome)
	}

	for _, dir := range []string{
		constants.RunsDir,
		constants.SnapshotsDir,
		constants.LogsDir,
		constants.DeliveriesDir,
	} {
		if err := os.MkdirAll(filepath.Join(home, dir), 0o750); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	configPath := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(w, "Config already exists at %s (use --force to overwrite)\n", configPath)
		return nil
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Initialized crucible home at %s\n", home)
	fmt.Fprintf(w, "Edit %s to configure the generation command and tools.\n", configPath)
	return nil
}
