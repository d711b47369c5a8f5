// Package delivery packages an approved working tree for handoff. The
// Dispatcher routes an explicitly selected method to one of three packagers:
// source export, executable scaffolding, or a GitHub-ready repository.
package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/crucidev/crucible/internal/config"
	"github.com/crucidev/crucible/internal/constants"
	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// Result describes one completed delivery.
type Result struct {
	// Method is the packager that produced the delivery.
	Method constants.DeliveryMethod `json:"method"`

	// Location is where the packaged artifact landed: a directory path or a
	// remote URL.
	Location string `json:"location"`

	// Log records the packaging steps taken, for the operator's audit.
	Log []string `json:"log"`
}

// Packager turns an exported working tree into a deliverable.
type Packager interface {
	// Method names the delivery method this packager serves.
	Method() constants.DeliveryMethod

	// Package finishes the delivery in dest, which already holds the
	// exported tree.
	Package(ctx context.Context, dest string) (*Result, error)
}

// Dispatcher routes delivery requests to the packager for the selected
// method. Phase gating is the engine's job; the dispatcher only packages.
type Dispatcher struct {
	packagers map[constants.DeliveryMethod]Packager
	outputDir string
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher with the standard three packagers.
func NewDispatcher(cfg config.DeliveryConfig, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		packagers: make(map[constants.DeliveryMethod]Packager),
		outputDir: cfg.OutputDir,
		logger:    logger,
	}
	d.RegisterPackager(&SourcePackager{})
	d.RegisterPackager(&ExecutablePackager{})
	d.RegisterPackager(NewGitHubPackager(cfg))
	return d
}

// RegisterPackager installs or replaces the packager for its method.
func (d *Dispatcher) RegisterPackager(p Packager) {
	d.packagers[p.Method()] = p
}

// Deliver exports the tree into a fresh timestamped directory under the
// output directory, then hands it to the selected packager.
func (d *Dispatcher) Deliver(ctx context.Context, method constants.DeliveryMethod, tree string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, ok := d.packagers[method]
	if !ok {
		return nil, fmt.Errorf("%q: %w", method, crucerrors.ErrInvalidDeliveryMethod)
	}

	dest := filepath.Join(d.outputDir,
		fmt.Sprintf("%s-%s", method, time.Now().UTC().Format("20060102-150405")))
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create delivery directory: %v: %w", err, crucerrors.ErrDeliveryFailed)
	}

	if err := exportTree(tree, dest); err != nil {
		// A partial export is not a deliverable.
		_ = os.RemoveAll(dest)
		return nil, fmt.Errorf("failed to export working tree: %w", err)
	}

	d.logger.Info().
		Str("method", string(method)).
		Str("dest", dest).
		Msg("working tree exported for delivery")

	result, err := p.Package(ctx, dest)
	if err != nil {
		return nil, err
	}

	d.logger.Info().
		Str("method", string(result.Method)).
		Str("location", result.Location).
		Msg("delivery packaged")

	return result, nil
}

// exportTree copies the working tree into dest, skipping version control and
// orchestrator bookkeeping entries.
func exportTree(tree, dest string) error {
	return filepath.WalkDir(tree, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == tree {
			return nil
		}
		if d.IsDir() && excludedEntries[d.Name()] {
			return filepath.SkipDir
		}
		if excludedEntries[d.Name()] {
			return nil
		}

		rel, err := filepath.Rel(tree, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path) //#nosec G304 -- path comes from walking the working tree
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}

// excludedEntries are working-tree entries never exported.
//
// MAINTENANCE: keep in sync with the snapshot manager's ignored entries.
var excludedEntries = map[string]bool{ //nolint:gochecknoglobals // Read-only lookup table
	".git":      true,
	".crucible": true,
}
