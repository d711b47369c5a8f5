package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crucidev/crucible/internal/constants"
	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// DeliveryNotesFileName is the run-instructions file every source export
// carries.
const DeliveryNotesFileName = "DELIVERY.md"

const deliveryNotes = `# Delivery notes

This directory is a source export of a generated project.

## Running

1. Read README.md for the project overview and usage.
2. Install the project's dependencies as described there.
3. Run the project's tests before making changes.

## Layout

ARCHITECTURE.md describes the intended structure of the source tree.
`

// SourcePackager finishes a plain source export: the tree plus run
// instructions. It is the simplest delivery method and the fallback when no
// publishing target exists.
type SourcePackager struct{}

// Method implements Packager.
func (p *SourcePackager) Method() constants.DeliveryMethod { return constants.DeliverySource }

// Package writes the run-instructions file into the exported tree.
func (p *SourcePackager) Package(ctx context.Context, dest string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notesPath := filepath.Join(dest, DeliveryNotesFileName)
	if err := os.WriteFile(notesPath, []byte(deliveryNotes), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write delivery notes: %v: %w", err, crucerrors.ErrDeliveryFailed)
	}

	return &Result{
		Method:   constants.DeliverySource,
		Location: dest,
		Log: []string{
			"exported working tree to " + dest,
			"wrote " + DeliveryNotesFileName,
		},
	}, nil
}
