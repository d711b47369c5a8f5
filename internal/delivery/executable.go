package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crucidev/crucible/internal/constants"
	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// Scaffolding files the executable packager adds to the export.
const (
	BuildScriptFileName = "build.sh"
	InstallFileName     = "INSTALL.md"
)

const buildScript = `#!/bin/sh
# Builds a standalone executable from this export.
set -eu

if ! command -v pyinstaller >/dev/null 2>&1; then
    echo "pyinstaller is required: pip install pyinstaller" >&2
    exit 1
fi

entry="main.py"
if [ ! -f "$entry" ]; then
    echo "no $entry found; pass the entry point as the first argument" >&2
    entry="${1:?entry point required}"
fi

pyinstaller --onefile "$entry"
echo "executable written to dist/"
`

const installNotes = `# Installing

This export builds into a standalone executable.

1. Install the build tool: ` + "`pip install pyinstaller`" + `
2. Run ` + "`./build.sh`" + ` (pass the entry point as an argument if the
   default is not detected).
3. Copy the binary from ` + "`dist/`" + ` onto your PATH.

See README.md for what the program does and how to use it.
`

// ExecutablePackager finishes an export with build and install scaffolding
// so the operator can produce a standalone binary.
type ExecutablePackager struct{}

// Method implements Packager.
func (p *ExecutablePackager) Method() constants.DeliveryMethod { return constants.DeliveryExecutable }

// Package writes the build script and install notes into the exported tree.
func (p *ExecutablePackager) Package(ctx context.Context, dest string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scriptPath := filepath.Join(dest, BuildScriptFileName)
	if err := os.WriteFile(scriptPath, []byte(buildScript), 0o750); err != nil { //#nosec G306 -- build script must be executable
		return nil, fmt.Errorf("failed to write build script: %v: %w", err, crucerrors.ErrDeliveryFailed)
	}

	notesPath := filepath.Join(dest, InstallFileName)
	if err := os.WriteFile(notesPath, []byte(installNotes), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write install notes: %v: %w", err, crucerrors.ErrDeliveryFailed)
	}

	return &Result{
		Method:   constants.DeliveryExecutable,
		Location: dest,
		Log: []string{
			"exported working tree to " + dest,
			"wrote " + BuildScriptFileName,
			"wrote " + InstallFileName,
		},
	}, nil
}
