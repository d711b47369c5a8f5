package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/gen"
)

const implementationPreamble = `You are a senior developer. Implement the
project described below, following the architecture document provided. Emit
every source file as a separate block in exactly this format:

### FILE: relative/path/to/file
` + "```" + `
<complete file content>
` + "```" + `

Emit complete files only, never fragments or diffs.`

// ImplementationRunner generates the project source tree.
type ImplementationRunner struct {
	gw Generator
}

// NewImplementationRunner creates the implementation stage runner.
func NewImplementationRunner(gw Generator) *ImplementationRunner {
	return &ImplementationRunner{gw: gw}
}

// Stage identifies this runner.
func (r *ImplementationRunner) Stage() constants.Stage { return constants.StageImplementation }

// Run generates source files and writes them into the working tree. Malformed
// generation output is an ordinary fail verdict, recovered by rollback, not a
// pipeline error.
func (r *ImplementationRunner) Run(ctx context.Context, p *domain.Pipeline, in *Instructions) (*domain.Verdict, error) {
	startedAt := time.Now().UTC()
	log := zerolog.Ctx(ctx)

	arch := r.readArchitecture(in.WorkDir)

	resp, err := r.gw.Generate(ctx, &gen.Request{
		Prompt:      buildPrompt(implementationPreamble, intentDescription(p), arch),
		Constraints: in.Constraints,
		Stage:       string(r.Stage()),
	})
	if err != nil {
		if errors.Is(err, crucerrors.ErrEmptyGeneration) {
			return newVerdict(r.Stage(), constants.VerdictFail, []string{err.Error()}, startedAt), nil
		}
		return nil, err
	}

	blocks, err := ParseFileBlocks(resp.Text)
	if err != nil {
		if errors.Is(err, crucerrors.ErrMalformedGeneration) || errors.Is(err, crucerrors.ErrPathTraversal) {
			log.Warn().
				Str("run_id", p.ID).
				Err(err).
				Msg("implementation output unusable")
			return newVerdict(r.Stage(), constants.VerdictFail, []string{err.Error()}, startedAt), nil
		}
		return nil, err
	}

	if err := WriteFileBlocks(in.WorkDir, blocks); err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", p.ID).
		Str("model", resp.Model).
		Int("files", len(blocks)).
		Msg("implementation files written")

	return newVerdict(r.Stage(), constants.VerdictPass, nil, startedAt), nil
}

// readArchitecture loads the architecture document as prompt context.
func (r *ImplementationRunner) readArchitecture(workDir string) string {
	data, err := os.ReadFile(filepath.Join(workDir, ArchitectureFileName)) //#nosec G304 -- path is constructed internally
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Architecture document:\n%s", data)
}
