package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/gen"
)

// ArchitectureFileName is the design document the architecture stage writes.
const ArchitectureFileName = "ARCHITECTURE.md"

const architecturePreamble = `You are a software architect. Produce a complete
architecture document for the project described below: component breakdown,
module boundaries, data flow, and the public interface of each module. Output
plain Markdown only.`

// ArchitectureRunner produces the project's architecture document.
type ArchitectureRunner struct {
	gw Generator
}

// NewArchitectureRunner creates the architecture stage runner.
func NewArchitectureRunner(gw Generator) *ArchitectureRunner {
	return &ArchitectureRunner{gw: gw}
}

// Stage identifies this runner.
func (r *ArchitectureRunner) Stage() constants.Stage { return constants.StageArchitecture }

// Run generates the architecture document and writes it into the working tree.
func (r *ArchitectureRunner) Run(ctx context.Context, p *domain.Pipeline, in *Instructions) (*domain.Verdict, error) {
	startedAt := time.Now().UTC()
	log := zerolog.Ctx(ctx)

	resp, err := r.gw.Generate(ctx, &gen.Request{
		Prompt:      buildPrompt(architecturePreamble, intentDescription(p)),
		Constraints: in.Constraints,
		Stage:       string(r.Stage()),
	})
	if err != nil {
		if errors.Is(err, crucerrors.ErrEmptyGeneration) {
			return newVerdict(r.Stage(), constants.VerdictFail, []string{err.Error()}, startedAt), nil
		}
		return nil, err
	}

	path := filepath.Join(in.WorkDir, ArchitectureFileName)
	if err := os.WriteFile(path, []byte(resp.Text), 0o600); err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", p.ID).
		Str("model", resp.Model).
		Int("bytes", len(resp.Text)).
		Msg("architecture document written")

	return newVerdict(r.Stage(), constants.VerdictPass, nil, startedAt), nil
}
