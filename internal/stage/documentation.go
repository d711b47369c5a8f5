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

// ReadmeFileName is the user documentation the documentation stage writes.
const ReadmeFileName = "README.md"

const documentationPreamble = `You are a technical writer. Produce a complete
README for the project described below: purpose, installation, usage with
examples, and configuration. Output plain Markdown only.`

// DocumentationRunner produces the project README.
type DocumentationRunner struct {
	gw Generator
}

// NewDocumentationRunner creates the documentation stage runner.
func NewDocumentationRunner(gw Generator) *DocumentationRunner {
	return &DocumentationRunner{gw: gw}
}

// Stage identifies this runner.
func (r *DocumentationRunner) Stage() constants.Stage { return constants.StageDocumentation }

// Run generates the README and writes it into the working tree.
func (r *DocumentationRunner) Run(ctx context.Context, p *domain.Pipeline, in *Instructions) (*domain.Verdict, error) {
	startedAt := time.Now().UTC()
	log := zerolog.Ctx(ctx)

	resp, err := r.gw.Generate(ctx, &gen.Request{
		Prompt:      buildPrompt(documentationPreamble, intentDescription(p), r.fileListing(in.WorkDir)),
		Constraints: in.Constraints,
		Stage:       string(r.Stage()),
	})
	if err != nil {
		if errors.Is(err, crucerrors.ErrEmptyGeneration) {
			return newVerdict(r.Stage(), constants.VerdictFail, []string{err.Error()}, startedAt), nil
		}
		return nil, err
	}

	path := filepath.Join(in.WorkDir, ReadmeFileName)
	if err := os.WriteFile(path, []byte(resp.Text), 0o600); err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", p.ID).
		Str("model", resp.Model).
		Int("bytes", len(resp.Text)).
		Msg("readme written")

	return newVerdict(r.Stage(), constants.VerdictPass, nil, startedAt), nil
}

// fileListing summarizes the working tree so the README reflects what was
// actually built.
func (r *DocumentationRunner) fileListing(workDir string) string {
	var listing string
	_ = filepath.WalkDir(workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == ".crucible" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(workDir, path)
		if relErr != nil {
			return relErr
		}
		listing += filepath.ToSlash(rel) + "\n"
		return nil
	})
	if listing == "" {
		return ""
	}
	return "Project files:\n" + listing
}
