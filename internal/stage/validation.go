package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
)

// ValidationRunner is the final gate before approval. It makes no generation
// call; it checks that every prior stage's most recent verdict is a pass.
type ValidationRunner struct{}

// NewValidationRunner creates the validation stage runner.
func NewValidationRunner() *ValidationRunner {
	return &ValidationRunner{}
}

// Stage identifies this runner.
func (r *ValidationRunner) Stage() constants.Stage { return constants.StageValidation }

// Run checks the recorded verdicts of all prior stages. Any stage whose last
// verdict is not a pass makes the round needs_revision, naming the stale
// stages so the revision loop knows what to redo.
func (r *ValidationRunner) Run(ctx context.Context, p *domain.Pipeline, _ *Instructions) (*domain.Verdict, error) {
	startedAt := time.Now().UTC()
	log := zerolog.Ctx(ctx)

	var stale []string
	for _, s := range constants.DevelopmentStages() {
		if s == constants.StageValidation {
			continue
		}
		if v, ok := p.LastVerdict(s); !ok || v != constants.VerdictPass {
			stale = append(stale, string(s))
		}
	}

	if len(stale) > 0 {
		log.Warn().
			Str("run_id", p.ID).
			Strs("stale_stages", stale).
			Msg("validation found stages without a passing verdict")

		diags := make([]string, 0, len(stale))
		for _, s := range stale {
			diags = append(diags, fmt.Sprintf("stage %s has no passing verdict this round", s))
		}
		return newVerdict(r.Stage(), constants.VerdictNeedsRevision, diags, startedAt), nil
	}

	log.Info().
		Str("run_id", p.ID).
		Int("iteration", p.Iteration).
		Msg("validation passed, candidate approved for delivery")

	return newVerdict(r.Stage(), constants.VerdictPass, nil, startedAt), nil
}
