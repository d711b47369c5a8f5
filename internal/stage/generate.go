package stage

import (
	"context"
	"strings"
	"time"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	"github.com/crucidev/crucible/internal/gen"
)

// Generator is the slice of the generation gateway the runners need.
type Generator interface {
	Generate(ctx context.Context, req *gen.Request) (*gen.Response, error)
}

// newVerdict builds a verdict for a stage, stamping completion time.
func newVerdict(s constants.Stage, status constants.VerdictStatus, diags []string, startedAt time.Time) *domain.Verdict {
	return &domain.Verdict{
		Stage:       s,
		Status:      status,
		Diagnostics: diags,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	}
}

// intentDescription returns the captured project description, or empty.
func intentDescription(p *domain.Pipeline) string {
	if p.Intent == nil {
		return ""
	}
	return p.Intent.Description
}

// buildPrompt assembles a stage prompt: role preamble, project description,
// then any carried constraints. Revision diagnostics travel separately via
// gen.Request.Constraints so the gateway can label them.
func buildPrompt(preamble, description string, sections ...string) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\nProject description:\n")
	b.WriteString(description)
	for _, s := range sections {
		if s == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(s)
	}
	return b.String()
}
