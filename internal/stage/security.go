package stage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/gen"
)

const securityPreamble = `You are a security reviewer. Review the source files
below for unsafe handling of secrets, injection risks, unvalidated input, and
harmful behavior. Reply with a line "VERDICT: PASS" if the code is acceptable
or "VERDICT: NEEDS_REVISION" if not, followed by one finding per line prefixed
with "- ".`

// maxReviewBytes caps the source text folded into a review prompt.
const maxReviewBytes = 256 * 1024

// SecurityRunner reviews the generated source for unsafe patterns.
type SecurityRunner struct {
	gw Generator
}

// NewSecurityRunner creates the security review stage runner.
func NewSecurityRunner(gw Generator) *SecurityRunner {
	return &SecurityRunner{gw: gw}
}

// Stage identifies this runner.
func (r *SecurityRunner) Stage() constants.Stage { return constants.StageSecurity }

// Run submits the working tree for review and parses the verdict reply.
// A reply without a verdict line is treated as a fail verdict.
func (r *SecurityRunner) Run(ctx context.Context, p *domain.Pipeline, in *Instructions) (*domain.Verdict, error) {
	startedAt := time.Now().UTC()
	log := zerolog.Ctx(ctx)

	source, err := r.collectSource(in.WorkDir)
	if err != nil {
		return nil, err
	}

	resp, err := r.gw.Generate(ctx, &gen.Request{
		Prompt:      buildPrompt(securityPreamble, intentDescription(p), source),
		Constraints: in.Constraints,
		Stage:       string(r.Stage()),
	})
	if err != nil {
		if errors.Is(err, crucerrors.ErrEmptyGeneration) {
			return newVerdict(r.Stage(), constants.VerdictFail, []string{err.Error()}, startedAt), nil
		}
		return nil, err
	}

	status, findings, ok := parseReviewReply(resp.Text)
	if !ok {
		log.Warn().
			Str("run_id", p.ID).
			Msg("review reply missing verdict line")
		return newVerdict(r.Stage(), constants.VerdictFail,
			[]string{"review reply missing verdict line"}, startedAt), nil
	}

	log.Info().
		Str("run_id", p.ID).
		Str("status", string(status)).
		Int("findings", len(findings)).
		Msg("security review completed")

	return newVerdict(r.Stage(), status, findings, startedAt), nil
}

// collectSource concatenates the working tree's source files, bounded.
func (r *SecurityRunner) collectSource(workDir string) (string, error) {
	var b strings.Builder
	err := filepath.WalkDir(workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == ".crucible" {
				return filepath.SkipDir
			}
			return nil
		}
		if b.Len() >= maxReviewBytes {
			return filepath.SkipAll
		}
		rel, relErr := filepath.Rel(workDir, path)
		if relErr != nil {
			return relErr
		}
		data, readErr := os.ReadFile(path) //#nosec G304 -- path comes from the managed tree walk
		if readErr != nil {
			return readErr
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n", filepath.ToSlash(rel), data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// parseReviewReply extracts the verdict line and findings from a review reply.
func parseReviewReply(text string) (constants.VerdictStatus, []string, bool) {
	var (
		status   constants.VerdictStatus
		found    bool
		findings []string
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "VERDICT:"):
			switch strings.TrimSpace(strings.TrimPrefix(line, "VERDICT:")) {
			case "PASS":
				status, found = constants.VerdictPass, true
			case "NEEDS_REVISION":
				status, found = constants.VerdictNeedsRevision, true
			case "FAIL":
				status, found = constants.VerdictFail, true
			}
		case strings.HasPrefix(line, "- "):
			findings = append(findings, strings.TrimPrefix(line, "- "))
		}
	}

	return status, findings, found
}
