package stage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/crucidev/crucible/internal/config"
	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/tool"
)

// ToolExecutor is the slice of the quality-command executor the runners need.
type ToolExecutor interface {
	Run(ctx context.Context, commands []string, workDir string) ([]tool.Result, error)
}

// StandardsRunner enforces coding standards with the configured quality tools.
// The formatter runs first because it mutates files; the linter and
// type-checker are read-only and fan out in parallel.
type StandardsRunner struct {
	exec  ToolExecutor
	tools config.ToolsConfig
}

// NewStandardsRunner creates the standards stage runner.
func NewStandardsRunner(exec ToolExecutor, tools config.ToolsConfig) *StandardsRunner {
	return &StandardsRunner{exec: exec, tools: tools}
}

// Stage identifies this runner.
func (r *StandardsRunner) Stage() constants.Stage { return constants.StageStandards }

// Run executes the quality tools. Findings from every tool are aggregated
// into one verdict so a single revision pass can address them all.
func (r *StandardsRunner) Run(ctx context.Context, p *domain.Pipeline, in *Instructions) (*domain.Verdict, error) {
	startedAt := time.Now().UTC()
	log := zerolog.Ctx(ctx)

	formatResults, err := r.exec.Run(ctx, r.tools.Formatter, in.WorkDir)
	if verdict := crashVerdict(r.Stage(), err, startedAt); verdict != nil {
		return verdict, nil
	} else if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		combined = formatResults
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, commands := range [][]string{r.tools.Linter, r.tools.TypeChecker} {
		g.Go(func() error {
			results, runErr := r.exec.Run(gctx, commands, in.WorkDir)
			mu.Lock()
			combined = append(combined, results...)
			mu.Unlock()
			return runErr
		})
	}
	if err := g.Wait(); err != nil {
		if verdict := crashVerdict(r.Stage(), err, startedAt); verdict != nil {
			return verdict, nil
		}
		return nil, err
	}

	diags := collectDiagnostics(combined)

	log.Info().
		Str("run_id", p.ID).
		Int("commands", len(combined)).
		Int("findings", len(diags)).
		Msg("standards check completed")

	if len(diags) > 0 {
		return newVerdict(r.Stage(), constants.VerdictNeedsRevision, diags, startedAt), nil
	}
	return newVerdict(r.Stage(), constants.VerdictPass, nil, startedAt), nil
}

// TestingRunner runs the configured test runner against the working tree.
type TestingRunner struct {
	exec  ToolExecutor
	tools config.ToolsConfig
}

// NewTestingRunner creates the testing stage runner.
func NewTestingRunner(exec ToolExecutor, tools config.ToolsConfig) *TestingRunner {
	return &TestingRunner{exec: exec, tools: tools}
}

// Stage identifies this runner.
func (r *TestingRunner) Stage() constants.Stage { return constants.StageTesting }

// Run executes the test runner. Failing tests produce a needs_revision
// verdict; a crashed or timed-out runner produces a fail verdict.
func (r *TestingRunner) Run(ctx context.Context, p *domain.Pipeline, in *Instructions) (*domain.Verdict, error) {
	startedAt := time.Now().UTC()
	log := zerolog.Ctx(ctx)

	results, err := r.exec.Run(ctx, r.tools.TestRunner, in.WorkDir)
	if verdict := crashVerdict(r.Stage(), err, startedAt); verdict != nil {
		return verdict, nil
	} else if err != nil {
		return nil, err
	}

	diags := collectDiagnostics(results)

	log.Info().
		Str("run_id", p.ID).
		Int("commands", len(results)).
		Int("findings", len(diags)).
		Msg("test run completed")

	if len(diags) > 0 {
		return newVerdict(r.Stage(), constants.VerdictNeedsRevision, diags, startedAt), nil
	}
	return newVerdict(r.Stage(), constants.VerdictPass, nil, startedAt), nil
}

// crashVerdict converts a tool crash or timeout into a fail verdict.
// Returns nil for any other error, including nil.
func crashVerdict(s constants.Stage, err error, startedAt time.Time) *domain.Verdict {
	if errors.Is(err, crucerrors.ErrToolCrashed) || errors.Is(err, crucerrors.ErrToolTimeout) {
		return newVerdict(s, constants.VerdictFail, []string{err.Error()}, startedAt)
	}
	return nil
}

// collectDiagnostics gathers bounded diagnostics from failed results.
func collectDiagnostics(results []tool.Result) []string {
	var diags []string
	for i := range results {
		if !results[i].Success {
			diags = append(diags, results[i].Diagnostic())
		}
	}
	sort.Strings(diags)
	return diags
}
