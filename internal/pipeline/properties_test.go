package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	gopterGen "github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"github.com/crucidev/crucible/internal/config"
	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/stage"
)

// verdictScript hands out a shared sequence of verdict statuses to every
// stage runner, in the order stages happen to execute. Once the script is
// exhausted every stage passes, so each generated run terminates.
type verdictScript struct {
	mu       sync.Mutex
	outcomes []constants.VerdictStatus
	consumed []constants.VerdictStatus
}

func (s *verdictScript) next() constants.VerdictStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := constants.VerdictPass
	if len(s.outcomes) > 0 {
		out = s.outcomes[0]
		s.outcomes = s.outcomes[1:]
	}
	s.consumed = append(s.consumed, out)
	return out
}

func (s *verdictScript) count(status constants.VerdictStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, out := range s.consumed {
		if out == status {
			n++
		}
	}
	return n
}

// scriptRunner is a stage runner fed by a shared verdictScript.
type scriptRunner struct {
	s      constants.Stage
	script *verdictScript
}

func (r *scriptRunner) Stage() constants.Stage { return r.s }

func (r *scriptRunner) Run(_ context.Context, _ *domain.Pipeline, _ *stage.Instructions) (*domain.Verdict, error) {
	status := r.script.next()
	var diags []string
	if status != constants.VerdictPass {
		diags = []string{"scripted " + string(status)}
	}
	return &domain.Verdict{
		Stage:       r.s,
		Status:      status,
		Diagnostics: diags,
		StartedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	}, nil
}

// driveRun executes one engine run against a scripted verdict sequence and
// returns the final pipeline plus the run error.
func driveRun(workDir string, script *verdictScript, policy string) (*domain.Pipeline, error) {
	registry := stage.NewRegistry()
	for _, s := range constants.DevelopmentStages() {
		registry.Register(&scriptRunner{s: s, script: script})
	}

	engine := NewEngine(
		newMemStore(),
		registry,
		&fakeSnapshots{},
		&fakeEnv{},
		&fakeIntents{intent: &domain.Intent{
			Description:    "scripted run",
			StartConfirmed: true,
			CapturedAt:     time.Now().UTC(),
		}},
		&fakeDeliverer{},
		EngineConfig{WorkDir: workDir, RetryBound: 2, RejectionPolicy: policy},
		zerolog.Nop(),
	)

	return engine.Start(context.Background())
}

func genVerdictSequence() gopter.Gen {
	return gopterGen.SliceOf(gopterGen.OneConstOf(
		constants.VerdictPass,
		constants.VerdictNeedsRevision,
		constants.VerdictFail,
	))
}

func genRejectionPolicy() gopter.Gen {
	return gopterGen.OneConstOf(
		config.RejectionPolicyArchitecture,
		config.RejectionPolicyImplementation,
	)
}

func TestRunOutcomeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	workDir := t.TempDir()

	properties.Property("every run stops at approved, failed, or a refused approval", prop.ForAll(
		func(outcomes []constants.VerdictStatus, policy string) bool {
			script := &verdictScript{outcomes: outcomes}
			p, err := driveRun(workDir, script, policy)

			switch p.Phase {
			case constants.PhaseApproved:
				if err != nil {
					t.Logf("approved run returned error: %v", err)
					return false
				}
			case constants.PhaseFailed:
				if !errors.Is(err, crucerrors.ErrRetryBoundExceeded) {
					t.Logf("failed run with unexpected error: %v", err)
					return false
				}
			case constants.PhaseValidating:
				// A scripted validator can approve a round where an earlier
				// stage last failed; the engine refuses to enter approved.
				if !errors.Is(err, crucerrors.ErrStaleVerdicts) {
					t.Logf("run stuck at validating with unexpected error: %v", err)
					return false
				}
			default:
				t.Logf("run stopped in non-final phase %s (err=%v)", p.Phase, err)
				return false
			}
			return true
		},
		genVerdictSequence(),
		genRejectionPolicy(),
	))

	properties.Property("retry count is bounded and exact at failure", prop.ForAll(
		func(outcomes []constants.VerdictStatus, policy string) bool {
			script := &verdictScript{outcomes: outcomes}
			p, _ := driveRun(workDir, script, policy)

			bound := 2
			if p.Phase == constants.PhaseFailed {
				// The run fails on the transition that first exceeds the bound.
				if p.RetryCount != bound+1 {
					t.Logf("failed run with retry count %d, want %d", p.RetryCount, bound+1)
					return false
				}
				return true
			}
			if p.RetryCount > bound {
				t.Logf("non-failed run exceeded retry bound: %d", p.RetryCount)
				return false
			}
			return true
		},
		genVerdictSequence(),
		genRejectionPolicy(),
	))

	properties.Property("approval implies a passing last verdict for every stage", prop.ForAll(
		func(outcomes []constants.VerdictStatus) bool {
			script := &verdictScript{outcomes: outcomes}
			p, _ := driveRun(workDir, script, config.RejectionPolicyArchitecture)

			if p.Phase != constants.PhaseApproved {
				return true
			}
			for _, s := range constants.DevelopmentStages() {
				status, ok := p.LastVerdict(s)
				if !ok || status != constants.VerdictPass {
					t.Logf("approved run with stage %s verdict %q (recorded=%v)", s, status, ok)
					return false
				}
			}
			return true
		},
		genVerdictSequence(),
	))

	properties.Property("iteration counts one more than consumed revisions", prop.ForAll(
		func(outcomes []constants.VerdictStatus, policy string) bool {
			script := &verdictScript{outcomes: outcomes}
			p, _ := driveRun(workDir, script, policy)

			want := 1 + script.count(constants.VerdictNeedsRevision)
			if p.Iteration != want {
				t.Logf("iteration %d, want %d (phase %s)", p.Iteration, want, p.Phase)
				return false
			}
			return true
		},
		genVerdictSequence(),
		genRejectionPolicy(),
	))

	properties.TestingRun(t)
}

func TestTransitionHistoryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	workDir := t.TempDir()

	properties.Property("history only contains legal transitions", prop.ForAll(
		func(outcomes []constants.VerdictStatus, policy string) bool {
			script := &verdictScript{outcomes: outcomes}
			p, _ := driveRun(workDir, script, policy)

			for _, tr := range p.Transitions {
				if !IsValidTransition(tr.FromPhase, tr.ToPhase) {
					t.Logf("illegal transition recorded: %s -> %s", tr.FromPhase, tr.ToPhase)
					return false
				}
			}
			return true
		},
		genVerdictSequence(),
		genRejectionPolicy(),
	))

	properties.Property("approved is only ever entered from validating", prop.ForAll(
		func(outcomes []constants.VerdictStatus, policy string) bool {
			script := &verdictScript{outcomes: outcomes}
			p, _ := driveRun(workDir, script, policy)

			for _, tr := range p.Transitions {
				if tr.ToPhase == constants.PhaseApproved && tr.FromPhase != constants.PhaseValidating {
					t.Logf("approved entered from %s", tr.FromPhase)
					return false
				}
			}
			return true
		},
		genVerdictSequence(),
		genRejectionPolicy(),
	))

	properties.Property("revision re-entry honors the rejection policy", prop.ForAll(
		func(outcomes []constants.VerdictStatus) bool {
			script := &verdictScript{outcomes: outcomes}
			p, _ := driveRun(workDir, script, config.RejectionPolicyImplementation)

			// Under the implementation policy the cycle never restarts from
			// architecting; it is entered exactly once, from defined.
			entries := 0
			for _, tr := range p.Transitions {
				if tr.ToPhase == constants.PhaseArchitecting {
					entries++
					if tr.FromPhase != constants.PhaseDefined {
						t.Logf("architecting re-entered from %s", tr.FromPhase)
						return false
					}
				}
			}
			return entries <= 1
		},
		genVerdictSequence(),
	))

	properties.TestingRun(t)
}
