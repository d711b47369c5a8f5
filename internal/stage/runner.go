// Package stage provides the development stage runners for Crucible.
//
// Each runner owns one stage of the iterate-until-approved loop and reports
// its outcome as a verdict. Runners never decide what happens next; the
// pipeline engine interprets verdicts and drives phase transitions.
package stage

import (
	"context"
	"fmt"
	"sync"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// Instructions carries the per-invocation inputs a runner needs.
type Instructions struct {
	// WorkDir is the working tree the runner reads and writes.
	WorkDir string

	// Constraints are refinement notes carried from prior review rounds,
	// folded into generation prompts.
	Constraints []string
}

// Runner executes a single development stage against the working tree.
type Runner interface {
	// Stage identifies which stage this runner owns.
	Stage() constants.Stage

	// Run executes the stage and returns its verdict. A non-nil error means
	// the stage could not produce a verdict at all (pause, cancellation);
	// quality findings are expressed through the verdict instead.
	Run(ctx context.Context, p *domain.Pipeline, in *Instructions) (*domain.Verdict, error)
}

// Registry maps stages to their runners.
// It provides thread-safe registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	runners map[constants.Stage]Runner
}

// NewRegistry creates a new empty stage registry.
func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[constants.Stage]Runner),
	}
}

// Register adds a runner for a stage.
// If a runner already exists for the stage, it is replaced.
func (r *Registry) Register(runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[runner.Stage()] = runner
}

// Get retrieves the runner for a stage.
// Returns ErrRunnerNotFound if no runner is registered for the stage.
func (r *Registry) Get(s constants.Stage) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runner, ok := r.runners[s]
	if !ok {
		return nil, fmt.Errorf("%w: %s", crucerrors.ErrRunnerNotFound, s)
	}
	return runner, nil
}

// Has checks if a runner is registered for the stage.
func (r *Registry) Has(s constants.Stage) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.runners[s]
	return ok
}

// Stages returns all registered stages.
func (r *Registry) Stages() []constants.Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stages := make([]constants.Stage, 0, len(r.runners))
	for s := range r.runners {
		stages = append(stages, s)
	}
	return stages
}
