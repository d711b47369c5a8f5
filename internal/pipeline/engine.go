// Package pipeline provides run lifecycle management for Crucible.
//
// This file implements the Engine, which drives a run through the phase
// machine: environment preparation, intent capture, the bounded
// iterate-until-approved development cycle, pause/resume, and delivery.
// The engine checkpoints the pipeline after every transition.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crucidev/crucible/internal/checkpoint"
	"github.com/crucidev/crucible/internal/config"
	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/gen"
	"github.com/crucidev/crucible/internal/stage"
)

// Snapshotter is the slice of the snapshot manager the engine needs.
type Snapshotter interface {
	Create(ctx context.Context) (*domain.SnapshotInfo, error)
	Restore(ctx context.Context, id string) error
}

// Deliverer packages and ships the approved working tree.
type Deliverer interface {
	Deliver(ctx context.Context, method constants.DeliveryMethod, workDir string) (location string, err error)
}

// EngineConfig holds the engine's policy knobs.
type EngineConfig struct {
	// WorkDir is the working tree the stages build into.
	WorkDir string

	// RetryBound is the maximum number of retry units (fail rollbacks plus
	// validator rejections) before the run is declared failed.
	RetryBound int

	// RejectionPolicy selects where a validator rejection restarts the cycle:
	// config.RejectionPolicyArchitecture or config.RejectionPolicyImplementation.
	RejectionPolicy string
}

// EngineConfigFromConfig derives engine policy from loaded configuration.
func EngineConfigFromConfig(cfg *config.Config) EngineConfig {
	return EngineConfig{
		WorkDir:         cfg.Pipeline.WorkDir,
		RetryBound:      cfg.Pipeline.RetryBound,
		RejectionPolicy: cfg.Pipeline.RejectionPolicy,
	}
}

// Engine orchestrates a run through the workflow phase machine.
// It is strictly sequential: one stage at a time, one transition at a time,
// a checkpoint after each.
type Engine struct {
	store     checkpoint.Store
	registry  *stage.Registry
	snapshots Snapshotter
	env       EnvironmentPreparer
	intents   IntentCollector
	deliverer Deliverer
	config    EngineConfig
	logger    zerolog.Logger
}

// NewEngine creates an engine with the given collaborators.
func NewEngine(
	store checkpoint.Store,
	registry *stage.Registry,
	snapshots Snapshotter,
	env EnvironmentPreparer,
	intents IntentCollector,
	deliverer Deliverer,
	cfg EngineConfig,
	logger zerolog.Logger,
) *Engine {
	if cfg.RetryBound <= 0 {
		cfg.RetryBound = constants.DefaultRetryBound
	}
	if cfg.RejectionPolicy == "" {
		cfg.RejectionPolicy = config.RejectionPolicyArchitecture
	}
	return &Engine{
		store:     store,
		registry:  registry,
		snapshots: snapshots,
		env:       env,
		intents:   intents,
		deliverer: deliverer,
		config:    cfg,
		logger:    logger,
	}
}

// Start creates a new run and drives it as far as it can go: to approved,
// to a pause, to a terminal phase, or to an unconfirmed intent.
// The created pipeline is returned even when driving it returned an error,
// so the caller can inspect its state.
func (e *Engine) Start(ctx context.Context) (*domain.Pipeline, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := time.Now().UTC()
	p := &domain.Pipeline{
		ID:            checkpoint.GenerateRunID(),
		Phase:         constants.PhaseInit,
		Transitions:   make([]domain.Transition, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: constants.PipelineSchemaVersion,
	}

	e.logger.Info().
		Str("run_id", p.ID).
		Msg("creating new run")

	if err := e.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	return p, e.Run(ctx, p)
}

// Run drives the pipeline from its current phase until it reaches approved,
// a terminal phase, a pause, or an error that needs the operator.
func (e *Engine) Run(ctx context.Context, p *domain.Pipeline) error {
	ctx = e.logger.With().Str("run_id", p.ID).Logger().WithContext(ctx)

	for !IsTerminalPhase(p.Phase) && p.Phase != constants.PhaseApproved {
		// External abort is honored here, at the stage boundary only.
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.Paused {
			return fmt.Errorf("run '%s' is paused (%s): %w", p.ID, p.PauseReason, crucerrors.ErrPipelinePaused)
		}

		if err := e.advance(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Resume lifts a pause and continues the run at the suspended stage.
// Resume happens only on this explicit signal, never on a timer.
func (e *Engine) Resume(ctx context.Context, p *domain.Pipeline) error {
	if !p.Paused {
		return fmt.Errorf("run '%s': %w", p.ID, crucerrors.ErrPipelineNotPaused)
	}

	e.logger.Info().
		Str("run_id", p.ID).
		Str("phase", string(p.Phase)).
		Str("paused_stage", string(p.PausedStage)).
		Msg("resuming run")

	p.Paused = false
	p.PauseReason = ""
	p.PausedStage = ""

	if err := e.store.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to save resumed state: %w", err)
	}
	e.appendEvent(ctx, p, "resume", nil)

	return e.Run(ctx, p)
}

// Abort moves a non-terminal run to failed. The last-good snapshot is left
// in place; no restore is forced on the way out.
func (e *Engine) Abort(ctx context.Context, p *domain.Pipeline, reason string) error {
	if IsTerminalPhase(p.Phase) {
		return fmt.Errorf("%w: run '%s' already %s", crucerrors.ErrInvalidTransition, p.ID, p.Phase)
	}
	if reason == "" {
		reason = "aborted by operator"
	}

	if err := Transition(ctx, p, constants.PhaseFailed, reason); err != nil {
		return err
	}
	if err := e.store.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to save aborted state: %w", err)
	}
	e.appendEvent(ctx, p, "abort", nil)
	return nil
}

// Deliver packages the approved working tree with the explicitly selected
// method. Dispatch failures retry in place up to the retry bound, then the
// run fails.
func (e *Engine) Deliver(ctx context.Context, p *domain.Pipeline, method constants.DeliveryMethod) (string, error) {
	ctx = e.logger.With().Str("run_id", p.ID).Logger().WithContext(ctx)

	if p.Phase != constants.PhaseApproved {
		return "", fmt.Errorf("run '%s' is %s: %w", p.ID, p.Phase, crucerrors.ErrNotApproved)
	}
	if !constants.IsValidDeliveryMethod(method) {
		return "", fmt.Errorf("%q: %w", method, crucerrors.ErrInvalidDeliveryMethod)
	}

	p.DeliveryMethod = method
	if err := Transition(ctx, p, constants.PhaseDelivering, "delivery method "+string(method)); err != nil {
		return "", err
	}
	if err := e.store.Update(ctx, p); err != nil {
		return "", fmt.Errorf("failed to save delivering state: %w", err)
	}

	var (
		location string
		err      error
	)
	for {
		location, err = e.deliverer.Deliver(ctx, method, e.config.WorkDir)
		if err == nil {
			break
		}

		p.RetryCount++
		e.appendEvent(ctx, p, "delivery_failed", []string{err.Error()})
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Int("retry_count", p.RetryCount).
			Msg("delivery attempt failed")

		if p.RetryCount > e.config.RetryBound {
			reason := fmt.Sprintf("delivery failed after %d attempts", p.RetryCount)
			if terr := Transition(ctx, p, constants.PhaseFailed, reason); terr != nil {
				return "", terr
			}
			if serr := e.store.Update(ctx, p); serr != nil {
				return "", serr
			}
			return "", fmt.Errorf("%s: %w: %w", reason, crucerrors.ErrRetryBoundExceeded, err)
		}
		if serr := e.store.Update(ctx, p); serr != nil {
			return "", serr
		}
		if cerr := ctx.Err(); cerr != nil {
			return "", cerr
		}
	}

	if err := Transition(ctx, p, constants.PhaseDelivered, "delivered to "+location); err != nil {
		return "", err
	}
	if err := e.store.Update(ctx, p); err != nil {
		return "", fmt.Errorf("failed to save delivered state: %w", err)
	}
	e.appendEvent(ctx, p, "delivered", []string{location})

	zerolog.Ctx(ctx).Info().
		Str("method", string(method)).
		Str("location", location).
		Msg("run delivered")

	return location, nil
}

// advance executes one step of the phase machine.
func (e *Engine) advance(ctx context.Context, p *domain.Pipeline) error {
	switch p.Phase {
	case constants.PhaseInit:
		return e.prepareEnvironment(ctx, p)
	case constants.PhaseEnvReady:
		return e.captureIntent(ctx, p)
	case constants.PhaseDefined:
		p.Iteration = 1
		if err := Transition(ctx, p, constants.PhaseArchitecting, "development started"); err != nil {
			return err
		}
		return e.checkpointTransition(ctx, p)
	default:
		if IsDevelopmentPhase(p.Phase) {
			return e.runStage(ctx, p)
		}
		return fmt.Errorf("%w: no step to run from phase %s", crucerrors.ErrInvalidTransition, p.Phase)
	}
}

// prepareEnvironment runs the environment collaborator. Failure is fatal.
func (e *Engine) prepareEnvironment(ctx context.Context, p *domain.Pipeline) error {
	if err := e.env.Prepare(ctx); err != nil {
		if terr := Transition(ctx, p, constants.PhaseFailed, "environment unavailable"); terr != nil {
			return terr
		}
		if serr := e.store.Update(ctx, p); serr != nil {
			return serr
		}
		e.appendEvent(ctx, p, "environment_failed", []string{err.Error()})
		return fmt.Errorf("environment preparation: %w", err)
	}

	if err := Transition(ctx, p, constants.PhaseEnvReady, "environment prepared"); err != nil {
		return err
	}
	return e.checkpointTransition(ctx, p)
}

// captureIntent collects the project intent. The development cycle starts
// only on a literal confirmation; anything else leaves the run at env_ready.
func (e *Engine) captureIntent(ctx context.Context, p *domain.Pipeline) error {
	intent, err := e.intents.Collect(ctx, p.Intent, p.Constraints)
	if err != nil {
		return fmt.Errorf("intent capture: %w", err)
	}

	p.Intent = intent
	if err := e.store.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to save intent: %w", err)
	}

	if !intent.StartConfirmed {
		e.appendEvent(ctx, p, "start_not_confirmed", nil)
		return fmt.Errorf("run '%s': %w", p.ID, crucerrors.ErrStartNotConfirmed)
	}

	if err := Transition(ctx, p, constants.PhaseDefined, "intent confirmed"); err != nil {
		return err
	}
	return e.checkpointTransition(ctx, p)
}

// runStage executes the current phase's stage and applies its verdict.
func (e *Engine) runStage(ctx context.Context, p *domain.Pipeline) error {
	log := zerolog.Ctx(ctx)

	s, ok := StageForPhase(p.Phase)
	if !ok {
		return fmt.Errorf("%w: phase %s has no stage", crucerrors.ErrInvalidTransition, p.Phase)
	}

	runner, err := e.registry.Get(s)
	if err != nil {
		return err
	}

	// Snapshot before any stage that writes into the tree. The snapshot is
	// the last state every completed check agreed on.
	if IsMutatingPhase(p.Phase) {
		info, snapErr := e.snapshots.Create(ctx)
		if snapErr != nil {
			return fmt.Errorf("failed to snapshot before %s: %w", s, snapErr)
		}
		p.LastGoodSnapshotID = info.ID
		if serr := e.store.Update(ctx, p); serr != nil {
			return serr
		}
		e.appendEvent(ctx, p, "snapshot", []string{info.ID})
	}

	log.Info().
		Str("stage", string(s)).
		Int("iteration", p.Iteration).
		Int("retry_count", p.RetryCount).
		Msg("running stage")

	startTime := time.Now()
	verdict, err := runner.Run(ctx, p, &stage.Instructions{
		WorkDir:     e.config.WorkDir,
		Constraints: p.Constraints,
	})
	duration := time.Since(startTime)

	if err != nil {
		if gen.IsPause(err) {
			return e.pause(ctx, p, s, err)
		}
		log.Error().
			Str("stage", string(s)).
			Dur("duration_ms", duration).
			Err(err).
			Msg("stage execution failed")
		return err
	}

	log.Info().
		Str("stage", string(s)).
		Str("status", string(verdict.Status)).
		Dur("duration_ms", duration).
		Msg("stage completed")

	return e.applyVerdict(ctx, p, verdict)
}

// pause suspends the run on a generation pause condition. The phase is left
// untouched so resume re-enters the same stage.
func (e *Engine) pause(ctx context.Context, p *domain.Pipeline, s constants.Stage, cause error) error {
	p.Paused = true
	p.PauseReason = cause.Error()
	p.PausedStage = s

	if err := e.store.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to save paused state: %w", err)
	}
	e.appendEvent(ctx, p, "pause", []string{p.PauseReason})

	zerolog.Ctx(ctx).Warn().
		Str("stage", string(s)).
		Str("reason", p.PauseReason).
		Msg("run paused, waiting for resume")

	return fmt.Errorf("run '%s' paused at %s: %w", p.ID, s, crucerrors.ErrPipelinePaused)
}

// applyVerdict records a stage verdict and drives the matching transition.
func (e *Engine) applyVerdict(ctx context.Context, p *domain.Pipeline, v *domain.Verdict) error {
	p.RecordVerdict(v.Stage, v.Status)
	e.appendEvent(ctx, p, "verdict:"+string(v.Status), v.Diagnostics)

	switch v.Status {
	case constants.VerdictPass:
		return e.advancePass(ctx, p, v)
	case constants.VerdictNeedsRevision:
		return e.reviseCycle(ctx, p, v)
	case constants.VerdictFail:
		return e.rollback(ctx, p, v)
	default:
		return fmt.Errorf("%w: verdict status %q", crucerrors.ErrEmptyValue, v.Status)
	}
}

// advancePass moves to the next phase of the development cycle.
func (e *Engine) advancePass(ctx context.Context, p *domain.Pipeline, v *domain.Verdict) error {
	next, ok := NextPhase(p.Phase)
	if !ok {
		return fmt.Errorf("%w: no successor for phase %s", crucerrors.ErrInvalidTransition, p.Phase)
	}

	if next == constants.PhaseApproved {
		// Approval invariant: every development stage's last verdict passes.
		for _, s := range constants.DevelopmentStages() {
			if status, ok := p.LastVerdict(s); !ok || status != constants.VerdictPass {
				return fmt.Errorf("stage %s not passing: %w", s, crucerrors.ErrStaleVerdicts)
			}
		}
	}

	if err := Transition(ctx, p, next, string(v.Stage)+" passed"); err != nil {
		return err
	}
	return e.checkpointTransition(ctx, p)
}

// reviseCycle handles a needs_revision verdict: diagnostics become added
// constraints, the iteration counter moves, and the cycle re-enters
// implementing. A validator rejection restarts per the rejection policy and
// consumes a retry unit.
func (e *Engine) reviseCycle(ctx context.Context, p *domain.Pipeline, v *domain.Verdict) error {
	p.Constraints = append(p.Constraints, v.Diagnostics...)
	p.Iteration++

	target := constants.PhaseImplementing
	reason := string(v.Stage) + " needs revision"

	if v.Stage == constants.StageValidation {
		p.RetryCount++
		reason = "validator rejected candidate"
		if e.config.RejectionPolicy == config.RejectionPolicyArchitecture {
			target = constants.PhaseArchitecting
		}
		if p.RetryCount > e.config.RetryBound {
			return e.failRun(ctx, p, reason)
		}
	}

	// The implementing stage revising itself stays in place.
	if p.Phase != target {
		if err := Transition(ctx, p, target, reason); err != nil {
			return err
		}
	}
	return e.checkpointTransition(ctx, p)
}

// rollback handles a fail verdict: restore the last-good snapshot, consume a
// retry unit, and re-enter implementing (or fail the run at the bound).
func (e *Engine) rollback(ctx context.Context, p *domain.Pipeline, v *domain.Verdict) error {
	log := zerolog.Ctx(ctx)

	if p.LastGoodSnapshotID != "" {
		if err := e.snapshots.Restore(ctx, p.LastGoodSnapshotID); err != nil {
			return fmt.Errorf("failed to restore snapshot %s: %w", p.LastGoodSnapshotID, err)
		}
		e.appendEvent(ctx, p, "restore", []string{p.LastGoodSnapshotID})
		log.Info().
			Str("snapshot_id", p.LastGoodSnapshotID).
			Str("stage", string(v.Stage)).
			Msg("working tree restored after fail verdict")
	}

	p.RetryCount++
	if p.RetryCount > e.config.RetryBound {
		return e.failRun(ctx, p, string(v.Stage)+" failed past retry bound")
	}

	if p.Phase != constants.PhaseImplementing {
		if err := Transition(ctx, p, constants.PhaseImplementing, string(v.Stage)+" failed, retrying"); err != nil {
			return err
		}
	}
	return e.checkpointTransition(ctx, p)
}

// failRun moves the run to terminal failed with a bound-exceeded error.
func (e *Engine) failRun(ctx context.Context, p *domain.Pipeline, reason string) error {
	if err := Transition(ctx, p, constants.PhaseFailed, reason); err != nil {
		return err
	}
	if err := e.store.Update(ctx, p); err != nil {
		return err
	}
	e.appendEvent(ctx, p, "failed", []string{reason})
	return fmt.Errorf("%s: %w", reason, crucerrors.ErrRetryBoundExceeded)
}

// checkpointTransition persists the pipeline after a transition.
func (e *Engine) checkpointTransition(ctx context.Context, p *domain.Pipeline) error {
	if err := e.store.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to checkpoint run '%s': %w", p.ID, err)
	}
	return nil
}

// appendEvent writes one entry to the run's diagnostic event log.
// Event logging is best-effort; a failed append never fails the run.
func (e *Engine) appendEvent(ctx context.Context, p *domain.Pipeline, event string, details []string) {
	entry, err := json.Marshal(map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"event":   event,
		"phase":   p.Phase,
		"details": details,
	})
	if err != nil {
		return
	}
	if err := e.store.AppendEvent(ctx, p.ID, entry); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("event", event).Msg("event log append failed")
	}
}
