// Package pipeline provides run lifecycle management for Crucible.
//
// This file implements the phase state machine, which enforces valid phase
// transitions and maintains an audit trail of all phase changes.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/cli
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// ValidTransitions defines all allowed phase transitions in the run lifecycle.
// Format: from_phase -> []to_phases
//
// The state machine follows this flow:
//
//	Init → EnvReady, Failed
//	EnvReady → Defined, Failed
//	Defined → Architecting, Failed
//	Architecting → Implementing, Failed
//	Implementing → StandardsCheck, Failed
//	StandardsCheck → Testing, Implementing, Failed
//	Testing → Documenting, Implementing, Failed
//	Documenting → SecurityReview, Implementing, Failed
//	SecurityReview → Validating, Implementing, Failed
//	Validating → Approved, Architecting, Implementing, Failed
//	Approved → Delivering, Failed
//	Delivering → Delivered, Failed (dispatch retries stay in place)
//
// Revision loops re-enter Implementing; a validator rejection may restart
// from Architecting. Fail verdicts also re-enter Implementing (after a
// snapshot restore), so the revision edges double as rollback edges. The
// stage that found the problem re-runs because the cycle always moves
// forward from Implementing again.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.Phase][]constants.Phase{
	constants.PhaseInit:     {constants.PhaseEnvReady, constants.PhaseFailed},
	constants.PhaseEnvReady: {constants.PhaseDefined, constants.PhaseFailed},
	constants.PhaseDefined:  {constants.PhaseArchitecting, constants.PhaseFailed},
	constants.PhaseArchitecting: {
		constants.PhaseImplementing,
		constants.PhaseFailed,
	},
	constants.PhaseImplementing: {
		constants.PhaseStandardsCheck,
		constants.PhaseFailed,
	},
	constants.PhaseStandardsCheck: {
		constants.PhaseTesting,
		constants.PhaseImplementing,
		constants.PhaseFailed,
	},
	constants.PhaseTesting: {
		constants.PhaseDocumenting,
		constants.PhaseImplementing,
		constants.PhaseFailed,
	},
	constants.PhaseDocumenting: {
		constants.PhaseSecurityReview,
		constants.PhaseImplementing,
		constants.PhaseFailed,
	},
	constants.PhaseSecurityReview: {
		constants.PhaseValidating,
		constants.PhaseImplementing,
		constants.PhaseFailed,
	},
	constants.PhaseValidating: {
		constants.PhaseApproved,
		constants.PhaseArchitecting,
		constants.PhaseImplementing,
		constants.PhaseFailed,
	},
	constants.PhaseApproved: {
		constants.PhaseDelivering,
		constants.PhaseFailed,
	},
	constants.PhaseDelivering: {
		constants.PhaseDelivered,
		constants.PhaseFailed,
	},
}

// terminalPhases defines phases where no further transitions are allowed.
// These are intentionally duplicated from ValidTransitions for O(1) lookup.
// Terminal phases are those NOT present as keys in ValidTransitions.
// MAINTENANCE: When adding new phases, update both ValidTransitions and this map.
//
//nolint:gochecknoglobals // Read-only lookup table for terminal phase checks
var terminalPhases = map[constants.Phase]bool{
	constants.PhaseDelivered: true,
	constants.PhaseFailed:    true,
}

// developmentPhases maps each development-cycle phase to the stage that runs
// in it. Phases outside the development cycle have no stage.
//
//nolint:gochecknoglobals // Read-only lookup table
var developmentPhases = map[constants.Phase]constants.Stage{
	constants.PhaseArchitecting:   constants.StageArchitecture,
	constants.PhaseImplementing:   constants.StageImplementation,
	constants.PhaseStandardsCheck: constants.StageStandards,
	constants.PhaseTesting:        constants.StageTesting,
	constants.PhaseDocumenting:    constants.StageDocumentation,
	constants.PhaseSecurityReview: constants.StageSecurity,
	constants.PhaseValidating:     constants.StageValidation,
}

// nextDevelopmentPhase maps each development phase to its pass successor.
//
//nolint:gochecknoglobals // Read-only lookup table
var nextDevelopmentPhase = map[constants.Phase]constants.Phase{
	constants.PhaseArchitecting:   constants.PhaseImplementing,
	constants.PhaseImplementing:   constants.PhaseStandardsCheck,
	constants.PhaseStandardsCheck: constants.PhaseTesting,
	constants.PhaseTesting:        constants.PhaseDocumenting,
	constants.PhaseDocumenting:    constants.PhaseSecurityReview,
	constants.PhaseSecurityReview: constants.PhaseValidating,
	constants.PhaseValidating:     constants.PhaseApproved,
}

// mutatingPhases are the development phases whose stage writes into the
// working tree. The engine snapshots before each of them.
//
//nolint:gochecknoglobals // Read-only lookup table
var mutatingPhases = map[constants.Phase]bool{
	constants.PhaseArchitecting:   true,
	constants.PhaseImplementing:   true,
	constants.PhaseStandardsCheck: true,
	constants.PhaseDocumenting:    true,
}

// IsValidTransition checks if a transition from one phase to another is allowed.
// Returns false for transitions from terminal phases or to the same phase.
func IsValidTransition(from, to constants.Phase) bool {
	// Same phase is not a valid transition
	if from == to {
		return false
	}

	validTargets, exists := ValidTransitions[from]
	if !exists {
		return false // Terminal phase or unknown phase
	}
	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminalPhase returns true for phases where no further transitions are allowed.
// Terminal phases: Delivered, Failed
func IsTerminalPhase(phase constants.Phase) bool {
	return terminalPhases[phase]
}

// IsDevelopmentPhase returns true for phases inside the development cycle.
func IsDevelopmentPhase(phase constants.Phase) bool {
	_, ok := developmentPhases[phase]
	return ok
}

// StageForPhase returns the stage that runs in a development phase.
// Returns false for phases outside the development cycle.
func StageForPhase(phase constants.Phase) (constants.Stage, bool) {
	s, ok := developmentPhases[phase]
	return s, ok
}

// PhaseForStage returns the development phase a stage runs in.
// Returns false for unknown stages.
func PhaseForStage(s constants.Stage) (constants.Phase, bool) {
	for phase, stage := range developmentPhases {
		if stage == s {
			return phase, true
		}
	}
	return "", false
}

// NextPhase returns the pass successor of a development phase.
// Returns false for phases outside the development cycle.
func NextPhase(phase constants.Phase) (constants.Phase, bool) {
	next, ok := nextDevelopmentPhase[phase]
	return next, ok
}

// IsMutatingPhase returns true for development phases whose stage writes
// files into the working tree.
func IsMutatingPhase(phase constants.Phase) bool {
	return mutatingPhases[phase]
}

// GetValidTargetPhases returns all valid target phases for a given phase.
// Returns nil for terminal phases or unknown phases.
func GetValidTargetPhases(from constants.Phase) []constants.Phase {
	targets, exists := ValidTransitions[from]
	if !exists {
		return nil
	}
	// Return a copy to prevent modification of the original slice
	result := make([]constants.Phase, len(targets))
	copy(result, targets)
	return result
}

// Transition validates and applies a phase transition to the pipeline.
// It records the transition in the audit trail and updates timestamps.
// The caller is responsible for persisting the updated pipeline.
//
// Returns an error if:
//   - ctx is canceled
//   - p is nil
//   - The transition is invalid (returns wrapped ErrInvalidTransition)
func Transition(ctx context.Context, p *domain.Pipeline, to constants.Phase, reason string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if p == nil {
		return fmt.Errorf("%w: pipeline is nil", crucerrors.ErrInvalidTransition)
	}

	from := p.Phase

	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			crucerrors.ErrInvalidTransition, from, to)
	}

	now := time.Now().UTC()

	p.Transitions = append(p.Transitions, domain.Transition{
		FromPhase: from,
		ToPhase:   to,
		Timestamp: now,
		Reason:    reason,
	})

	p.Phase = to
	p.UpdatedAt = now

	if IsTerminalPhase(to) {
		p.CompletedAt = &now
	}

	return nil
}
