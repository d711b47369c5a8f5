package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  constants.Phase
		to    constants.Phase
		valid bool
	}{
		{"init to env_ready", constants.PhaseInit, constants.PhaseEnvReady, true},
		{"init to failed", constants.PhaseInit, constants.PhaseFailed, true},
		{"init skips to defined", constants.PhaseInit, constants.PhaseDefined, false},
		{"env_ready to defined", constants.PhaseEnvReady, constants.PhaseDefined, true},
		{"defined to architecting", constants.PhaseDefined, constants.PhaseArchitecting, true},
		{"architecting to implementing", constants.PhaseArchitecting, constants.PhaseImplementing, true},
		{"implementing to standards", constants.PhaseImplementing, constants.PhaseStandardsCheck, true},
		{"standards back to implementing", constants.PhaseStandardsCheck, constants.PhaseImplementing, true},
		{"testing back to implementing", constants.PhaseTesting, constants.PhaseImplementing, true},
		{"security back to implementing", constants.PhaseSecurityReview, constants.PhaseImplementing, true},
		{"validating to approved", constants.PhaseValidating, constants.PhaseApproved, true},
		{"validating rejected to architecting", constants.PhaseValidating, constants.PhaseArchitecting, true},
		{"validating rejected to implementing", constants.PhaseValidating, constants.PhaseImplementing, true},
		{"revision never past implementing", constants.PhaseStandardsCheck, constants.PhaseArchitecting, false},
		{"validation never skipped", constants.PhaseSecurityReview, constants.PhaseApproved, false},
		{"approved to delivering", constants.PhaseApproved, constants.PhaseDelivering, true},
		{"delivering to delivered", constants.PhaseDelivering, constants.PhaseDelivered, true},
		{"delivered is terminal", constants.PhaseDelivered, constants.PhaseInit, false},
		{"failed is terminal", constants.PhaseFailed, constants.PhaseInit, false},
		{"same phase", constants.PhaseImplementing, constants.PhaseImplementing, false},
		{"backward to init", constants.PhaseEnvReady, constants.PhaseInit, false},
		{"any phase to failed", constants.PhaseDelivering, constants.PhaseFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminalPhase(t *testing.T) {
	assert.True(t, IsTerminalPhase(constants.PhaseDelivered))
	assert.True(t, IsTerminalPhase(constants.PhaseFailed))
	assert.False(t, IsTerminalPhase(constants.PhaseApproved))
	assert.False(t, IsTerminalPhase(constants.PhaseInit))
}

func TestStagePhaseMapping(t *testing.T) {
	t.Run("every development stage has a phase and back", func(t *testing.T) {
		for _, s := range constants.DevelopmentStages() {
			phase, ok := PhaseForStage(s)
			require.True(t, ok, "stage %s has no phase", s)

			back, ok := StageForPhase(phase)
			require.True(t, ok)
			assert.Equal(t, s, back)
		}
	})

	t.Run("non development phases have no stage", func(t *testing.T) {
		for _, phase := range []constants.Phase{
			constants.PhaseInit, constants.PhaseEnvReady, constants.PhaseDefined,
			constants.PhaseApproved, constants.PhaseDelivering, constants.PhaseDelivered, constants.PhaseFailed,
		} {
			_, ok := StageForPhase(phase)
			assert.False(t, ok, "phase %s should have no stage", phase)
		}
	})

	t.Run("pass successors chain to approved", func(t *testing.T) {
		phase := constants.PhaseArchitecting
		for range constants.DevelopmentStages() {
			next, ok := NextPhase(phase)
			require.True(t, ok)
			require.True(t, IsValidTransition(phase, next))
			phase = next
		}
		assert.Equal(t, constants.PhaseApproved, phase)
	})

	t.Run("mutating phases snapshot before running", func(t *testing.T) {
		assert.True(t, IsMutatingPhase(constants.PhaseArchitecting))
		assert.True(t, IsMutatingPhase(constants.PhaseImplementing))
		assert.True(t, IsMutatingPhase(constants.PhaseDocumenting))
		assert.False(t, IsMutatingPhase(constants.PhaseStandardsCheck))
		assert.False(t, IsMutatingPhase(constants.PhaseTesting))
		assert.False(t, IsMutatingPhase(constants.PhaseValidating))
	})
}

func TestTransition(t *testing.T) {
	t.Run("applies and records", func(t *testing.T) {
		p := &domain.Pipeline{ID: "run-0a1b2c3d", Phase: constants.PhaseInit}

		require.NoError(t, Transition(context.Background(), p, constants.PhaseEnvReady, "environment prepared"))

		assert.Equal(t, constants.PhaseEnvReady, p.Phase)
		require.Len(t, p.Transitions, 1)
		assert.Equal(t, constants.PhaseInit, p.Transitions[0].FromPhase)
		assert.Equal(t, constants.PhaseEnvReady, p.Transitions[0].ToPhase)
		assert.Equal(t, "environment prepared", p.Transitions[0].Reason)
		assert.Nil(t, p.CompletedAt)
	})

	t.Run("terminal transition stamps completion", func(t *testing.T) {
		p := &domain.Pipeline{ID: "run-0a1b2c3d", Phase: constants.PhaseInit}

		require.NoError(t, Transition(context.Background(), p, constants.PhaseFailed, "environment unavailable"))
		require.NotNil(t, p.CompletedAt)
	})

	t.Run("invalid transition rejected without mutation", func(t *testing.T) {
		p := &domain.Pipeline{ID: "run-0a1b2c3d", Phase: constants.PhaseInit}

		err := Transition(context.Background(), p, constants.PhaseApproved, "")
		require.ErrorIs(t, err, crucerrors.ErrInvalidTransition)
		assert.Equal(t, constants.PhaseInit, p.Phase)
		assert.Empty(t, p.Transitions)
	})

	t.Run("nil pipeline", func(t *testing.T) {
		err := Transition(context.Background(), nil, constants.PhaseEnvReady, "")
		require.ErrorIs(t, err, crucerrors.ErrInvalidTransition)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := &domain.Pipeline{ID: "run-0a1b2c3d", Phase: constants.PhaseInit}
		require.ErrorIs(t, Transition(ctx, p, constants.PhaseEnvReady, ""), context.Canceled)
	})
}

func TestGetValidTargetPhases(t *testing.T) {
	targets := GetValidTargetPhases(constants.PhaseValidating)
	assert.ElementsMatch(t, []constants.Phase{
		constants.PhaseApproved,
		constants.PhaseArchitecting,
		constants.PhaseImplementing,
		constants.PhaseFailed,
	}, targets)

	assert.Nil(t, GetValidTargetPhases(constants.PhaseDelivered))

	// Mutating the copy must not affect the table.
	targets[0] = constants.PhaseInit
	assert.NotEqual(t, constants.PhaseInit, ValidTransitions[constants.PhaseValidating][0])
}
