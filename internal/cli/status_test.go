package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
)

func samplePipeline() *domain.Pipeline {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return &domain.Pipeline{
		ID:         "run-0a1b2c3d",
		Phase:      constants.PhaseImplementing,
		Iteration:  2,
		RetryCount: 1,
		Intent: &domain.Intent{
			Description:    "a CSV to JSON converter\nwith streaming support",
			StartConfirmed: true,
			CapturedAt:     now,
		},
		Transitions: []domain.Transition{
			{FromPhase: constants.PhaseInit, ToPhase: constants.PhaseEnvReady, Timestamp: now, Reason: "environment prepared"},
			{FromPhase: constants.PhaseEnvReady, ToPhase: constants.PhaseDefined, Timestamp: now, Reason: "intent confirmed"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRenderRunTable(t *testing.T) {
	t.Run("text lists every run", func(t *testing.T) {
		var out bytes.Buffer
		runs := []*domain.Pipeline{samplePipeline()}

		require.NoError(t, renderRunTable(&out, runs, OutputText))
		assert.Contains(t, out.String(), "run-0a1b2c3d")
		assert.Contains(t, out.String(), "implementing")
		assert.Contains(t, out.String(), "active")
	})

	t.Run("empty store suggests start", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, renderRunTable(&out, nil, OutputText))
		assert.Contains(t, out.String(), "crucible start")
	})

	t.Run("json round trips", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, renderRunTable(&out, []*domain.Pipeline{samplePipeline()}, OutputJSON))

		var decoded []*domain.Pipeline
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, "run-0a1b2c3d", decoded[0].ID)
	})
}

func TestRenderRunDetail(t *testing.T) {
	t.Run("shows intent first line and history", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, renderRunDetail(&out, samplePipeline(), OutputText))

		s := out.String()
		assert.Contains(t, s, "a CSV to JSON converter")
		assert.NotContains(t, s, "streaming support", "only the first intent line is shown")
		assert.Contains(t, s, "environment prepared")
		assert.Contains(t, s, "intent confirmed")
	})

	t.Run("paused run shows resume hint", func(t *testing.T) {
		p := samplePipeline()
		p.Paused = true
		p.PauseReason = "generation quota exceeded"
		p.PausedStage = constants.StageImplementation

		var out bytes.Buffer
		require.NoError(t, renderRunDetail(&out, p, OutputText))
		assert.Contains(t, out.String(), "crucible resume run-0a1b2c3d")
	})

	t.Run("approved run shows deliver hint", func(t *testing.T) {
		p := samplePipeline()
		p.Phase = constants.PhaseApproved

		var out bytes.Buffer
		require.NoError(t, renderRunDetail(&out, p, OutputText))
		assert.Contains(t, out.String(), "crucible deliver run-0a1b2c3d")
	})
}

func TestRunState(t *testing.T) {
	p := samplePipeline()
	assert.Equal(t, "active", runState(p))

	p.Paused = true
	assert.Equal(t, "paused", runState(p))

	p.Paused = false
	p.Phase = constants.PhaseDelivered
	assert.Equal(t, "done", runState(p))
}
