package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucidev/crucible/internal/constants"
)

func TestPipelineVerdictTracking(t *testing.T) {
	p := &Pipeline{ID: "run-test"}

	_, ok := p.LastVerdict(constants.StageArchitecture)
	assert.False(t, ok, "no verdict recorded yet")

	p.RecordVerdict(constants.StageArchitecture, constants.VerdictPass)
	p.RecordVerdict(constants.StageImplementation, constants.VerdictNeedsRevision)

	v, ok := p.LastVerdict(constants.StageArchitecture)
	require.True(t, ok)
	assert.Equal(t, constants.VerdictPass, v)

	// Re-recording replaces the previous status.
	p.RecordVerdict(constants.StageImplementation, constants.VerdictPass)
	v, ok = p.LastVerdict(constants.StageImplementation)
	require.True(t, ok)
	assert.Equal(t, constants.VerdictPass, v)
}

func TestPipelineJSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	p := &Pipeline{
		ID:        "run-9f3a1c2b",
		Phase:     constants.PhaseImplementing,
		Iteration: 2,
		LastVerdicts: map[constants.Stage]constants.VerdictStatus{
			constants.StageArchitecture: constants.VerdictPass,
		},
		RetryCount:         1,
		LastGoodSnapshotID: "snap-c41d9e02",
		Intent: &Intent{
			Description:    "a CSV report generator",
			StartConfirmed: true,
			CapturedAt:     now,
		},
		Constraints: []string{"missing docstring"},
		Transitions: []Transition{
			{FromPhase: constants.PhaseInit, ToPhase: constants.PhaseEnvReady, Timestamp: now},
		},
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: constants.PipelineSchemaVersion,
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"last_good_snapshot_id"`)
	assert.Contains(t, string(data), `"retry_count"`)

	var decoded Pipeline
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p.Phase, decoded.Phase)
	assert.Equal(t, p.LastVerdicts, decoded.LastVerdicts)
	require.NotNil(t, decoded.Intent)
	assert.True(t, decoded.Intent.StartConfirmed)
	assert.Equal(t, p.Constraints, decoded.Constraints)
}

func TestVerdictJSONFieldNames(t *testing.T) {
	v := Verdict{
		Stage:       constants.StageTesting,
		Status:      constants.VerdictFail,
		Diagnostics: []string{"tool crash: exit 137"},
	}
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage":"testing"`)
	assert.Contains(t, string(data), `"status":"fail"`)
}
