// Package domain provides shared domain types for the Crucible pipeline system.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"time"

	"github.com/crucidev/crucible/internal/constants"
)

// Pipeline is the persisted state of a single run through the workflow.
// It is owned exclusively by the orchestrator, mutated only at transition
// points, and written to the checkpoint store after every transition so a
// process restart resumes from the last completed stage.
//
// Example JSON representation:
//
//	{
//	    "id": "run-9f3a1c2b",
//	    "phase": "implementing",
//	    "iteration": 2,
//	    "last_verdicts": {"architecture": "pass"},
//	    "retry_count": 0,
//	    "last_good_snapshot_id": "snap-c41d9e02",
//	    "schema_version": 1
//	}
type Pipeline struct {
	// ID is the unique identifier for the run. Format: run-{uuid8}.
	ID string `json:"id"`

	// Phase is the current position in the workflow state machine.
	Phase constants.Phase `json:"phase"`

	// Iteration counts passes through the development cycle. It starts at 1
	// when development begins and increments on every revision loop.
	Iteration int `json:"iteration"`

	// LastVerdicts maps each stage to the status of its most recent verdict.
	// The validator refuses approval unless every development stage maps to pass.
	LastVerdicts map[constants.Stage]constants.VerdictStatus `json:"last_verdicts"`

	// RetryCount counts fail and rejected transitions. It never decreases;
	// exceeding the configured bound makes Failed the only reachable phase.
	RetryCount int `json:"retry_count"`

	// LastGoodSnapshotID references the snapshot the working tree is known to
	// match. The snapshot itself is immutable and owned by the snapshot store.
	LastGoodSnapshotID string `json:"last_good_snapshot_id,omitempty"`

	// Paused is set while the pipeline is suspended on a generation-service
	// pause condition. Resume clears it without touching any other field.
	Paused bool `json:"paused"`

	// PauseReason describes why the pipeline is paused (empty when not paused).
	PauseReason string `json:"pause_reason,omitempty"`

	// PausedStage is the stage to re-enter on resume.
	PausedStage constants.Stage `json:"paused_stage,omitempty"`

	// Intent is the immutable project intent captured during definition.
	Intent *Intent `json:"intent,omitempty"`

	// Constraints are diagnostics carried forward from revision verdicts as
	// additional constraints for subsequent generation requests.
	Constraints []string `json:"constraints,omitempty"`

	// DeliveryMethod is the explicitly selected packaging method, set only
	// after approval.
	DeliveryMethod constants.DeliveryMethod `json:"delivery_method,omitempty"`

	// Transitions is the audit trail of all phase changes.
	Transitions []Transition `json:"transitions"`

	// CreatedAt is when the run was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the run was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt is when the run reached a terminal phase (nil if not yet).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// SchemaVersion enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`
}

// Transition records a single phase change for auditing.
type Transition struct {
	// FromPhase is the phase before the transition.
	FromPhase constants.Phase `json:"from_phase"`

	// ToPhase is the phase after the transition.
	ToPhase constants.Phase `json:"to_phase"`

	// Timestamp is when the transition occurred.
	Timestamp time.Time `json:"timestamp"`

	// Reason is an optional explanation for the transition.
	Reason string `json:"reason,omitempty"`
}

// LastVerdict returns the recorded status for a stage and whether one exists.
func (p *Pipeline) LastVerdict(stage constants.Stage) (constants.VerdictStatus, bool) {
	if p.LastVerdicts == nil {
		return "", false
	}
	v, ok := p.LastVerdicts[stage]
	return v, ok
}

// RecordVerdict stores the status of a stage's most recent verdict.
func (p *Pipeline) RecordVerdict(stage constants.Stage, status constants.VerdictStatus) {
	if p.LastVerdicts == nil {
		p.LastVerdicts = make(map[constants.Stage]constants.VerdictStatus)
	}
	p.LastVerdicts[stage] = status
}
