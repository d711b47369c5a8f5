package domain

import (
	"time"

	"github.com/crucidev/crucible/internal/constants"
)

// Intent is the immutable record of what the human asked for. It is created
// once during the definition phase and consumed read-only by every later
// stage. Refined constraints gathered after revision loops produce a new
// Intent value; the record itself is never mutated.
type Intent struct {
	// Description is the free-text project description.
	Description string `json:"description"`

	// StartConfirmed is the literal affirmative start signal. The orchestrator
	// must not proceed past definition on an implicit or inferred confirmation.
	StartConfirmed bool `json:"start_confirmed"`

	// CapturedAt is when the intent was collected.
	CapturedAt time.Time `json:"captured_at"`
}

// Verdict is the outcome of a single stage run. It is produced by a stage
// runner, consumed by the orchestrator to decide the next transition, and
// never mutated after creation.
type Verdict struct {
	// Stage identifies which stage produced this verdict.
	Stage constants.Stage `json:"stage"`

	// Status is one of pass, fail, or needs_revision.
	Status constants.VerdictStatus `json:"status"`

	// Diagnostics is the ordered diagnostic text from the stage and its tools.
	Diagnostics []string `json:"diagnostics,omitempty"`

	// StartedAt is when the stage began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the stage finished.
	CompletedAt time.Time `json:"completed_at"`
}
