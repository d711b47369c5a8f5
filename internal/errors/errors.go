// Package errors provides centralized error handling for Crucible.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrEnvironmentUnavailable indicates the environment-setup collaborator
	// reported a fatal precondition failure. This is never retried.
	ErrEnvironmentUnavailable = errors.New("environment unavailable")

	// ErrStartNotConfirmed indicates the project intent lacked a literal
	// affirmative start confirmation.
	ErrStartNotConfirmed = errors.New("explicit start confirmation required")

	// ErrQuotaExceeded indicates the generation service rejected a request
	// for quota or billing reasons. Pausable, not fatal.
	ErrQuotaExceeded = errors.New("generation quota exceeded")

	// ErrServiceUnavailable indicates the generation service is unreachable
	// or timed out. Pausable, not fatal.
	ErrServiceUnavailable = errors.New("generation service unavailable")

	// ErrEmptyGeneration indicates the generation service returned empty text.
	ErrEmptyGeneration = errors.New("generation returned empty text")

	// ErrMalformedGeneration indicates the generation response could not be
	// interpreted by the calling stage.
	ErrMalformedGeneration = errors.New("generation response malformed")

	// ErrPipelinePaused indicates the pipeline is waiting for an explicit
	// external resume signal.
	ErrPipelinePaused = errors.New("pipeline paused, waiting for resume")

	// ErrPipelineNotPaused indicates a resume signal arrived while the
	// pipeline was not paused.
	ErrPipelineNotPaused = errors.New("pipeline is not paused")

	// ErrRetryBoundExceeded indicates the configured retry bound was
	// exhausted by fail/rejected transitions.
	ErrRetryBoundExceeded = errors.New("retry bound exceeded")

	// ErrInvalidTransition indicates an attempt to make an invalid phase transition.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrRunNotFound indicates the requested pipeline run does not exist.
	ErrRunNotFound = errors.New("pipeline run not found")

	// ErrRunExists indicates an attempt to create a run that already exists.
	ErrRunExists = errors.New("pipeline run already exists")

	// ErrRunCorrupted indicates the persisted pipeline state is unreadable.
	ErrRunCorrupted = errors.New("pipeline state corrupted")

	// ErrLockTimeout indicates a run lock could not be acquired within the
	// timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrSnapshotNotFound indicates the requested snapshot does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists indicates an attempt to overwrite an existing snapshot.
	// Snapshots are immutable once created.
	ErrSnapshotExists = errors.New("snapshot already exists")

	// ErrSnapshotCorrupted indicates a snapshot manifest does not match the
	// snapshot contents.
	ErrSnapshotCorrupted = errors.New("snapshot does not match manifest")

	// ErrNoSnapshot indicates a rollback was requested with no last-good
	// snapshot recorded.
	ErrNoSnapshot = errors.New("no snapshot available for rollback")

	// ErrRunnerNotFound indicates no runner is registered for the given stage.
	ErrRunnerNotFound = errors.New("runner not found for stage")

	// ErrStaleVerdicts indicates validation was attempted while a prior
	// stage's last verdict was not pass.
	ErrStaleVerdicts = errors.New("prior stage verdicts are stale or missing")

	// ErrNotApproved indicates delivery was requested before the validator
	// approved the artifact.
	ErrNotApproved = errors.New("pipeline is not approved for delivery")

	// ErrInvalidDeliveryMethod indicates an unknown delivery method was selected.
	ErrInvalidDeliveryMethod = errors.New("invalid delivery method")

	// ErrDeliveryFailed indicates a packaging collaborator failed.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrGitOperation indicates a git command failed during GitHub delivery.
	ErrGitOperation = errors.New("git operation failed")

	// ErrToolCrashed indicates a quality tool terminated abnormally rather
	// than reporting a verdict.
	ErrToolCrashed = errors.New("quality tool crashed")

	// ErrToolTimeout indicates a quality tool exceeded its timeout.
	ErrToolTimeout = errors.New("quality tool timeout exceeded")

	// ErrAborted indicates an external abort signal was honored at a stage
	// boundary.
	ErrAborted = errors.New("pipeline aborted")

	// ErrConfigNil indicates a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidGeneration indicates an invalid generation configuration value.
	ErrConfigInvalidGeneration = errors.New("invalid generation configuration")

	// ErrConfigInvalidPipeline indicates an invalid pipeline configuration value.
	ErrConfigInvalidPipeline = errors.New("invalid pipeline configuration")

	// ErrConfigInvalidTools indicates an invalid tools configuration value.
	ErrConfigInvalidTools = errors.New("invalid tools configuration")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrNonInteractiveMode indicates an operation requiring a human reply
	// was attempted without an interactive terminal.
	ErrNonInteractiveMode = errors.New("interactive prompt required")

	// ErrInvalidOutputFormat indicates an unsupported --output value.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrPathTraversal indicates an attempt to use path traversal in a filename.
	ErrPathTraversal = errors.New("path traversal detected")
)
