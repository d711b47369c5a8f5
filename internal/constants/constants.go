// Package constants provides centralized constant values used throughout Crucible.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// File names used by Crucible for state persistence.
const (
	// PipelineFileName is the name of the JSON file that stores pipeline state within a run.
	PipelineFileName = "pipeline.json"

	// SnapshotManifestName is the name of the manifest file written inside each snapshot.
	SnapshotManifestName = "manifest.json"

	// EventLogFileName is the name of the JSON-lines diagnostic log for a run.
	EventLogFileName = "events.jsonl"
)

// Directory names and paths used by Crucible for organizing data.
const (
	// CrucibleHome is the hidden directory name where Crucible stores all its data.
	// This directory is created in the user's home directory.
	CrucibleHome = ".crucible"

	// RunsDir is the directory name where pipeline run data is stored.
	RunsDir = "runs"

	// SnapshotsDir is the directory name where working-tree snapshots are stored.
	SnapshotsDir = "snapshots"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// DeliveriesDir is the directory name where packaged deliveries are placed.
	DeliveriesDir = "deliveries"
)

// Timeout configurations for various operations.
const (
	// DefaultGenerationTimeout is the default maximum duration for a single
	// generation-service call. A timeout is treated as service unavailability,
	// not as a distinct error kind.
	DefaultGenerationTimeout = 10 * time.Minute

	// DefaultToolTimeout is the default maximum duration for a single
	// quality-tool invocation (formatter, linter, type-checker, test runner).
	DefaultToolTimeout = 5 * time.Minute

	// LockTimeout is the maximum duration to wait for acquiring a run lock.
	LockTimeout = 5 * time.Second

	// LockRetryInterval is the interval between lock acquisition attempts.
	LockRetryInterval = 50 * time.Millisecond
)

// Retry configuration defaults for the bounded development cycle.
const (
	// DefaultRetryBound is the maximum number of fail/rejected transitions
	// tolerated before the pipeline is declared fatally failed.
	DefaultRetryBound = 3

	// DefaultSnapshotKeep is the number of snapshots retained by an explicit
	// prune request. Retention is otherwise unbounded.
	DefaultSnapshotKeep = 5
)

// PipelineSchemaVersion is the current version of the persisted pipeline schema.
// Incremented when the Pipeline struct changes incompatibly.
const PipelineSchemaVersion = 1

// Environment variable prefix for configuration overrides.
const EnvPrefix = "CRUCIBLE"
