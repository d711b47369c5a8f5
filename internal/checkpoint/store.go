// Package checkpoint provides pipeline run persistence for Crucible.
// This package implements the storage layer for run state files,
// with atomic writes and file locking for data integrity.
//
// Every phase transition and verdict is checkpointed, so a run killed
// mid-flight resumes from the last completed step rather than the start.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
	"github.com/crucidev/crucible/internal/flock"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// validRunIDRegex matches valid run IDs (run-{uuid8}).
var validRunIDRegex = regexp.MustCompile(`^run-[0-9a-f]{8}$`)

// Store defines the interface for pipeline run persistence operations.
type Store interface {
	// Create creates a new run record.
	// Returns ErrRunExists if a run with the same ID already exists.
	Create(ctx context.Context, p *domain.Pipeline) error

	// Get retrieves a run by ID.
	// Returns ErrRunNotFound if the run doesn't exist.
	Get(ctx context.Context, runID string) (*domain.Pipeline, error)

	// Update saves the current run state (atomic write).
	// Returns ErrRunNotFound if the run doesn't exist.
	Update(ctx context.Context, p *domain.Pipeline) error

	// List returns all runs, sorted by creation time (newest first).
	List(ctx context.Context) ([]*domain.Pipeline, error)

	// Delete removes a run and all its artifacts.
	Delete(ctx context.Context, runID string) error

	// AppendEvent appends an event entry to the run's event log (JSON-lines format).
	AppendEvent(ctx context.Context, runID string, entry []byte) error

	// SaveArtifact saves an artifact file for the run (prompts, raw
	// generation output, stage reports).
	SaveArtifact(ctx context.Context, runID, filename string, data []byte) error

	// GetArtifact retrieves an artifact file.
	GetArtifact(ctx context.Context, runID, filename string) ([]byte, error)

	// RunDir returns the on-disk directory for a run. Collaborators that
	// keep their own state under the run directory (snapshots, deliveries)
	// anchor themselves here.
	RunDir(runID string) string
}

// FileStore implements Store using the local filesystem.
type FileStore struct {
	crucibleHome string // Usually ~/.crucible
}

// NewFileStore creates a new FileStore with the given crucible home directory.
// If crucibleHome is empty, uses the default ~/.crucible directory.
func NewFileStore(crucibleHome string) (*FileStore, error) {
	if crucibleHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		crucibleHome = filepath.Join(home, constants.CrucibleHome)
	}
	return &FileStore{crucibleHome: crucibleHome}, nil
}

// Create creates a new run record.
func (s *FileStore) Create(ctx context.Context, p *domain.Pipeline) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if p == nil {
		return fmt.Errorf("failed to create run: pipeline %w", crucerrors.ErrEmptyValue)
	}
	if p.ID == "" {
		return fmt.Errorf("failed to create run: run ID %w", crucerrors.ErrEmptyValue)
	}

	runDir := s.RunDir(p.ID)

	if _, err := os.Stat(runDir); err == nil {
		return fmt.Errorf("failed to create run '%s': %w", p.ID, crucerrors.ErrRunExists)
	}

	if err := os.MkdirAll(runDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	// Set schema version before saving
	p.SchemaVersion = constants.PipelineSchemaVersion

	lockFile, err := s.acquireLock(ctx, p.ID)
	if err != nil {
		_ = os.RemoveAll(runDir)
		return fmt.Errorf("failed to create run '%s': %w", p.ID, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		_ = os.RemoveAll(runDir)
		return fmt.Errorf("failed to create run '%s': %w", p.ID, err)
	}

	if err := atomicWrite(s.pipelineFilePath(p.ID), data); err != nil {
		_ = os.RemoveAll(runDir)
		return fmt.Errorf("failed to create run '%s': %w", p.ID, err)
	}

	return nil
}

// Get retrieves a run by ID.
func (s *FileStore) Get(ctx context.Context, runID string) (*domain.Pipeline, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if runID == "" {
		return nil, fmt.Errorf("failed to get run: run ID %w", crucerrors.ErrEmptyValue)
	}

	runDir := s.RunDir(runID)

	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to get run '%s': %w", runID, crucerrors.ErrRunNotFound)
	}

	lockFile, err := s.acquireLock(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run '%s': %w", runID, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	data, err := os.ReadFile(s.pipelineFilePath(runID)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to get run '%s': %w", runID, crucerrors.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to read run '%s': %w", runID, err)
	}

	var p domain.Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse run '%s': %w: %s", runID, crucerrors.ErrRunCorrupted, err)
	}

	return &p, nil
}

// Update saves the current run state (atomic write).
func (s *FileStore) Update(ctx context.Context, p *domain.Pipeline) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if p == nil {
		return fmt.Errorf("failed to update run: pipeline %w", crucerrors.ErrEmptyValue)
	}
	if p.ID == "" {
		return fmt.Errorf("failed to update run: run ID %w", crucerrors.ErrEmptyValue)
	}

	runDir := s.RunDir(p.ID)

	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return fmt.Errorf("failed to update run '%s': %w", p.ID, crucerrors.ErrRunNotFound)
	}

	lockFile, err := s.acquireLock(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update run '%s': %w", p.ID, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	p.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to update run '%s': %w", p.ID, err)
	}

	if err := atomicWrite(s.pipelineFilePath(p.ID), data); err != nil {
		return fmt.Errorf("failed to update run '%s': %w", p.ID, err)
	}

	return nil
}

// List returns all runs, sorted by creation time (newest first).
func (s *FileStore) List(ctx context.Context) ([]*domain.Pipeline, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	runsDir := s.runsDir()

	if _, err := os.Stat(runsDir); os.IsNotExist(err) {
		return []*domain.Pipeline{}, nil
	}

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*domain.Pipeline, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if !validRunIDRegex.MatchString(entry.Name()) {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		p, err := s.Get(ctx, entry.Name())
		if err != nil {
			// Skip directories without a readable pipeline file
			continue
		}

		runs = append(runs, p)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}

// Delete removes a run and all its artifacts.
func (s *FileStore) Delete(ctx context.Context, runID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if runID == "" {
		return fmt.Errorf("failed to delete run: run ID %w", crucerrors.ErrEmptyValue)
	}

	runDir := s.RunDir(runID)

	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run '%s': %w", runID, crucerrors.ErrRunNotFound)
	}

	// Acquire then release before removal since the lock file lives inside
	// the run directory.
	lockFile, err := s.acquireLock(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run '%s': %w", runID, err)
	}
	_ = s.releaseLock(lockFile)

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to delete run '%s': %w", runID, err)
	}

	return nil
}

// AppendEvent appends an event entry to the run's event log (JSON-lines format).
func (s *FileStore) AppendEvent(ctx context.Context, runID string, entry []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if runID == "" {
		return fmt.Errorf("failed to append event: run ID %w", crucerrors.ErrEmptyValue)
	}

	runDir := s.RunDir(runID)

	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return fmt.Errorf("failed to append event: run '%s' %w", runID, crucerrors.ErrRunNotFound)
	}

	lockFile, err := s.acquireLock(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	eventPath := filepath.Join(runDir, constants.EventLogFileName)

	f, err := os.OpenFile(eventPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	defer func() { _ = f.Close() }()

	if len(entry) > 0 && entry[len(entry)-1] != '\n' {
		entry = append(entry, '\n')
	}

	if _, err := f.Write(entry); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync event log: %w", err)
	}

	return nil
}

// SaveArtifact saves an artifact file for the run.
func (s *FileStore) SaveArtifact(ctx context.Context, runID, filename string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if runID == "" {
		return fmt.Errorf("failed to save artifact: run ID %w", crucerrors.ErrEmptyValue)
	}
	if filename == "" {
		return fmt.Errorf("failed to save artifact: filename %w", crucerrors.ErrEmptyValue)
	}
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return fmt.Errorf("failed to save artifact: %w", crucerrors.ErrPathTraversal)
	}

	runDir := s.RunDir(runID)

	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return fmt.Errorf("failed to save artifact: run '%s' %w", runID, crucerrors.ErrRunNotFound)
	}

	artifactDir := s.artifactsDir(runID)
	if err := os.MkdirAll(artifactDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	if err := atomicWrite(filepath.Join(artifactDir, filename), data); err != nil {
		return fmt.Errorf("failed to save artifact '%s': %w", filename, err)
	}

	return nil
}

// GetArtifact retrieves an artifact file.
func (s *FileStore) GetArtifact(ctx context.Context, runID, filename string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if runID == "" {
		return nil, fmt.Errorf("failed to get artifact: run ID %w", crucerrors.ErrEmptyValue)
	}
	if filename == "" {
		return nil, fmt.Errorf("failed to get artifact: filename %w", crucerrors.ErrEmptyValue)
	}
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return nil, fmt.Errorf("failed to get artifact: %w", crucerrors.ErrPathTraversal)
	}

	data, err := os.ReadFile(filepath.Join(s.artifactsDir(runID), filename)) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact '%s': %w", filename, crucerrors.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to read artifact '%s': %w", filename, err)
	}

	return data, nil
}

// Helper methods for path construction

// runsDir returns the path to the runs directory.
func (s *FileStore) runsDir() string {
	return filepath.Join(s.crucibleHome, constants.RunsDir)
}

// RunDir returns the path to a specific run's directory.
func (s *FileStore) RunDir(runID string) string {
	return filepath.Join(s.runsDir(), runID)
}

// pipelineFilePath returns the path to a run's pipeline state file.
func (s *FileStore) pipelineFilePath(runID string) string {
	return filepath.Join(s.RunDir(runID), constants.PipelineFileName)
}

// artifactsDir returns the path to a run's artifacts directory.
func (s *FileStore) artifactsDir(runID string) string {
	return filepath.Join(s.RunDir(runID), "artifacts")
}

// lockFilePath returns the path to a run's lock file.
func (s *FileStore) lockFilePath(runID string) string {
	return filepath.Join(s.RunDir(runID), constants.PipelineFileName+".lock")
}

// acquireLock acquires an exclusive file lock for the run.
// It respects context cancellation during the lock acquisition retry loop.
func (s *FileStore) acquireLock(ctx context.Context, runID string) (*os.File, error) {
	lockPath := s.lockFilePath(runID)

	if err := os.MkdirAll(s.RunDir(runID), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G302,G304 -- lock file needs write access, path is constructed from validated name
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(constants.LockTimeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		err := flock.Exclusive(f.Fd())
		if err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", crucerrors.ErrLockTimeout)
		}

		time.Sleep(constants.LockRetryInterval)
	}
}

// releaseLock releases a file lock.
func (s *FileStore) releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}

	if err := flock.Unlock(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return f.Close()
}

// GenerateRunID creates a unique run ID.
// Format: run-{uuid8} (e.g., run-9f3a1c2b). Uniqueness is ultimately
// guaranteed by Create's filesystem check, not by this function.
func GenerateRunID() string {
	return "run-" + uuid.New().String()[:8]
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
