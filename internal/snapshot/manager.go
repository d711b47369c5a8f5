// Package snapshot provides point-in-time copies of the working tree.
//
// Snapshots are the unit of rollback: the orchestrator takes one immediately
// before any stage that mutates files, and restores the last-good snapshot
// after a fail verdict. Snapshots are immutable once created; a later
// snapshot never overwrites an earlier one, so the full generation history
// remains auditable.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/pipeline, internal/stage, internal/cli
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crucidev/crucible/internal/constants"
	"github.com/crucidev/crucible/internal/domain"
	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// treeDirName is the subdirectory of a snapshot holding the copied tree.
const treeDirName = "tree"

// ignoredEntries are working-tree entries never captured or removed.
// The snapshot store itself must not be snapshotted recursively, and VCS
// metadata belongs to the version-control collaborator.
var ignoredEntries = map[string]bool{ //nolint:gochecknoglobals // Read-only lookup table
	".git":      true,
	".crucible": true,
}

// Manager creates and restores snapshots of a single working tree.
type Manager struct {
	workDir string
	root    string
	logger  zerolog.Logger
}

// NewManager creates a Manager for the given working tree. Snapshots are
// stored under root (typically <run-dir>/snapshots).
func NewManager(workDir, root string, logger zerolog.Logger) *Manager {
	return &Manager{
		workDir: workDir,
		root:    root,
		logger:  logger.With().Str("component", "snapshot").Logger(),
	}
}

// GenerateSnapshotID creates a unique snapshot ID.
// Format: snap-{uuid8} (e.g., snap-a1b2c3d4).
func GenerateSnapshotID() string {
	return "snap-" + uuid.New().String()[:8]
}

// Create copies the full working tree into a new immutable snapshot and
// returns its info. The working tree itself is only read.
func (m *Manager) Create(ctx context.Context) (*domain.SnapshotInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	id := GenerateSnapshotID()
	snapDir := filepath.Join(m.root, id)

	if _, err := os.Stat(snapDir); err == nil {
		return nil, fmt.Errorf("snapshot %q: %w", id, crucerrors.ErrSnapshotExists)
	}

	treeDir := filepath.Join(snapDir, treeDirName)
	if err := os.MkdirAll(treeDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	info := &domain.SnapshotInfo{
		ID:        id,
		CreatedAt: time.Now().UTC(),
	}

	err := filepath.WalkDir(m.workDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(m.workDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if ignoredEntries[d.Name()] {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(treeDir, rel), dirPerm)
		}
		if ignoredEntries[d.Name()] {
			return nil
		}

		digest, size, mode, err := copyFile(path, filepath.Join(treeDir, rel))
		if err != nil {
			return err
		}

		info.Files = append(info.Files, domain.FileDigest{
			Path:   filepath.ToSlash(rel),
			SHA256: digest,
			Size:   size,
			Mode:   uint32(mode),
		})
		info.FileCount++
		info.TotalBytes += size
		return nil
	})
	if err != nil {
		// Partial snapshots are never valid; remove the debris.
		_ = os.RemoveAll(snapDir)
		return nil, fmt.Errorf("failed to capture working tree: %w", err)
	}

	sort.Slice(info.Files, func(i, j int) bool { return info.Files[i].Path < info.Files[j].Path })

	if err := m.writeManifest(snapDir, info); err != nil {
		_ = os.RemoveAll(snapDir)
		return nil, err
	}

	m.logger.Info().
		Str("snapshot_id", id).
		Int("file_count", info.FileCount).
		Int64("total_bytes", info.TotalBytes).
		Msg("snapshot created")

	return info, nil
}

// Restore replaces the working tree contents with the snapshot's contents.
// After a successful restore the tree is bit-identical to the tree at
// snapshot time, including removal of files a failed stage partially wrote.
func (m *Manager) Restore(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	info, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	treeDir := filepath.Join(m.root, id, treeDirName)

	// Clear current contents first so leftover files vanish.
	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		return fmt.Errorf("failed to read working tree: %w", err)
	}
	for _, entry := range entries {
		if ignoredEntries[entry.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.workDir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clear working tree: %w", err)
		}
	}

	// Recreate the directory structure from the captured tree, not from the
	// file list, so directories that were empty at snapshot time come back.
	err = filepath.WalkDir(treeDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(treeDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return os.MkdirAll(filepath.Join(m.workDir, rel), dirPerm)
	})
	if err != nil {
		return fmt.Errorf("failed to recreate directories: %w", err)
	}

	for _, f := range info.Files {
		src := filepath.Join(treeDir, filepath.FromSlash(f.Path))
		dst := filepath.Join(m.workDir, filepath.FromSlash(f.Path))
		if _, _, _, err := copyFile(src, dst); err != nil {
			return fmt.Errorf("failed to restore %s: %w", f.Path, err)
		}
		if f.Mode != 0 {
			_ = os.Chmod(dst, os.FileMode(f.Mode))
		}
	}

	m.logger.Info().
		Str("snapshot_id", id).
		Int("file_count", info.FileCount).
		Msg("working tree restored from snapshot")

	return nil
}

// Get loads a snapshot's manifest.
// Returns ErrSnapshotNotFound if the snapshot does not exist.
func (m *Manager) Get(ctx context.Context, id string) (*domain.SnapshotInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(filepath.Join(m.root, id, constants.SnapshotManifestName)) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot %q: %w", id, crucerrors.ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("failed to read snapshot manifest: %w", err)
	}

	var info domain.SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("snapshot %q: corrupted manifest: %w", id, err)
	}
	return &info, nil
}

// List returns all snapshots sorted by creation time, oldest first.
func (m *Manager) List(ctx context.Context) ([]*domain.SnapshotInfo, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.SnapshotInfo{}, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	infos := make([]*domain.SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := m.Get(ctx, entry.Name())
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos, nil
}

// Verify recomputes the digests of a snapshot's captured files against its
// manifest. Returns ErrSnapshotCorrupted naming the first mismatched file.
func (m *Manager) Verify(ctx context.Context, id string) error {
	info, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	treeDir := filepath.Join(m.root, id, treeDirName)

	for _, f := range info.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		digest, _, err := hashFile(filepath.Join(treeDir, filepath.FromSlash(f.Path)))
		if err != nil {
			return fmt.Errorf("snapshot %q: file %s: %w", id, f.Path, crucerrors.ErrSnapshotCorrupted)
		}
		if digest != f.SHA256 {
			return fmt.Errorf("snapshot %q: file %s digest mismatch: %w", id, f.Path, crucerrors.ErrSnapshotCorrupted)
		}
	}
	return nil
}

// Prune removes all but the newest keep snapshots. Retention is otherwise
// unbounded; pruning happens only on an explicit external request.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = constants.DefaultSnapshotKeep
	}

	infos, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}

	removed := 0
	for _, info := range infos[:len(infos)-keep] {
		if err := os.RemoveAll(filepath.Join(m.root, info.ID)); err != nil {
			return removed, fmt.Errorf("failed to prune snapshot %q: %w", info.ID, err)
		}
		removed++
	}

	m.logger.Info().Int("removed", removed).Int("kept", keep).Msg("pruned old snapshots")
	return removed, nil
}

// writeManifest writes the manifest atomically so a crash never leaves a
// snapshot that looks complete but is not.
func (m *Manager) writeManifest(snapDir string, info *domain.SnapshotInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	manifestPath := filepath.Join(snapDir, constants.SnapshotManifestName)
	tmp := manifestPath + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, manifestPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize manifest: %w", err)
	}
	return nil
}

// copyFile copies src to dst, returning the SHA-256 digest, size, and mode
// of the copied contents.
func copyFile(src, dst string) (digest string, size int64, mode os.FileMode, err error) {
	//nolint:gosec // G304: paths are constructed from the managed tree
	in, err := os.Open(src)
	if err != nil {
		return "", 0, 0, err
	}
	defer func() { _ = in.Close() }()

	stat, err := in.Stat()
	if err != nil {
		return "", 0, 0, err
	}

	//nolint:gosec // G304: paths are constructed from the managed tree
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return "", 0, 0, err
	}
	defer func() { _ = out.Close() }()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		return "", 0, 0, err
	}
	if err := out.Sync(); err != nil {
		return "", 0, 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), n, stat.Mode(), nil
}

// hashFile computes the SHA-256 digest and size of a file.
func hashFile(path string) (string, int64, error) {
	//nolint:gosec // G304: path is constructed from the managed tree
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
