package domain

import "time"

// SnapshotInfo describes an immutable point-in-time copy of the working tree.
// A later snapshot never overwrites an earlier one; the full history supports
// auditing the generation process.
//
// Example JSON representation (a snapshot's manifest file):
//
//	{
//	    "id": "snap-c41d9e02",
//	    "created_at": "2026-08-30T10:00:00Z",
//	    "file_count": 12,
//	    "total_bytes": 48213,
//	    "files": [{"path": "src/main.py", "sha256": "9b2f...", "size": 1024}]
//	}
type SnapshotInfo struct {
	// ID is the unique snapshot identifier. Format: snap-{uuid8}.
	ID string `json:"id"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`

	// FileCount is the number of files captured.
	FileCount int `json:"file_count"`

	// TotalBytes is the combined size of all captured files.
	TotalBytes int64 `json:"total_bytes"`

	// Files is the per-file digest manifest, sorted by path.
	Files []FileDigest `json:"files"`
}

// FileDigest records the identity of one captured file.
type FileDigest struct {
	// Path is the file path relative to the working tree root.
	Path string `json:"path"`

	// SHA256 is the hex digest of the file contents.
	SHA256 string `json:"sha256"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Mode is the file permission bits at snapshot time.
	Mode uint32 `json:"mode"`
}
