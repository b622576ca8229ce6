package storage

import "errors"

// Common storage errors
var (
	// ErrSnapshotNotFound indicates that project has no saved snapshot
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotCorrupted indicates that stored snapshot does not match its checksum
	ErrSnapshotCorrupted = errors.New("snapshot corrupted")
)
