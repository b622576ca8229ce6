package storage

import "errors"

// Common client storage errors
var (
	// ErrReplicaNotFound indicates that the project has no saved replica state
	ErrReplicaNotFound = errors.New("replica state not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
