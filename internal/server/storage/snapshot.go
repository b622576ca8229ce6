package storage

import (
	"context"
	"time"

	"github.com/iudanet/codesync/internal/document"
)

// ProjectSnapshot полное состояние сессии проекта: все документы и эпоха
// координатора, которая их накопила
type ProjectSnapshot struct {
	SavedAt   time.Time           `json:"saved_at"`
	ProjectID string              `json:"project_id"`
	Epoch     string              `json:"epoch"`
	Documents []document.Snapshot `json:"documents"`
}

// SnapshotStorage defines interface for coordinator snapshot persistence
type SnapshotStorage interface {
	// SaveSnapshot creates or replaces the project snapshot
	SaveSnapshot(ctx context.Context, snapshot *ProjectSnapshot) error

	// LoadSnapshot retrieves the latest project snapshot
	// Returns ErrSnapshotNotFound if project was never saved
	LoadSnapshot(ctx context.Context, projectID string) (*ProjectSnapshot, error)

	// DeleteSnapshot removes the project snapshot
	// Returns ErrSnapshotNotFound if project was never saved
	DeleteSnapshot(ctx context.Context, projectID string) error

	// ListProjects returns ids of all saved projects
	ListProjects(ctx context.Context) ([]string, error)
}
