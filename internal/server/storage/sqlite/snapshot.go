package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/codesync/internal/crypto"
	"github.com/iudanet/codesync/internal/server/storage"
)

// SaveSnapshot creates or replaces the project snapshot
func (s *Storage) SaveSnapshot(ctx context.Context, snapshot *storage.ProjectSnapshot) error {
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now()
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var operations int
	for i := range snapshot.Documents {
		operations += len(snapshot.Documents[i].Ops)
	}

	query := `
		INSERT INTO project_snapshots (
			project_id, epoch, data, checksum, documents, operations, saved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			epoch = excluded.epoch,
			data = excluded.data,
			checksum = excluded.checksum,
			documents = excluded.documents,
			operations = excluded.operations,
			saved_at = excluded.saved_at
	`

	_, err = s.db.ExecContext(ctx, query,
		snapshot.ProjectID,
		snapshot.Epoch,
		data,
		crypto.Digest(data),
		len(snapshot.Documents),
		operations,
		snapshot.SavedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot retrieves the latest project snapshot
func (s *Storage) LoadSnapshot(ctx context.Context, projectID string) (*storage.ProjectSnapshot, error) {
	query := `SELECT data, checksum FROM project_snapshots WHERE project_id = ?`

	var (
		data []byte
		sum  string
	)

	err := s.db.QueryRowContext(ctx, query, projectID).Scan(&data, &sum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := crypto.VerifyDigest(data, sum); err != nil {
		return nil, fmt.Errorf("%w: project %s: %v", storage.ErrSnapshotCorrupted, projectID, err)
	}

	var snapshot storage.ProjectSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrSnapshotCorrupted, err)
	}

	return &snapshot, nil
}

// DeleteSnapshot removes the project snapshot
func (s *Storage) DeleteSnapshot(ctx context.Context, projectID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM project_snapshots WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrSnapshotNotFound
	}

	return nil
}

// ListProjects returns ids of all saved projects ordered by id
func (s *Storage) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id FROM project_snapshots ORDER BY project_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}

