package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/codesync/internal/client/storage"
)

// SaveReplica stores or replaces replica state of the project
func (s *Storage) SaveReplica(ctx context.Context, state *storage.ReplicaState) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal replica state: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketReplicas)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		if err := bucket.Put([]byte(state.ProjectID), data); err != nil {
			return fmt.Errorf("failed to save replica state: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetReplica retrieves replica state of the project
func (s *Storage) GetReplica(ctx context.Context, projectID string) (*storage.ReplicaState, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var state *storage.ReplicaState

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReplicas)
		if bucket == nil {
			return storage.ErrReplicaNotFound
		}

		data := bucket.Get([]byte(projectID))
		if data == nil {
			return storage.ErrReplicaNotFound
		}

		state = &storage.ReplicaState{}
		if err := json.Unmarshal(data, state); err != nil {
			return fmt.Errorf("failed to unmarshal replica state: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}
