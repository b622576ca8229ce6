package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/codesync/internal/client/storage"
	"github.com/iudanet/codesync/internal/document"
	"github.com/iudanet/codesync/internal/models"
)

// AppendOperations appends applied operations to the document log.
// Keys are bucket sequence numbers, so ForEach returns operations in append order.
func (s *Storage) AppendOperations(ctx context.Context, projectID, documentID string, kind models.DocumentKind, ops []models.Operation) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if len(ops) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		project, err := projectBucket(tx, projectID)
		if err != nil {
			return err
		}

		kinds, err := project.CreateBucketIfNotExists(bucketKinds)
		if err != nil {
			return fmt.Errorf("failed to create kinds bucket: %w", err)
		}
		if err := kinds.Put([]byte(documentID), []byte(kind)); err != nil {
			return fmt.Errorf("failed to save document kind: %w", err)
		}

		all, err := project.CreateBucketIfNotExists(bucketOperations)
		if err != nil {
			return fmt.Errorf("failed to create operations bucket: %w", err)
		}
		log, err := all.CreateBucketIfNotExists([]byte(documentID))
		if err != nil {
			return fmt.Errorf("failed to create document bucket: %w", err)
		}

		for i := range ops {
			data, err := json.Marshal(&ops[i])
			if err != nil {
				return fmt.Errorf("failed to marshal operation: %w", err)
			}

			seq, err := log.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to allocate sequence: %w", err)
			}

			if err := log.Put(sequenceKey(seq), data); err != nil {
				return fmt.Errorf("failed to save operation: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// LoadDocuments returns every stored document of the project
func (s *Storage) LoadDocuments(ctx context.Context, projectID string) ([]document.Snapshot, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var snapshots []document.Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		projects := tx.Bucket(bucketProjects)
		if projects == nil {
			return nil
		}
		project := projects.Bucket([]byte(projectID))
		if project == nil {
			// Проект еще не открывался - пустой список
			return nil
		}

		kinds := project.Bucket(bucketKinds)
		all := project.Bucket(bucketOperations)
		if kinds == nil || all == nil {
			return nil
		}

		return kinds.ForEach(func(k, v []byte) error {
			snapshot := document.Snapshot{
				DocumentID: string(k),
				Kind:       models.DocumentKind(v),
			}

			if log := all.Bucket(k); log != nil {
				err := log.ForEach(func(_, data []byte) error {
					var op models.Operation
					if err := json.Unmarshal(data, &op); err != nil {
						return fmt.Errorf("failed to unmarshal operation: %w", err)
					}
					snapshot.Ops = append(snapshot.Ops, op)
					return nil
				})
				if err != nil {
					return err
				}
			}

			snapshots = append(snapshots, snapshot)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	return snapshots, nil
}

// ClearProject removes all documents and replica state of the project
func (s *Storage) ClearProject(ctx context.Context, projectID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if projects := tx.Bucket(bucketProjects); projects != nil && projects.Bucket([]byte(projectID)) != nil {
			if err := projects.DeleteBucket([]byte(projectID)); err != nil {
				return fmt.Errorf("failed to delete project bucket: %w", err)
			}
		}

		if replicas := tx.Bucket(bucketReplicas); replicas != nil {
			if err := replicas.Delete([]byte(projectID)); err != nil {
				return fmt.Errorf("failed to delete replica state: %w", err)
			}
		}

		return nil
	})
}

func projectBucket(tx *bbolt.Tx, projectID string) (*bbolt.Bucket, error) {
	projects, err := tx.CreateBucketIfNotExists(bucketProjects)
	if err != nil {
		return nil, fmt.Errorf("failed to create projects bucket: %w", err)
	}

	project, err := projects.CreateBucketIfNotExists([]byte(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to create project bucket: %w", err)
	}

	return project, nil
}

// sequenceKey big-endian ключ сохраняет порядок добавления при обходе
func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
