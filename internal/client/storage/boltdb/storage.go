package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket names
	bucketReplicas = []byte("replicas")
	bucketProjects = []byte("projects")

	// Вложенные bucket проекта
	bucketKinds      = []byte("kinds")
	bucketOperations = []byte("operations")
)

// Storage represents BoltDB storage implementation for client
//
// Layout:
//
//	replicas/<projectID>                      -> ReplicaState (JSON)
//	projects/<projectID>/kinds/<documentID>   -> document kind
//	projects/<projectID>/operations/<documentID>/<seq> -> Operation (JSON)
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		// Создаем bucket для состояния реплик
		if _, err := tx.CreateBucketIfNotExists(bucketReplicas); err != nil {
			return fmt.Errorf("failed to create replicas bucket: %w", err)
		}

		// Создаем bucket для журналов документов
		if _, err := tx.CreateBucketIfNotExists(bucketProjects); err != nil {
			return fmt.Errorf("failed to create projects bucket: %w", err)
		}

		return nil
	})
}
