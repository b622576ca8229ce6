package storage

import (
	"context"
	"time"

	"github.com/iudanet/codesync/internal/models"
)

//go:generate moq -out store_mock.go . Store

// ReplicaState данные реплики проекта, переживающие перезапуск клиента
type ReplicaState struct {
	UpdatedAt time.Time `json:"updated_at"`
	ProjectID string    `json:"project_id"`
	ReplicaID string    `json:"replica_id"`
	// Epoch эпоха координатора при последней синхронизации
	Epoch string `json:"epoch,omitempty"`
	// Seen векторы состояния документов на момент последней синхронизации.
	// Сравниваются с журналом после перезапуска координатора.
	Seen map[string]models.StateVector `json:"seen,omitempty"`
	// DataLoss описание потерянных операций, о которой пользователь еще
	// не знает. Пустая строка - потерь нет.
	DataLoss string `json:"data_loss,omitempty"`
}

// ReplicaStorage defines interface for storing replica identity and epoch
type ReplicaStorage interface {
	// SaveReplica stores or replaces replica state of the project
	SaveReplica(ctx context.Context, state *ReplicaState) error

	// GetReplica retrieves replica state of the project
	// Returns ErrReplicaNotFound if the project was never opened
	GetReplica(ctx context.Context, projectID string) (*ReplicaState, error)
}

// Store полное локальное хранилище реплики
type Store interface {
	ReplicaStorage
	OperationStorage
}
