package api

import "time"

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// HealthResponse ответ GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Sessions int    `json:"sessions"`
}

// DocumentStats сводка по одному документу сессии
type DocumentStats struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Digest     string `json:"digest"`
	Operations int    `json:"operations"`
	Pending    int    `json:"pending"`
	// Tombstones удаленные элементы, которые хранятся без сборки мусора
	Tombstones int `json:"tombstones"`
}

// ProjectStats ответ GET /api/v1/projects/{projectID}
type ProjectStats struct {
	StartedAt time.Time       `json:"started_at"`
	ProjectID string          `json:"project_id"`
	Epoch     string          `json:"epoch"`
	Documents []DocumentStats `json:"documents"`
	Peers     []PeerStats     `json:"peers"`
	Awareness int             `json:"awareness"`
}

// PeerStats состояние подключенной реплики
type PeerStats struct {
	ReplicaID string `json:"replica_id"`
	State     string `json:"state"`
	Queued    int    `json:"queued"`
}

// SnapshotList ответ GET /api/v1/snapshots
type SnapshotList struct {
	Projects []string `json:"projects"`
}
