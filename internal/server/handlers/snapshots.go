package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/codesync/internal/server/session"
	"github.com/iudanet/codesync/internal/server/storage"
	"github.com/iudanet/codesync/pkg/api"
)

//go:generate moq -out snapshots_mock.go . SnapshotManager

// SnapshotManager управляет сохраненными снимками проектов
type SnapshotManager interface {
	SavedProjects(ctx context.Context) ([]string, error)
	DeleteSnapshot(ctx context.Context, projectID string) error
}

// SnapshotHandler административные операции над снимками
type SnapshotHandler struct {
	logger    *slog.Logger
	snapshots SnapshotManager
}

// NewSnapshotHandler создает handler снимков
func NewSnapshotHandler(logger *slog.Logger, snapshots SnapshotManager) *SnapshotHandler {
	return &SnapshotHandler{
		logger:    logger,
		snapshots: snapshots,
	}
}

// HandleList обрабатывает GET /api/v1/snapshots
func (h *SnapshotHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.snapshots.SavedProjects(r.Context())
	if err != nil {
		h.writeStoreError(w, "", err)
		return
	}

	if projects == nil {
		projects = []string{}
	}
	writeJSON(w, h.logger, http.StatusOK, api.SnapshotList{Projects: projects})
}

// HandleDelete обрабатывает DELETE /api/v1/projects/{projectID}/snapshot
// Снимок проекта с активной сессией не удаляется
func (h *SnapshotHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDVar(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.snapshots.DeleteSnapshot(r.Context(), projectID); err != nil {
		h.writeStoreError(w, projectID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SnapshotHandler) writeStoreError(w http.ResponseWriter, projectID string, err error) {
	switch {
	case errors.Is(err, session.ErrNoSnapshotStore):
		writeError(w, h.logger, http.StatusNotImplemented, err.Error())
	case errors.Is(err, storage.ErrSnapshotNotFound):
		writeError(w, h.logger, http.StatusNotFound, "snapshot not found")
	case errors.Is(err, session.ErrSessionActive):
		writeError(w, h.logger, http.StatusConflict, "project has an active session")
	default:
		h.logger.Error("Snapshot operation failed", "project_id", projectID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "snapshot operation failed")
	}
}
