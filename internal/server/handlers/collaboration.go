package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/iudanet/codesync/internal/server/session"
	"github.com/iudanet/codesync/internal/transport"
	"github.com/iudanet/codesync/pkg/api"
)

//go:generate moq -out sessions_mock.go . SessionManager

// SessionManager реестр сессий проектов
type SessionManager interface {
	SessionLister
	Attach(ctx context.Context, projectID string, conn transport.Conn) error
	Stats(ctx context.Context, projectID string) (api.ProjectStats, error)
}

// CollaborationHandler подключает реплики к сессиям проектов
type CollaborationHandler struct {
	logger   *slog.Logger
	sessions SessionManager
	opts     transport.Options
}

// NewCollaborationHandler создает handler совместной работы
func NewCollaborationHandler(logger *slog.Logger, sessions SessionManager, opts transport.Options) *CollaborationHandler {
	return &CollaborationHandler{
		logger:   logger,
		sessions: sessions,
		opts:     opts,
	}
}

// HandleConnect обрабатывает GET /api/collaboration/{projectID}
// Переводит соединение в websocket и обслуживает его до закрытия
func (h *CollaborationHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	if !websocket.IsWebSocketUpgrade(r) {
		writeError(w, h.logger, http.StatusUpgradeRequired, "expected websocket upgrade")
		return
	}

	conn, err := transport.Upgrade(w, r, h.opts, h.logger)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("Websocket upgrade failed", "project_id", projectID, "error", err)
		return
	}

	h.logger.Info("Replica connected",
		"project_id", projectID,
		"remote_addr", conn.RemoteAddr())

	err = h.sessions.Attach(r.Context(), projectID, conn)
	_ = conn.Close()

	if err != nil {
		h.logger.Warn("Replica disconnected with error",
			"project_id", projectID,
			"remote_addr", conn.RemoteAddr(),
			"error", err)
		return
	}

	h.logger.Info("Replica disconnected",
		"project_id", projectID,
		"remote_addr", conn.RemoteAddr())
}

// HandleProject обрабатывает GET /api/v1/projects/{projectID}
// Возвращает сводку по активной сессии проекта
func (h *CollaborationHandler) HandleProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	stats, err := h.sessions.Stats(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "no active session for project")
			return
		}
		h.logger.Error("Failed to get session stats", "project_id", projectID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to get session stats")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, stats)
}

func (h *CollaborationHandler) projectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return projectIDVar(w, r, h.logger)
}
