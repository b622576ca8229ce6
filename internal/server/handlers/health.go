package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/codesync/pkg/api"
)

// SessionLister источник списка активных сессий
type SessionLister interface {
	Sessions() []string
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger   *slog.Logger
	sessions SessionLister
	version  string
}

// NewHealthHandler создает новый handler для health check.
// version задается при сборке через ldflags.
func NewHealthHandler(logger *slog.Logger, version string, sessions SessionLister) *HealthHandler {
	return &HealthHandler{
		logger:   logger,
		version:  version,
		sessions: sessions,
	}
}

// Health обрабатывает GET /health
// Health check endpoint для мониторинга
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	if h.sessions != nil {
		resp.Sessions = len(h.sessions.Sessions())
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}
