// Package server собирает HTTP-поверхность координатора
package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iudanet/codesync/internal/server/handlers"
	"github.com/iudanet/codesync/internal/server/metrics"
	"github.com/iudanet/codesync/internal/server/middleware"
	"github.com/iudanet/codesync/internal/transport"
)

// Deps зависимости HTTP-роутера. Metrics, Limiter и Snapshots могут быть nil.
type Deps struct {
	Logger    *slog.Logger
	Sessions  handlers.SessionManager
	Snapshots handlers.SnapshotManager
	Metrics   *metrics.Metrics
	Limiter   *middleware.RateLimiter
	Version   string
	Transport transport.Options
}

// NewRouter регистрирует маршруты:
//
//	GET /health
//	GET /metrics
//	GET /api/v1/projects/{projectID}
//	GET /api/v1/snapshots
//	DELETE /api/v1/projects/{projectID}/snapshot
//	GET /api/collaboration/{projectID} (websocket)
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	health := handlers.NewHealthHandler(logger, deps.Version, deps.Sessions)
	collab := handlers.NewCollaborationHandler(logger, deps.Sessions, deps.Transport)

	router := mux.NewRouter()
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/v1/projects/{projectID}", collab.HandleProject).Methods(http.MethodGet)
	if deps.Snapshots != nil {
		snapshots := handlers.NewSnapshotHandler(logger, deps.Snapshots)
		api.HandleFunc("/v1/snapshots", snapshots.HandleList).Methods(http.MethodGet)
		api.HandleFunc("/v1/projects/{projectID}/snapshot", snapshots.HandleDelete).Methods(http.MethodDelete)
	}

	var connect http.Handler = http.HandlerFunc(collab.HandleConnect)
	if deps.Limiter != nil {
		connect = deps.Limiter.Middleware(connect)
	}
	api.Handle("/collaboration/{projectID}", connect).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = middleware.MetricsMiddleware(deps.Metrics)(handler)
	handler = middleware.LoggingWithSkip(logger, []string{"/health", "/metrics"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	return handler
}
