package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iudanet/codesync/internal/validation"
	"github.com/iudanet/codesync/pkg/api"
)

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, api.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// projectIDVar достает projectID из пути и отвечает 400, если он некорректен
func projectIDVar(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	projectID := mux.Vars(r)["projectID"]
	if err := validation.ValidateProjectID(projectID); err != nil {
		writeError(w, logger, http.StatusBadRequest, err.Error())
		return "", false
	}
	return projectID, true
}
