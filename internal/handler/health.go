package handler

import (
	"log/slog"
	"net/http"
)

// Pinger is implemented by the accounts database.
type Pinger interface {
	Ping() error
}

// HealthHandler serves GET /healthz. Only the accounts database is checked:
// tenant stores are per user and an unreachable one does not make the
// service unhealthy.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
