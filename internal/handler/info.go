package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything the health check can ping, typically the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

type InfoHandler struct {
	version string
	db      Pinger
	logger  *slog.Logger
}

// NewInfoHandler builds the root and health handlers. db may be nil.
func NewInfoHandler(version string, db Pinger, logger *slog.Logger) *InfoHandler {
	return &InfoHandler{version: version, db: db, logger: logger}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Language string `json:"language"`
}

// HandleRoot serves GET / with a short service description.
func (h *InfoHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Puffing Language API",
		"version": h.version,
		"health":  "/health",
		"metrics": "/metrics",
	})
}

// HandleHealth serves GET /health. It answers 503 when storage is unreachable.
func (h *InfoHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: h.version, Language: "Puffing"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error("health check: database unreachable", slog.String("error", err.Error()))
			resp.Status = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
