package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	store  Pinger
	logger *slog.Logger
}

func NewSystemHandler(store Pinger, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{store: store, logger: logger}
}

// HTTP: GET /
func (h *SystemHandler) HandleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Welcome to the snapgram API\n"))
}

// HandleHealth pings the store with a short deadline.
//
// HTTP: GET /healthz → 200 {"status":"ok"} or 503 {"status":"unavailable"}
func (h *SystemHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
