package handler

import (
	"net/http"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/broadcast"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	natsClient *broadcast.Client
}

// NewHealthHandler creates a new health handler. natsClient may be nil when
// fan-out is disabled.
func NewHealthHandler(natsClient *broadcast.Client) *HealthHandler {
	return &HealthHandler{
		natsClient: natsClient,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
