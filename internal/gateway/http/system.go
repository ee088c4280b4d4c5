package http

import (
	"net/http"
	"time"

	"github.com/uitrace/gateway/internal/gateway/hub"
	"github.com/uitrace/gateway/internal/gateway/store"
	"github.com/uitrace/gateway/pkg/httpx"
	"github.com/uitrace/gateway/pkg/slogx"
)

// SystemHandler serves liveness and readiness probes.
type SystemHandler struct {
	Store   store.Store
	Hub     *hub.Hub
	Version string
	Started time.Time
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Connections int    `json:"connections"`
}

// HandleLivez answers as long as the process is serving requests.
func (h *SystemHandler) HandleLivez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Version:     h.Version,
		Uptime:      time.Since(h.Started).Round(time.Second).String(),
		Connections: h.Hub.Len(),
	})
}

// HandleReadyz additionally checks the extension registry is reachable.
func (h *SystemHandler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Store.Ping(ctx); err != nil {
		slogx.FromContext(ctx).Error("readiness check failed", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Version:     h.Version,
		Uptime:      time.Since(h.Started).Round(time.Second).String(),
		Connections: h.Hub.Len(),
	})
}
