package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tresoria/backend/internal/infrastructure/config"
)

// SystemHandler serves the health endpoints
type SystemHandler struct {
	BaseHandler
	cfg *config.Config
	// ready reports whether the gateway's dependencies are reachable
	ready func(c *gin.Context) error
}

// NewSystemHandler creates a new SystemHandler. The ready check may be nil
// when the service has no local dependencies (remote gateway mode).
func NewSystemHandler(cfg *config.Config, ready func(c *gin.Context) error) *SystemHandler {
	return &SystemHandler{cfg: cfg, ready: ready}
}

// Health reports liveness
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, gin.H{
		"status":       "ok",
		"app":          h.cfg.App.Name,
		"env":          h.cfg.App.Env,
		"gateway_mode": h.cfg.Gateway.Mode,
	})
}

// Ready reports readiness, checking local dependencies when present
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c); err != nil {
			h.Error(c, 503, "NOT_READY", err.Error())
			return
		}
	}
	h.Success(c, gin.H{"status": "ready"})
}
