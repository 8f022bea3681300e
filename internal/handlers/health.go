// internal/handlers/health.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/mpnode/internal/daemon"
)

// Gate reports whether the node is connected and bootstrapped.
type Gate interface {
	Ready() bool
}

type NetworkInspector interface {
	NetworkInfo(ctx context.Context) (*daemon.NetworkInfo, error)
}

type HealthHandler struct {
	gate    Gate
	network NetworkInspector
	version string
}

// NewHealthHandler builds the health endpoint. network may be nil.
func NewHealthHandler(gate Gate, network NetworkInspector, version string) *HealthHandler {
	return &HealthHandler{gate: gate, network: network, version: version}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ready := h.gate.Ready()
	body := gin.H{
		"status":  "healthy",
		"ready":   ready,
		"version": h.version,
	}
	if !ready {
		body["status"] = "starting"
	}

	if ready && h.network != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if info, err := h.network.NetworkInfo(ctx); err == nil {
			body["daemon"] = gin.H{
				"subversion":  info.Subversion,
				"connections": info.Connections,
				"active":      info.NetworkActive,
			}
		} else {
			body["status"] = "degraded"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, body)
}
