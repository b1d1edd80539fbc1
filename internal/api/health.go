package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/park285/cheese-wager/internal/chain"
)

type HealthHandler struct {
	host      *chain.Host
	startTime time.Time
	version   string
}

func NewHealthHandler(host *chain.Host, version string) *HealthHandler {
	return &HealthHandler{host: host, startTime: time.Now(), version: version}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Height    uint64            `json:"height"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness returns simple alive status.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness reads the ledger to confirm it is reachable.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    map[string]string{},
	}
	height, err := h.host.Height(ctx)
	if err != nil {
		resp.Status = "unhealthy"
		resp.Checks["ledger"] = "unhealthy: " + err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp.Height = height
	resp.Checks["ledger"] = "healthy"
	c.JSON(http.StatusOK, resp)
}
