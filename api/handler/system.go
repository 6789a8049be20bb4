package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nostrfeed/feedcache/relay"
)

// Pinger checks connectivity to the local event store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves operational endpoints: liveness, readiness and the
// relay health snapshot.
type SystemHandler struct {
	store Pinger
	pool  *relay.Pool
}

func NewSystemHandler(store Pinger, pool *relay.Pool) *SystemHandler {
	return &SystemHandler{store: store, pool: pool}
}

// HealthLive handles GET /health — always returns 200.
// Used as a liveness probe by container orchestrators.
func (h *SystemHandler) HealthLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HealthReady handles GET /ready — checks store connectivity.
// Used as a readiness probe: returns 503 if the local database is
// unreachable. Relay reachability is deliberately not part of readiness;
// the service still serves stored events with every relay down.
func (h *SystemHandler) HealthReady(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "no store configured"})
		return
	}
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// RelayHealth handles GET /relays/health — availability from the health
// checker, one entry per configured relay.
func (h *SystemHandler) RelayHealth(c *gin.Context) {
	hc := h.pool.GetHealthChecker()
	if hc == nil {
		c.JSON(http.StatusOK, []relay.Status{})
		return
	}
	c.JSON(http.StatusOK, hc.Statuses())
}
