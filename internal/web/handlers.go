package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/airlur/boxysync/internal/config"
	"github.com/airlur/boxysync/internal/dav"
	"github.com/airlur/boxysync/internal/db"
	"github.com/airlur/boxysync/internal/scheduler"
	"github.com/airlur/boxysync/internal/store"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	cfg      *config.Config
	db       *db.DB
	store    *store.Store
	engine   *dav.Engine
	autosync *scheduler.AutoSync
	status   *dav.Status

	// httpClient performs the outbound relay calls (favicon, gist, repo
	// update). Swapped out in tests.
	httpClient *http.Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	cfg *config.Config,
	database *db.DB,
	st *store.Store,
	engine *dav.Engine,
	autosync *scheduler.AutoSync,
	status *dav.Status,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		db:       database,
		store:    st,
		engine:   engine,
		autosync: autosync,
		status:   status,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// HealthCheck returns a full health report.
func (h *Handlers) HealthCheck(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"preview": h.store.InPreview(),
	})
}

// Liveness returns a simple liveness check.
func (h *Handlers) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness checks all dependencies.
func (h *Handlers) Readiness(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
