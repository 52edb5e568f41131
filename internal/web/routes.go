package web

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes.
func SetupRoutes(r *gin.Engine, h *Handlers) {
	// Health endpoints (no rate limit)
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.Liveness)
	r.GET("/ready", h.Readiness)

	// API routes for the React frontend with rate limiting
	apiRateLimiter := RateLimiter(h.cfg.RateLimiting.RPS, h.cfg.RateLimiting.Burst)
	apiGroup := r.Group("/api")
	apiGroup.Use(apiRateLimiter)
	apiGroup.Use(ValidateOrigin())         // CSRF protection via origin check
	apiGroup.Use(RequireJSONContentType()) // Validate Content-Type header
	{
		apiGroup.GET("/data", h.APIGetDocument)
		apiGroup.PUT("/data", h.APIPutDocument)
		apiGroup.POST("/data/import", h.APIImport)

		apiGroup.GET("/settings/webdav", h.APIGetSettings)
		apiGroup.PUT("/settings/webdav", h.APIPutSettings)

		apiGroup.GET("/sync/status", h.APISyncStatus)
		apiGroup.GET("/sync/logs", h.APISyncLogs)

		apiGroup.POST("/preview/:gist", h.APIEnterPreview)
		apiGroup.DELETE("/preview", h.APIExitPreview)

		apiGroup.GET("/favicon", h.APIFavicon)
	}

	// Expensive operations with stricter rate limiting (outbound network
	// calls, credential testing)
	expensiveRateLimiter := RateLimiter(2, 5) // 2 requests/sec, burst of 5
	expensiveAPI := r.Group("/api")
	expensiveAPI.Use(expensiveRateLimiter)
	expensiveAPI.Use(ValidateOrigin())
	expensiveAPI.Use(RequireJSONContentType())
	{
		expensiveAPI.POST("/sync/push", h.APISyncPush)
		expensiveAPI.POST("/sync/pull", h.APISyncPull)
		expensiveAPI.POST("/sync/test", h.APISyncTest)

		expensiveAPI.GET("/backups", h.APIListBackups)
		expensiveAPI.POST("/backups/:filename/restore", h.APIRestoreBackup)
		expensiveAPI.DELETE("/backups/:filename", h.APIDeleteBackup)

		expensiveAPI.POST("/webdav", h.APIWebDavRelay)
		expensiveAPI.POST("/share", h.APIShare)
		expensiveAPI.POST("/admin/update-repo", h.APIUpdateRepo)
	}

	// Serve React app static files
	setupReactApp(r)
}

// setupReactApp configures serving of the React frontend.
func setupReactApp(r *gin.Engine) {
	// Check if React build exists
	webDistPath := "web/dist"
	if _, err := os.Stat(webDistPath); os.IsNotExist(err) {
		// In development or React app not built yet
		return
	}

	// Serve static assets
	r.Static("/assets", filepath.Join(webDistPath, "assets"))

	// Serve other static files
	r.StaticFile("/vite.svg", filepath.Join(webDistPath, "vite.svg"))
	r.StaticFile("/logo.png", filepath.Join(webDistPath, "logo.png"))

	// SPA fallback - serve index.html for all unmatched routes
	r.NoRoute(func(c *gin.Context) {
		// Don't serve index.html for API routes
		if len(c.Request.URL.Path) >= 4 && c.Request.URL.Path[:4] == "/api" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		// Don't serve index.html for health routes
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/ready" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		c.File(filepath.Join(webDistPath, "index.html"))
	})
}
