package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/airlur/boxysync/internal/config"
	"github.com/airlur/boxysync/internal/dav"
	"github.com/airlur/boxysync/internal/db"
	"github.com/airlur/boxysync/internal/scheduler"
	"github.com/airlur/boxysync/internal/store"
	"github.com/airlur/boxysync/internal/web"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 30 * time.Second
	startupPullWait = 15 * time.Second
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting BoxySync...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Initialize document store
	st := store.New(database)
	if err := st.Load(); err != nil {
		log.Fatalf("Failed to load document store: %v", err)
	}
	if st.WasCorrupted() {
		log.Println("Stored document was corrupt, starting from the default document")
	}

	// Initialize sync engine and auto-sync scheduler
	status := dav.NewStatus()
	engine := dav.NewEngine(st, database, status)
	autosync := scheduler.New(engine, status, st.Config)
	st.SetOnCommit(autosync.Trigger)

	// Periodic sync-log retention cleanup
	logCleanup := scheduler.NewLogCleanup(database)
	logCleanup.Start()

	// When auto-sync is on, try to adopt newer cloud data before serving.
	// Best effort: a dead server at boot must not keep the app down.
	if syncCfg := st.Config(); syncCfg.AutoSync && syncCfg.URL != "" {
		pullCtx, cancel := context.WithTimeout(context.Background(), startupPullWait)
		if result, err := engine.Pull(pullCtx, syncCfg); err != nil {
			log.Printf("Startup pull failed: %v", err)
		} else {
			log.Printf("Startup pull: %s", result.Message)
		}
		cancel()
	}

	// Initialize handlers
	handlers := web.NewHandlers(cfg, database, st, engine, autosync, status)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(web.RequestLogger())
	router.Use(web.SecurityHeaders())

	// Setup routes
	web.SetupRoutes(router, handlers)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop the auto-sync scheduler and wait for an in-flight push
	autosync.Stop()
	logCleanup.Stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
