// Package scheduler coalesces bursts of local edits into a single delayed
// push: every commit restarts a countdown, and only the document present
// when the countdown expires is pushed.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/airlur/boxysync/internal/dav"
	"github.com/airlur/boxysync/internal/db"
	"github.com/airlur/boxysync/internal/document"
	"github.com/airlur/boxysync/internal/store"
)

const (
	cleanupInterval  = 24 * time.Hour
	logRetentionDays = 30
)

// ConfigFunc returns the current WebDAV configuration. The scheduler reads
// it through this indirection both at trigger time and again at countdown
// expiry, so a configuration change during the countdown is honored instead
// of a stale snapshot.
type ConfigFunc func() store.WebDavConfig

// AutoSync is the debounce scheduler. At most one countdown is pending at
// any time; a new trigger cancels and replaces it.
type AutoSync struct {
	engine   *dav.Engine
	status   *dav.Status
	configFn ConfigFunc

	mu       sync.Mutex
	timer    *time.Timer
	deadline time.Time
	pending  *document.Document
	stopped  bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an auto-sync scheduler.
func New(engine *dav.Engine, status *dav.Status, configFn ConfigFunc) *AutoSync {
	ctx, cancel := context.WithCancel(context.Background())
	return &AutoSync{
		engine:   engine,
		status:   status,
		configFn: configFn,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Trigger (re)starts the countdown for the given document. It is a no-op
// when auto-sync is disabled or no server is configured. Only the most
// recent document survives to be pushed.
func (a *AutoSync) Trigger(doc *document.Document) {
	cfg := a.configFn()
	if !cfg.AutoSync || cfg.URL == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	delay := time.Duration(cfg.SyncDelay) * time.Second
	a.pending = doc
	a.deadline = time.Now().Add(delay)
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(delay, a.fire)

	a.status.SetWaiting(fmt.Sprintf("auto-sync in %ds", cfg.SyncDelay))
}

// fire runs on the timer goroutine when the countdown expires.
func (a *AutoSync) fire() {
	a.mu.Lock()
	if a.stopped || a.pending == nil {
		a.mu.Unlock()
		return
	}
	doc := a.pending
	a.pending = nil
	a.timer = nil
	a.deadline = time.Time{}
	a.wg.Add(1)
	a.mu.Unlock()
	defer a.wg.Done()

	// Resolve the configuration at expiry time, not at trigger time.
	cfg := a.configFn()
	if !cfg.AutoSync || cfg.URL == "" {
		a.status.SetIdle()
		return
	}

	if err := a.engine.Push(a.ctx, doc, cfg); err != nil {
		log.Printf("Auto-sync push failed: %v", err)
	}
}

// Cancel discards any pending countdown without pushing.
func (a *AutoSync) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.pending != nil {
		a.pending = nil
		a.deadline = time.Time{}
		a.status.SetIdle()
	}
}

// SecondsRemaining reports the countdown in whole seconds, or 0 when idle.
// Advisory only, for status display.
func (a *AutoSync) SecondsRemaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return 0
	}
	remaining := time.Until(a.deadline).Seconds()
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining))
}

// Stop cancels any pending countdown and waits for an in-flight push to
// finish. The scheduler cannot be restarted afterwards.
func (a *AutoSync) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.pending = nil
	a.mu.Unlock()

	// Let an in-flight push run to completion before tearing down its
	// context; the client's request timeout bounds the wait.
	a.wg.Wait()
	a.cancel()
	log.Println("Auto-sync scheduler stopped")
}

// LogCleanup periodically deletes sync log rows older than the retention
// window.
type LogCleanup struct {
	db   *db.DB
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewLogCleanup creates a log cleanup routine; call Start to run it.
func NewLogCleanup(database *db.DB) *LogCleanup {
	return &LogCleanup{db: database, stop: make(chan struct{})}
}

// Start launches the cleanup goroutine. Logs accumulated while the process
// was down are cleaned immediately, then once per interval.
func (l *LogCleanup) Start() {
	l.wg.Add(1)
	go l.run()
}

func (l *LogCleanup) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	l.cleanup()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *LogCleanup) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -logRetentionDays)
	deleted, err := l.db.CleanOldSyncLogs(cutoff)
	if err != nil {
		log.Printf("Failed to clean old sync logs: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Cleaned %d old sync logs", deleted)
	}
}

// Stop ends the cleanup routine and waits for it to exit.
func (l *LogCleanup) Stop() {
	close(l.stop)
	l.wg.Wait()
}
