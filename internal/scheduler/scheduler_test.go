package scheduler

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/airlur/boxysync/internal/dav"
	"github.com/airlur/boxysync/internal/db"
	"github.com/airlur/boxysync/internal/document"
	"github.com/airlur/boxysync/internal/store"
)

// configCell is a mutable ConfigFunc source for tests.
type configCell struct {
	mu  sync.Mutex
	cfg store.WebDavConfig
}

func (c *configCell) get() store.WebDavConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *configCell) set(cfg store.WebDavConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// pushRecorder is a fake WebDAV server that counts data-file uploads and
// remembers the last uploaded body.
type pushRecorder struct {
	mu     sync.Mutex
	pushes int
	last   []byte
}

func (p *pushRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPut && r.URL.Path == "/Boxy/boxy_data.json" {
		body, _ := io.ReadAll(r.Body)
		p.mu.Lock()
		p.pushes++
		p.last = body
		p.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		return
	}
	if r.Method == "PROPFIND" {
		w.WriteHeader(http.StatusMultiStatus)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (p *pushRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes
}

func (p *pushRecorder) lastBody() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.last)
}

func newTestScheduler(t *testing.T, url string) (*AutoSync, *configCell, *dav.Status) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	st := store.New(database)
	if err := st.Load(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}

	status := dav.NewStatus()
	engine := dav.NewEngine(st, database, status)

	cell := &configCell{}
	cell.set(store.WebDavConfig{
		URL:       url,
		User:      "u",
		Pass:      "p",
		AutoSync:  true,
		Remember:  true,
		SyncDelay: 1,
	})

	a := New(engine, status, cell.get)
	t.Cleanup(a.Stop)
	return a, cell, status
}

func docNamed(name string) *document.Document {
	return &document.Document{
		UpdatedAt: document.Now(),
		Categories: []document.Category{
			{ID: "c1", Name: name, Software: []document.SoftwareEntry{
				{ID: "s1", Name: name},
			}},
		},
	}
}

func waitForPushes(t *testing.T, rec *pushRecorder, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rec.count() >= want {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d pushes, got %d", want, rec.count())
}

func TestTrigger(t *testing.T) {
	t.Run("pushes the document after the delay", func(t *testing.T) {
		rec := &pushRecorder{}
		server := httptest.NewServer(rec)
		defer server.Close()

		a, _, status := newTestScheduler(t, server.URL)

		a.Trigger(docNamed("one"))

		if phase, _, _ := status.Snapshot(); phase != dav.PhaseWaiting {
			t.Errorf("expected waiting phase, got %s", phase)
		}
		if rec.count() != 0 {
			t.Error("push must not happen before the delay expires")
		}

		waitForPushes(t, rec, 1)
	})

	t.Run("burst of edits results in one push of the latest document", func(t *testing.T) {
		rec := &pushRecorder{}
		server := httptest.NewServer(rec)
		defer server.Close()

		a, _, _ := newTestScheduler(t, server.URL)

		for i := 0; i < 5; i++ {
			a.Trigger(docNamed(fmt.Sprintf("edit-%d", i)))
			time.Sleep(50 * time.Millisecond)
		}

		waitForPushes(t, rec, 1)
		// Give a potential spurious second push time to show up.
		time.Sleep(1500 * time.Millisecond)

		if n := rec.count(); n != 1 {
			t.Errorf("expected exactly one push for the burst, got %d", n)
		}
		if body := rec.lastBody(); !strings.Contains(body, "edit-4") {
			t.Errorf("expected the last edit pushed, body: %s", body)
		}
	})

	t.Run("no-op when auto-sync is disabled", func(t *testing.T) {
		rec := &pushRecorder{}
		server := httptest.NewServer(rec)
		defer server.Close()

		a, cell, _ := newTestScheduler(t, server.URL)
		cfg := cell.get()
		cfg.AutoSync = false
		cell.set(cfg)

		a.Trigger(docNamed("ignored"))

		if a.SecondsRemaining() != 0 {
			t.Error("disabled auto-sync must not start a countdown")
		}
	})

	t.Run("no-op without a server URL", func(t *testing.T) {
		a, cell, _ := newTestScheduler(t, "")
		cfg := cell.get()
		cfg.URL = ""
		cell.set(cfg)

		a.Trigger(docNamed("ignored"))

		if a.SecondsRemaining() != 0 {
			t.Error("missing server must not start a countdown")
		}
	})

	t.Run("reads configuration at expiry, not at trigger", func(t *testing.T) {
		rec := &pushRecorder{}
		server := httptest.NewServer(rec)
		defer server.Close()

		a, cell, _ := newTestScheduler(t, server.URL)

		a.Trigger(docNamed("stale"))

		// Disable auto-sync while the countdown runs.
		cfg := cell.get()
		cfg.AutoSync = false
		cell.set(cfg)

		time.Sleep(1500 * time.Millisecond)
		if n := rec.count(); n != 0 {
			t.Errorf("push must honor the config at expiry, got %d pushes", n)
		}
	})
}

func TestCancel(t *testing.T) {
	rec := &pushRecorder{}
	server := httptest.NewServer(rec)
	defer server.Close()

	a, _, status := newTestScheduler(t, server.URL)

	a.Trigger(docNamed("cancelled"))
	a.Cancel()

	if a.SecondsRemaining() != 0 {
		t.Error("cancel must clear the countdown")
	}
	if phase, _, _ := status.Snapshot(); phase != dav.PhaseIdle {
		t.Errorf("expected idle phase after cancel, got %s", phase)
	}

	time.Sleep(1500 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Errorf("cancelled countdown must not push, got %d", n)
	}
}

func TestSecondsRemaining(t *testing.T) {
	rec := &pushRecorder{}
	server := httptest.NewServer(rec)
	defer server.Close()

	a, cell, _ := newTestScheduler(t, server.URL)
	cfg := cell.get()
	cfg.SyncDelay = 30
	cell.set(cfg)

	if a.SecondsRemaining() != 0 {
		t.Error("expected 0 before any trigger")
	}

	a.Trigger(docNamed("waiting"))

	got := a.SecondsRemaining()
	if got < 29 || got > 30 {
		t.Errorf("expected roughly 30 seconds remaining, got %d", got)
	}
}

func TestStop(t *testing.T) {
	t.Run("discards a pending countdown", func(t *testing.T) {
		rec := &pushRecorder{}
		server := httptest.NewServer(rec)
		defer server.Close()

		a, _, _ := newTestScheduler(t, server.URL)

		a.Trigger(docNamed("dropped"))
		a.Stop()

		time.Sleep(1500 * time.Millisecond)
		if n := rec.count(); n != 0 {
			t.Errorf("stopped scheduler must not push, got %d", n)
		}
	})

	t.Run("triggers after stop are ignored", func(t *testing.T) {
		a, _, _ := newTestScheduler(t, "https://dav.example.com")
		a.Stop()
		a.Trigger(docNamed("late"))

		if a.SecondsRemaining() != 0 {
			t.Error("trigger after stop must be a no-op")
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		a, _, _ := newTestScheduler(t, "https://dav.example.com")
		a.Stop()
		a.Stop()
	})

	t.Run("lets an in-flight push finish", func(t *testing.T) {
		started := make(chan struct{})
		var once sync.Once
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/boxy_data.json") {
				once.Do(func() { close(started) })
				time.Sleep(250 * time.Millisecond)
			}
			if r.Method == "PROPFIND" {
				w.WriteHeader(http.StatusMultiStatus)
				return
			}
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		a, _, status := newTestScheduler(t, server.URL)
		a.Trigger(docNamed("slow"))

		select {
		case <-started:
		case <-time.After(3 * time.Second):
			t.Fatal("push never started")
		}
		a.Stop()

		if phase, msg, _ := status.Snapshot(); phase != dav.PhaseSuccess {
			t.Errorf("expected the in-flight push to complete, got %s %q", phase, msg)
		}
	})
}

func TestLogCleanup(t *testing.T) {
	t.Run("keeps logs inside the retention window", func(t *testing.T) {
		database, err := db.New(filepath.Join(t.TempDir(), "cleanup.db"))
		if err != nil {
			t.Fatalf("failed to create test database: %v", err)
		}
		t.Cleanup(func() { database.Close() })

		if err := database.CreateSyncLog(&db.SyncLog{
			Operation: db.OpPush,
			Status:    db.SyncStatusSuccess,
		}); err != nil {
			t.Fatalf("failed to create log: %v", err)
		}

		// Start runs one cleanup immediately; a fresh row must survive it.
		cleanup := NewLogCleanup(database)
		cleanup.Start()
		cleanup.Stop()

		logs, err := database.GetRecentSyncLogs(10)
		if err != nil {
			t.Fatalf("GetRecentSyncLogs failed: %v", err)
		}
		if len(logs) != 1 {
			t.Errorf("expected the recent log to survive cleanup, got %d", len(logs))
		}
	})

	t.Run("stop terminates the routine", func(t *testing.T) {
		database, err := db.New(filepath.Join(t.TempDir(), "cleanup.db"))
		if err != nil {
			t.Fatalf("failed to create test database: %v", err)
		}
		t.Cleanup(func() { database.Close() })

		cleanup := NewLogCleanup(database)
		cleanup.Start()

		done := make(chan struct{})
		go func() {
			cleanup.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop did not return")
		}
	})
}
