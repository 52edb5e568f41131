// Package store owns the canonical in-memory document and its persisted
// mirror, plus the local-only WebDAV configuration.
package store

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/airlur/boxysync/internal/db"
	"github.com/airlur/boxysync/internal/document"
)

const (
	dataKey   = "boxy_data"
	configKey = "boxy_webdav_config"
)

var ErrReadOnly = errors.New("document is read-only in preview mode")

// CommitFunc is invoked after every durable commit that should schedule an
// auto-sync push.
type CommitFunc func(doc *document.Document)

// Store is the document store. All methods are safe for concurrent use.
type Store struct {
	db *db.DB

	mu        sync.RWMutex
	doc       *document.Document
	preview   *document.Document // non-nil while a shared snapshot is displayed
	cfg       WebDavConfig
	onCommit  CommitFunc
	corrupted bool
}

// New creates a store backed by the given database. Load must be called
// before the store is used.
func New(database *db.DB) *Store {
	return &Store{db: database}
}

// SetOnCommit installs the auto-sync notification hook.
func (s *Store) SetOnCommit(fn CommitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
}

// Load reads the persisted document and WebDAV configuration. A document
// that fails to parse is reported (once, via WasCorrupted) and replaced by
// the built-in default; this is a recoverable condition, not a startup error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.db.GetValue(dataKey)
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.doc = document.Default()
	case err != nil:
		return fmt.Errorf("failed to load document: %w", err)
	default:
		doc, parseErr := document.Parse(raw)
		if parseErr != nil {
			log.Printf("Local document is corrupt, falling back to default: %v", parseErr)
			s.doc = document.Default()
			s.corrupted = true
		} else {
			s.doc = doc
		}
	}

	s.cfg = defaultConfig()
	if raw, err := s.db.GetValue(configKey); err == nil {
		cfg, parseErr := parseConfig(raw)
		if parseErr != nil {
			log.Printf("Stored WebDAV config is corrupt, ignoring: %v", parseErr)
		} else {
			s.cfg = cfg.normalized()
		}
	} else if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("failed to load webdav config: %w", err)
	}

	return nil
}

// WasCorrupted reports whether the last Load recovered from unreadable
// persisted data.
func (s *Store) WasCorrupted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corrupted
}

// Document returns a copy of the currently displayed document. In preview
// mode that is the shared snapshot, not the local document.
func (s *Store) Document() *document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.preview != nil {
		return s.preview.Clone()
	}
	return s.doc.Clone()
}

// Commit stamps the document with the current timestamp, persists it and
// replaces the in-memory state. The write is durable before Commit returns.
// Unless skipAutoSync is set, the auto-sync hook fires with the committed
// document; pull- and restore-triggered commits set skipAutoSync to avoid
// immediately re-pushing what was just downloaded.
func (s *Store) Commit(doc *document.Document, skipAutoSync bool) (*document.Document, error) {
	s.mu.Lock()
	if s.preview != nil {
		s.mu.Unlock()
		return nil, ErrReadOnly
	}

	stamped := doc.Clone()
	ts := document.Now()
	if ts <= s.doc.UpdatedAt {
		// Wall clock went backwards; keep the timestamp monotonic anyway.
		ts = s.doc.UpdatedAt + 1
	}
	stamped.UpdatedAt = ts

	raw, err := stamped.Encode()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := s.db.SetValue(dataKey, raw); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to persist document: %w", err)
	}

	s.doc = stamped
	hook := s.onCommit
	s.mu.Unlock()

	if !skipAutoSync && hook != nil {
		hook(stamped.Clone())
	}

	return stamped.Clone(), nil
}

// Local returns a copy of the persisted local document, ignoring any active
// preview. Sync operations compare against this, never against a snapshot.
func (s *Store) Local() *document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// CommitRemote adopts a document downloaded from the cloud as-is, keeping
// its original timestamp so the local copy equals the cloud copy exactly.
// It never fires the auto-sync hook: pulling must not schedule a push.
func (s *Store) CommitRemote(doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.preview != nil {
		return ErrReadOnly
	}

	adopted := doc.Clone()
	raw, err := adopted.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := s.db.SetValue(dataKey, raw); err != nil {
		return fmt.Errorf("failed to persist document: %w", err)
	}

	s.doc = adopted
	return nil
}

// EnterPreview swaps in a shared snapshot for display. Nothing is persisted
// and all commits are rejected until ExitPreview.
func (s *Store) EnterPreview(doc *document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = doc.Clone()
}

// ExitPreview restores the local document as the displayed one.
func (s *Store) ExitPreview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = nil
}

// InPreview reports whether a shared snapshot is being displayed.
func (s *Store) InPreview() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preview != nil
}
