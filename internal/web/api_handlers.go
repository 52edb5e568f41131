package web

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/airlur/boxysync/internal/dav"
	"github.com/airlur/boxysync/internal/document"
	"github.com/airlur/boxysync/internal/store"
)

// sanitizeError returns a user-safe error message without exposing internal
// details. The full error is logged server-side only.
func sanitizeError(err error, userMessage string) string {
	if err != nil {
		log.Printf("Error: %s - Details: %v", userMessage, err)
	}
	return userMessage
}

// syncErrorResponse maps a sync-layer error to an HTTP status and message.
// Taxonomy errors carry their own human-readable messages.
func syncErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dav.ErrNoServer):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no WebDAV server configured"})
	case errors.Is(err, store.ErrReadOnly):
		c.JSON(http.StatusForbidden, gin.H{"error": "preview mode is read-only"})
	case errors.Is(err, dav.ErrAuthFailed),
		errors.Is(err, dav.ErrRemoteNotFound),
		errors.Is(err, dav.ErrNetworkUnavailable),
		errors.Is(err, dav.ErrSyncFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "sync failed")})
	}
}

// APIGetDocument returns the currently displayed document.
func (h *Handlers) APIGetDocument(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"document": h.store.Document(),
		"preview":  h.store.InPreview(),
	})
}

// APIPutDocument validates and commits a full replacement document.
func (h *Handlers) APIPutDocument(c *gin.Context) {
	var doc document.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document body"})
		return
	}

	doc.Normalize()
	if err := doc.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	committed, err := h.store.Commit(&doc, false)
	if err != nil {
		if errors.Is(err, store.ErrReadOnly) {
			c.JSON(http.StatusForbidden, gin.H{"error": "preview mode is read-only"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "failed to save document")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": committed})
}

type importRequest struct {
	Document     *document.Document      `json:"document,omitempty"`
	Entry        *document.SoftwareEntry `json:"entry,omitempty"`
	CategoryID   string                  `json:"categoryId,omitempty"`
	CategoryName string                  `json:"categoryName,omitempty"`
}

// APIImport merges a shared document or a single shared entry into the
// local document. Existing entries are never overwritten.
func (h *Handlers) APIImport(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid import body"})
		return
	}
	if req.Document == nil && req.Entry == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to import"})
		return
	}

	local := h.store.Local()
	added := 0
	if req.Document != nil {
		added = local.MergeDocument(req.Document)
	} else if local.MergeEntry(*req.Entry, req.CategoryID, req.CategoryName) {
		added = 1
	}

	// Imported data is as untrusted as a direct PUT.
	local.Normalize()
	if err := local.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	committed, err := h.store.Commit(local, false)
	if err != nil {
		if errors.Is(err, store.ErrReadOnly) {
			c.JSON(http.StatusForbidden, gin.H{"error": "preview mode is read-only"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "failed to save import")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": committed, "imported": added})
}

// APIWebDavSettings is the outward-facing config shape. The password is
// write-only.
type APIWebDavSettings struct {
	URL         string `json:"url"`
	User        string `json:"user"`
	Pass        string `json:"pass,omitempty"` // accepted on write, never returned
	HasPassword bool   `json:"has_password"`
	Remember    bool   `json:"remember"`
	AutoSync    bool   `json:"autoSync"`
	SyncDelay   int    `json:"syncDelay"`
	BackupLimit int    `json:"backupLimit"`
}

func settingsToAPI(cfg store.WebDavConfig) APIWebDavSettings {
	return APIWebDavSettings{
		URL:         cfg.URL,
		User:        cfg.User,
		HasPassword: cfg.Pass != "",
		Remember:    cfg.Remember,
		AutoSync:    cfg.AutoSync,
		SyncDelay:   cfg.SyncDelay,
		BackupLimit: cfg.BackupLimit,
	}
}

// APIGetSettings returns the WebDAV configuration without the password.
func (h *Handlers) APIGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, settingsToAPI(h.store.Config()))
}

// APIPutSettings replaces the WebDAV configuration. An empty password keeps
// the stored one.
func (h *Handlers) APIPutSettings(c *gin.Context) {
	var req APIWebDavSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings body"})
		return
	}

	cfg := store.WebDavConfig{
		URL:         req.URL,
		User:        req.User,
		Pass:        req.Pass,
		Remember:    req.Remember,
		AutoSync:    req.AutoSync,
		SyncDelay:   req.SyncDelay,
		BackupLimit: req.BackupLimit,
	}
	if cfg.Pass == "" {
		cfg.Pass = h.store.Config().Pass
	}

	saved, err := h.store.SetConfig(cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "failed to save settings")})
		return
	}

	c.JSON(http.StatusOK, settingsToAPI(saved))
}

// APISyncPush pushes the local document now.
func (h *Handlers) APISyncPush(c *gin.Context) {
	if h.store.InPreview() {
		c.JSON(http.StatusForbidden, gin.H{"error": "preview mode is read-only"})
		return
	}

	// A manual push supersedes any pending auto-sync countdown.
	h.autosync.Cancel()

	if err := h.engine.Push(c.Request.Context(), h.store.Local(), h.store.Config()); err != nil {
		syncErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document pushed"})
}

// APISyncPull pulls the cloud document and adopts it if newer.
func (h *Handlers) APISyncPull(c *gin.Context) {
	if h.store.InPreview() {
		c.JSON(http.StatusForbidden, gin.H{"error": "preview mode is read-only"})
		return
	}

	result, err := h.engine.Pull(c.Request.Context(), h.store.Config())
	if err != nil {
		syncErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"updated":  result.Outcome == dav.PullUpdated,
		"message":  result.Message,
		"document": h.store.Document(),
	})
}

// APISyncTest probes the configured server, or the settings supplied in the
// request body when testing before saving.
func (h *Handlers) APISyncTest(c *gin.Context) {
	cfg := h.store.Config()
	if c.Request.ContentLength > 0 {
		var req APIWebDavSettings
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings body"})
			return
		}
		cfg = store.WebDavConfig{URL: req.URL, User: req.User, Pass: req.Pass}
		if cfg.Pass == "" {
			cfg.Pass = h.store.Config().Pass
		}
	}

	if err := h.engine.TestConnection(c.Request.Context(), cfg); err != nil {
		syncErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "connection ok"})
}

// APISyncStatus reports the advisory sync state for the status indicator.
func (h *Handlers) APISyncStatus(c *gin.Context) {
	phase, message, lastSyncAt := h.status.Snapshot()

	resp := gin.H{
		"phase":     string(phase),
		"message":   message,
		"countdown": h.autosync.SecondsRemaining(),
	}
	if !lastSyncAt.IsZero() {
		resp["last_sync_at"] = lastSyncAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// APISyncLogs returns recent sync history, newest first.
func (h *Handlers) APISyncLogs(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	logs, err := h.db.GetRecentSyncLogs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": sanitizeError(err, "failed to load sync logs")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// APIListBackups lists remote snapshots, newest first.
func (h *Handlers) APIListBackups(c *gin.Context) {
	backups, err := h.engine.ListBackups(c.Request.Context(), h.store.Config())
	if err != nil {
		syncErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups})
}

// APIRestoreBackup downloads a snapshot and makes it the current document.
func (h *Handlers) APIRestoreBackup(c *gin.Context) {
	filename := c.Param("filename")

	doc, err := h.engine.RestoreBackup(c.Request.Context(), filename, h.store.Config())
	if err != nil {
		syncErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc, "message": "restored " + filename})
}

// APIDeleteBackup removes one snapshot.
func (h *Handlers) APIDeleteBackup(c *gin.Context) {
	filename := c.Param("filename")

	if err := h.engine.DeleteBackup(c.Request.Context(), filename, h.store.Config()); err != nil {
		syncErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted " + filename})
}
