package store

import (
	"encoding/json"
	"fmt"
)

const (
	DefaultSyncDelay = 2 // seconds
	MinSyncDelay     = 1
	MaxSyncDelay     = 3600

	DefaultBackupLimit = 10
	MinBackupLimit     = 5
	MaxBackupLimit     = 50
)

// WebDavConfig is the local-only sync configuration. It is never part of the
// synchronized document.
type WebDavConfig struct {
	URL         string `json:"url"`
	User        string `json:"user"`
	Pass        string `json:"pass"`
	Remember    bool   `json:"remember"`
	AutoSync    bool   `json:"autoSync"`
	SyncDelay   int    `json:"syncDelay"`
	BackupLimit int    `json:"backupLimit"`
}

func defaultConfig() WebDavConfig {
	return WebDavConfig{
		SyncDelay:   DefaultSyncDelay,
		BackupLimit: DefaultBackupLimit,
	}
}

func parseConfig(raw []byte) (WebDavConfig, error) {
	cfg := defaultConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return WebDavConfig{}, fmt.Errorf("failed to parse webdav config: %w", err)
	}
	return cfg, nil
}

// normalized applies the invariants: auto-sync forces remember, and the
// numeric knobs are clamped to their documented ranges.
func (c WebDavConfig) normalized() WebDavConfig {
	if c.AutoSync {
		c.Remember = true
	}
	c.SyncDelay = clamp(c.SyncDelay, MinSyncDelay, MaxSyncDelay, DefaultSyncDelay)
	c.BackupLimit = clamp(c.BackupLimit, MinBackupLimit, MaxBackupLimit, DefaultBackupLimit)
	return c
}

func clamp(v, min, max, def int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Config returns the current WebDAV configuration.
func (s *Store) Config() WebDavConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig replaces the WebDAV configuration. It is persisted only while
// remember (or auto-sync, which implies remember) is enabled; otherwise any
// stored copy is removed and the config lives in memory for this session.
func (s *Store) SetConfig(cfg WebDavConfig) (WebDavConfig, error) {
	cfg = cfg.normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Remember {
		raw, err := json.Marshal(cfg)
		if err != nil {
			return WebDavConfig{}, fmt.Errorf("failed to encode webdav config: %w", err)
		}
		if err := s.db.SetValue(configKey, raw); err != nil {
			return WebDavConfig{}, fmt.Errorf("failed to persist webdav config: %w", err)
		}
	} else {
		if err := s.db.DeleteValue(configKey); err != nil {
			return WebDavConfig{}, fmt.Errorf("failed to clear webdav config: %w", err)
		}
	}

	s.cfg = cfg
	return cfg, nil
}
