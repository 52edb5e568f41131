package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetValue returns the stored bytes for a key.
func (db *DB) GetValue(key string) ([]byte, error) {
	query := `SELECT value FROM kv WHERE key = ?`
	row := db.conn.QueryRow(query, key)

	var value []byte
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get value for %q: %w", key, err)
	}

	return value, nil
}

// SetValue stores bytes under a key, replacing any previous value.
func (db *DB) SetValue(key string, value []byte) error {
	query := `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := db.conn.Exec(query, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set value for %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes a key. Deleting a missing key is not an error.
func (db *DB) DeleteValue(key string) error {
	query := `DELETE FROM kv WHERE key = ?`
	if _, err := db.conn.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete value for %q: %w", key, err)
	}
	return nil
}

// CreateSyncLog creates a new sync log entry.
func (db *DB) CreateSyncLog(log *SyncLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = time.Now().UTC()

	query := `INSERT INTO sync_logs (id, operation, status, message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.conn.Exec(query, log.ID, log.Operation, log.Status, log.Message,
		log.Duration.Milliseconds(), log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

// GetRecentSyncLogs returns up to limit log entries, newest first.
func (db *DB) GetRecentSyncLogs(limit int) ([]*SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, operation, status, message, duration_ms, created_at
		FROM sync_logs ORDER BY created_at DESC LIMIT ?`
	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*SyncLog, 0, limit)
	for rows.Next() {
		log := &SyncLog{}
		var durationMs int64
		if err := rows.Scan(&log.ID, &log.Operation, &log.Status, &log.Message,
			&durationMs, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		log.Duration = time.Duration(durationMs) * time.Millisecond
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// CleanOldSyncLogs deletes log entries created before the cutoff.
func (db *DB) CleanOldSyncLogs(cutoff time.Time) (int64, error) {
	query := `DELETE FROM sync_logs WHERE created_at < ?`
	result, err := db.conn.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean sync logs: %w", err)
	}
	return result.RowsAffected()
}
