package db

import (
	"time"
)

// SyncStatus represents the status of a sync operation.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
	SyncStatusSkipped SyncStatus = "skipped" // e.g. pull found no newer cloud data
)

// SyncOperation identifies what kind of remote operation a log row records.
type SyncOperation string

const (
	OpPush    SyncOperation = "push"
	OpPull    SyncOperation = "pull"
	OpBackup  SyncOperation = "backup"
	OpRestore SyncOperation = "restore"
	OpTest    SyncOperation = "test"
)

// SyncLog represents a log entry for one remote operation.
type SyncLog struct {
	ID        string        `json:"id"`
	Operation SyncOperation `json:"operation"`
	Status    SyncStatus    `json:"status"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}
