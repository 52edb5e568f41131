package dav

import (
	"sync"
	"time"
)

// Phase is the coarse sync state shown in the UI. It is advisory only and
// never drives control flow.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseWaiting Phase = "waiting" // an auto-sync countdown is running
	PhaseSyncing Phase = "syncing"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Status is a shared cell holding the latest sync phase and message.
type Status struct {
	mu         sync.RWMutex
	phase      Phase
	message    string
	lastSyncAt time.Time
}

// NewStatus creates an idle status cell.
func NewStatus() *Status {
	return &Status{phase: PhaseIdle}
}

// Snapshot returns the current phase, message and last success time.
func (s *Status) Snapshot() (Phase, string, time.Time) {
	if s == nil {
		return PhaseIdle, "", time.Time{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase, s.message, s.lastSyncAt
}

// SetWaiting marks an auto-sync countdown as pending.
func (s *Status) SetWaiting(message string) { s.set(PhaseWaiting, message, false) }

// SetSyncing marks a remote operation as in flight.
func (s *Status) SetSyncing(message string) { s.set(PhaseSyncing, message, false) }

// SetSuccess records a completed operation.
func (s *Status) SetSuccess(message string) { s.set(PhaseSuccess, message, true) }

// SetError records a failed operation.
func (s *Status) SetError(message string) { s.set(PhaseError, message, false) }

// SetIdle resets the cell, e.g. after a countdown is cancelled.
func (s *Status) SetIdle() { s.set(PhaseIdle, "", false) }

func (s *Status) set(phase Phase, message string, success bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.message = message
	if success {
		s.lastSyncAt = time.Now()
	}
}
