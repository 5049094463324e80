package domain

import "time"

// SyncStatus is the phase of the sync state machine.
type SyncStatus string

const (
	SyncStatusIdle        SyncStatus = "idle"
	SyncStatusSyncing     SyncStatus = "syncing"
	SyncStatusSuccess     SyncStatus = "success"
	SyncStatusFailed      SyncStatus = "failed"
	SyncStatusRateLimited SyncStatus = "rate_limited"
	SyncStatusNoData      SyncStatus = "no_data"
)

// IsOutcome reports whether the status terminates a cycle.
func (s SyncStatus) IsOutcome() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusFailed, SyncStatusRateLimited, SyncStatusNoData:
		return true
	}
	return false
}

// SyncState is the single current value of the scheduler.
// Err is only set when Status is SyncStatusFailed.
type SyncState struct {
	Status SyncStatus `json:"status"`
	Err    *AppError  `json:"error,omitempty"`
}

// Description returns a human-readable message for the state.
func (s SyncState) Description() string {
	switch s.Status {
	case SyncStatusIdle:
		return "Ready to sync"
	case SyncStatusSyncing:
		return "Syncing data..."
	case SyncStatusSuccess:
		return "Sync completed successfully"
	case SyncStatusFailed:
		if s.Err != nil {
			return "Sync failed: " + s.Err.Error()
		}
		return "Sync failed"
	case SyncStatusRateLimited:
		return "Rate limited - waiting to retry"
	case SyncStatusNoData:
		return "No data to sync"
	default:
		return "Unknown state"
	}
}

// SyncRecord is the persisted last-sync metadata.
type SyncRecord struct {
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	Status     string     `json:"status"`
}
