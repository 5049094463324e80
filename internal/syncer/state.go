package syncer

import (
	"errors"
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid sync state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[domain.SyncStatus][]domain.SyncStatus{
	domain.SyncStatusIdle: {
		domain.SyncStatusSyncing,
		domain.SyncStatusNoData,
		domain.SyncStatusRateLimited,
	},
	domain.SyncStatusSyncing: {
		domain.SyncStatusSuccess,
		domain.SyncStatusFailed,
		domain.SyncStatusNoData,
	},
	domain.SyncStatusSuccess:     {domain.SyncStatusIdle},
	domain.SyncStatusFailed:      {domain.SyncStatusIdle},
	domain.SyncStatusRateLimited: {domain.SyncStatusIdle},
	domain.SyncStatusNoData:      {domain.SyncStatusIdle},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to domain.SyncStatus) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      domain.SyncStatus
	To        domain.SyncStatus
	Err       *domain.AppError
	Reason    string
	Timestamp time.Time
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}
