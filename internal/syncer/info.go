package syncer

import (
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// Info summarises sync freshness for display.
type Info struct {
	State      domain.SyncState `json:"state"`
	LastSyncAt *time.Time       `json:"last_sync_at,omitempty"`
	// HoursSinceLastSync is nil when no sync has completed.
	HoursSinceLastSync *float64  `json:"hours_since_last_sync,omitempty"`
	IsStale            bool      `json:"is_stale"`
	NextSyncAt         time.Time `json:"next_sync_at"`
}

// Message prefers the stale warning over the state description.
func (i Info) Message() string {
	if i.IsStale {
		return "Data is stale - sync recommended"
	}
	return i.State.Description()
}

// Info reports the scheduler's state relative to now.
func (s *Scheduler) Info(now time.Time) Info {
	s.mu.Lock()
	info := Info{State: s.state, NextSyncAt: now}
	if s.lastSyncAt != nil {
		last := *s.lastSyncAt
		hours := now.Sub(last).Hours()
		if hours < 0 {
			hours = -hours
		}
		info.LastSyncAt = &last
		info.HoursSinceLastSync = &hours
		info.NextSyncAt = last.Add(s.cfg.Interval)
	}
	s.mu.Unlock()

	info.IsStale = s.IsStale(now)
	return info
}
