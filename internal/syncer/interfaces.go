package syncer

import (
	"context"
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// DataSource refreshes account and post state from the upstream API.
type DataSource interface {
	IsConfigured() bool
	Refresh(ctx context.Context) (*domain.RefreshResult, error)
}

// Notifier delivers a best-effort user notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// TaskSubmitter hands the next wake-up to the host's background scheduler.
type TaskSubmitter interface {
	Submit(nextRunAt time.Time) error
}

// SnapshotRecorder appends follower snapshots for refreshed accounts.
type SnapshotRecorder interface {
	RecordAccounts(ctx context.Context, accounts []domain.Account, at time.Time) error
}

// Admitter is the rate-limit governor as seen by the scheduler.
type Admitter interface {
	CanAdmit(now time.Time) bool
	RecordAdmission(now time.Time)
	ApplyServerQuota(headers map[string]string)
}

// ErrorClassifier maps refresh failures into the AppError taxonomy.
type ErrorClassifier interface {
	Classify(err error) *domain.AppError
	ShouldAutoRetry(e *domain.AppError) bool
}

// RetryScheduler re-runs a failed cycle after a delay. ManualRetry resets
// the attempt count for key before running action.
type RetryScheduler interface {
	ScheduleRetry(key string, action func()) bool
	ManualRetry(key string, action func())
	Clear(key string)
}
