package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/syncwatch/internal/budget"
	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/syncer"
)

const cacheFor = 10 * time.Second

// StatusSource reports the rate-limit allowance.
type StatusSource interface {
	Status(now time.Time) budget.Status
}

// InfoSource reports sync freshness.
type InfoSource interface {
	Info(now time.Time) syncer.Info
}

// Pinger checks a backing store. Optional.
type Pinger interface {
	Health(ctx context.Context) error
}

// RetrySource reports whether an automatic retry is queued. Optional.
type RetrySource interface {
	IsRetrying() bool
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithRetries adds the retry coordinator's flag to the sync report.
func WithRetries(r RetrySource) MonitorOption {
	return func(m *Monitor) { m.retries = r }
}

// Monitor aggregates health status from the governor, the scheduler and the
// store.
type Monitor struct {
	governor   StatusSource
	scheduler  InfoSource
	store      Pinger
	retries    RetrySource
	now        func() time.Time
	lastCheck  time.Time
	lastReport *Report
	mu         sync.Mutex
}

// NewMonitor creates a monitor. store may be nil.
func NewMonitor(governor StatusSource, scheduler InfoSource, store Pinger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		governor:  governor,
		scheduler: scheduler,
		store:     store,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CheckHealth builds a report, reusing the previous one for ten seconds.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < cacheFor {
		return *m.lastReport
	}

	rl := m.governor.Status(now)
	info := m.scheduler.Info(now)

	report := Report{
		Status:    StatusHealthy,
		CheckedAt: now,
		RateLimit: RateLimitReport{Status: rl, Level: rl.Level(), Message: rl.Message()},
		Sync:      SyncReport{Info: info, Message: info.Message()},
		Storage:   "ok",
	}
	if m.retries != nil {
		report.Sync.Retrying = m.retries.IsRetrying()
	}

	if m.store != nil {
		if err := m.store.Health(ctx); err != nil {
			report.Storage = err.Error()
			report.Status = StatusCritical
		}
	}

	if report.Status != StatusCritical {
		if rl.Level() != budget.LevelOK || info.IsStale || info.State.Status == domain.SyncStatusFailed {
			report.Status = StatusDegraded
		}
	}

	m.lastCheck = now
	m.lastReport = &report
	return report
}
