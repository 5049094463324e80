// Package syncer drives periodic and on-demand sync cycles.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/infra/storage"
	"github.com/vietddude/syncwatch/internal/metrics"
	"github.com/vietddude/syncwatch/internal/recovery"
)

const (
	DefaultInterval   = 30 * time.Minute
	DefaultStaleAfter = 2 * time.Hour
	DefaultRetryKey   = "background_sync"

	notifyTimeout  = 10 * time.Second
	persistTimeout = 5 * time.Second
)

// Config holds scheduler settings.
type Config struct {
	Interval       time.Duration `yaml:"interval"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"` // 0 = no timeout
	RetryKey       string        `yaml:"retry_key"`
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.RetryKey == "" {
		c.RetryKey = DefaultRetryKey
	}
	return c
}

// Deps are the scheduler's collaborators. Source and Governor are required;
// the rest may be nil.
type Deps struct {
	Source     DataSource
	Governor   Admitter
	Classifier ErrorClassifier
	Retries    RetryScheduler
	Store      storage.KVStore
	Recorder   SnapshotRecorder
	Notifier   Notifier
	Submitter  TaskSubmitter
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler owns the sync state machine. At most one cycle runs at a time;
// every cycle ends in one of the outcome states and the next cycle starts by
// returning to idle.
type Scheduler struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	running atomic.Bool

	mu          sync.Mutex
	state       domain.SyncState
	lastSyncAt  *time.Time
	subscribers []func(Transition)

	timerMu   sync.Mutex
	stopTimer func()
	cycleCtx  context.Context

	notifyWG sync.WaitGroup
}

// New creates a scheduler and restores the last sync time from the store.
func New(cfg Config, deps Deps, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		logger:   slog.Default(),
		now:      time.Now,
		state:    domain.SyncState{Status: domain.SyncStatusIdle},
		cycleCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deps.Classifier == nil {
		s.deps.Classifier = recovery.NewClassifier(s.logger)
	}

	s.load()
	return s
}

// RunCycle runs one sync cycle on the caller's goroutine and returns the
// resulting state. A call made while another cycle is in flight is a no-op.
func (s *Scheduler) RunCycle(ctx context.Context) domain.SyncState {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("Sync already in progress")
		return s.State()
	}
	defer s.running.Store(false)

	var transitions []Transition
	defer func() { s.emit(transitions) }()

	s.mu.Lock()
	if s.state.Status.IsOutcome() {
		transitions = s.appendLocked(transitions, domain.SyncStatusIdle, nil, "new cycle")
	}
	s.mu.Unlock()

	if !s.deps.Source.IsConfigured() {
		s.logger.Info("Data source not configured, skipping sync")
		return s.finish(&transitions, domain.SyncStatusNoData, nil, "source not configured")
	}

	start := s.now()
	if !s.deps.Governor.CanAdmit(start) {
		s.logger.Info("Rate limited, skipping sync")
		return s.finish(&transitions, domain.SyncStatusRateLimited, nil, "admission denied")
	}

	s.mu.Lock()
	transitions = s.appendLocked(transitions, domain.SyncStatusSyncing, nil, "admitted")
	s.mu.Unlock()
	// Subscribers see syncing before the refresh starts.
	s.emit(transitions)
	transitions = nil

	s.deps.Governor.RecordAdmission(start)
	s.logger.Info("Starting sync")

	refreshCtx := ctx
	if s.cfg.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		refreshCtx, cancel = context.WithTimeout(ctx, s.cfg.RefreshTimeout)
		defer cancel()
	}

	result, err := s.deps.Source.Refresh(refreshCtx)
	metrics.SyncDuration.Observe(s.now().Sub(start).Seconds())

	if err != nil {
		appErr := s.deps.Classifier.Classify(err)
		st := s.finish(&transitions, domain.SyncStatusFailed, appErr, "refresh failed")
		s.handOffRetry(appErr)
		s.notify(ctx, "Sync Failed", "Failed to update account data")
		return st
	}

	if result.IsEmpty() {
		return s.finish(&transitions, domain.SyncStatusNoData, nil, "empty result")
	}

	return s.succeed(ctx, &transitions, result)
}

func (s *Scheduler) succeed(ctx context.Context, transitions *[]Transition, result *domain.RefreshResult) domain.SyncState {
	at := s.now()

	if len(result.QuotaHeaders) > 0 {
		s.deps.Governor.ApplyServerQuota(result.QuotaHeaders)
	}

	if s.deps.Recorder != nil && len(result.Accounts) > 0 {
		if err := s.deps.Recorder.RecordAccounts(ctx, result.Accounts, at); err != nil {
			s.logger.Warn("Failed to record follower snapshots", "error", err)
		}
	}

	if s.deps.Retries != nil {
		s.deps.Retries.Clear(s.cfg.RetryKey)
	}

	s.mu.Lock()
	s.lastSyncAt = &at
	*transitions = s.appendLocked(*transitions, domain.SyncStatusSuccess, nil, "refreshed")
	st := s.state
	s.mu.Unlock()

	s.persist(st, &at)
	metrics.SyncCyclesTotal.WithLabelValues(string(domain.SyncStatusSuccess)).Inc()
	metrics.LastSyncTimestamp.Set(float64(at.Unix()))
	s.submitNext(at)

	s.logger.Info("Sync completed",
		"accounts", len(result.Accounts),
		"posts", result.PostCount,
	)
	s.notify(ctx, "Sync Complete", "Your account data has been updated")
	return st
}

// finish moves to a non-success outcome.
func (s *Scheduler) finish(
	transitions *[]Transition,
	to domain.SyncStatus,
	appErr *domain.AppError,
	reason string,
) domain.SyncState {
	s.mu.Lock()
	*transitions = s.appendLocked(*transitions, to, appErr, reason)
	st := s.state
	s.mu.Unlock()

	metrics.SyncCyclesTotal.WithLabelValues(string(to)).Inc()
	s.submitNext(s.now())
	s.logger.Info("Sync finished", "status", to, "description", st.Description())
	return st
}

func (s *Scheduler) handOffRetry(appErr *domain.AppError) {
	if s.deps.Retries == nil || !s.deps.Classifier.ShouldAutoRetry(appErr) {
		return
	}
	s.deps.Retries.ScheduleRetry(s.cfg.RetryKey, func() {
		s.RunCycle(s.baseContext())
	})
}

// appendLocked applies a transition and appends it to ts. Invalid
// transitions are logged and dropped. Caller holds s.mu.
func (s *Scheduler) appendLocked(ts []Transition, to domain.SyncStatus, appErr *domain.AppError, reason string) []Transition {
	from := s.state.Status
	if !CanTransition(from, to) {
		s.logger.Error("Rejected sync transition",
			"error", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to))
		return ts
	}

	s.state = domain.SyncState{Status: to}
	if to == domain.SyncStatusFailed {
		s.state.Err = appErr
	}
	return append(ts, Transition{
		From:      from,
		To:        to,
		Err:       s.state.Err,
		Reason:    reason,
		Timestamp: s.now(),
	})
}

// emit delivers transitions to subscribers serially, outside the state lock.
func (s *Scheduler) emit(ts []Transition) {
	if len(ts) == 0 {
		return
	}

	s.mu.Lock()
	subs := make([]func(Transition), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, t := range ts {
		for _, fn := range subs {
			fn(t)
		}
	}
}

// Subscribe registers fn to receive every state transition.
func (s *Scheduler) Subscribe(fn func(Transition)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// State returns the current state.
func (s *Scheduler) State() domain.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastSyncAt returns the time of the last successful sync.
func (s *Scheduler) LastSyncAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSyncAt == nil {
		return time.Time{}, false
	}
	return *s.lastSyncAt, true
}

// IsStale reports whether data is older than StaleAfter or was never synced.
func (s *Scheduler) IsStale(now time.Time) bool {
	last, ok := s.LastSyncAt()
	if !ok {
		return true
	}
	return now.Sub(last) > s.cfg.StaleAfter
}

// Trigger runs a cycle on a new goroutine. The cycle outlives ctx's
// cancellation but keeps its values.
func (s *Scheduler) Trigger(ctx context.Context) {
	go s.RunCycle(context.WithoutCancel(ctx))
}

// ForceSync runs a cycle requested explicitly by the user. It resets the
// retry budget first, so a failing forced cycle is retried again.
func (s *Scheduler) ForceSync(ctx context.Context) {
	s.logger.Info("Force sync requested")
	if s.deps.Retries == nil {
		s.Trigger(ctx)
		return
	}
	cycleCtx := context.WithoutCancel(ctx)
	go s.deps.Retries.ManualRetry(s.cfg.RetryKey, func() {
		s.RunCycle(cycleCtx)
	})
}

// ClearSyncData forgets the last sync time and returns to idle.
func (s *Scheduler) ClearSyncData(ctx context.Context) error {
	s.mu.Lock()
	s.lastSyncAt = nil
	var ts []Transition
	if s.state.Status.IsOutcome() {
		ts = s.appendLocked(ts, domain.SyncStatusIdle, nil, "sync data cleared")
	}
	s.mu.Unlock()
	s.emit(ts)

	if s.deps.Store == nil {
		return nil
	}
	if err := s.deps.Store.Delete(ctx, storage.KeySyncData); err != nil {
		return fmt.Errorf("failed to clear sync data: %w", err)
	}
	s.logger.Info("Cleared sync data")
	return nil
}

// Close stops the periodic timer and waits for pending notifications.
func (s *Scheduler) Close() {
	s.StopPeriodic()
	s.notifyWG.Wait()
}

func (s *Scheduler) notify(ctx context.Context, title, body string) {
	if s.deps.Notifier == nil {
		return
	}

	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.deps.Notifier.Notify(nctx, title, body); err != nil {
			s.logger.Warn("Failed to send sync notification", "title", title, "error", err)
		}
	}()
}

func (s *Scheduler) submitNext(from time.Time) {
	if s.deps.Submitter == nil {
		return
	}
	next := from.Add(s.cfg.Interval)
	if err := s.deps.Submitter.Submit(next); err != nil {
		s.logger.Warn("Failed to schedule background task", "next_run_at", next, "error", err)
	}
}

func (s *Scheduler) persist(st domain.SyncState, at *time.Time) {
	if s.deps.Store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rec := domain.SyncRecord{LastSyncAt: at, Status: st.Description()}
	if err := storage.SaveJSON(ctx, s.deps.Store, storage.KeySyncData, rec); err != nil {
		s.logger.Warn("Failed to persist sync data", "error", err)
	}
}

func (s *Scheduler) load() {
	if s.deps.Store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var rec domain.SyncRecord
	found, err := storage.LoadJSON(ctx, s.deps.Store, storage.KeySyncData, &rec)
	if err != nil {
		s.logger.Warn("Failed to load sync data, starting fresh", "error", err)
		return
	}
	if found && rec.LastSyncAt != nil {
		t := *rec.LastSyncAt
		s.lastSyncAt = &t
	}
}
