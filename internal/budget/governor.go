// Package budget governs admission of outbound API requests.
//
// This package contains:
//   - Governor: sliding-window admission control with server quota overrides
//   - Status: a point-in-time report of the remaining allowance
package budget

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/infra/storage"
	"github.com/vietddude/syncwatch/internal/metrics"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
	dayWindow    = 24 * time.Hour

	// DefaultDelay is returned by NextAdmissionDelay when no window is saturated.
	DefaultDelay = time.Second

	defaultPersistTimeout = 2 * time.Second
)

// Limits holds the cap of each sliding window.
type Limits struct {
	PerMinute int `yaml:"per_minute"`
	Hourly    int `yaml:"hourly"`
	Daily     int `yaml:"daily"`
}

// DefaultLimits returns the upstream API allowance.
func DefaultLimits() Limits {
	return Limits{
		PerMinute: 5,
		Hourly:    25,
		Daily:     200,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.PerMinute <= 0 {
		l.PerMinute = d.PerMinute
	}
	if l.Hourly <= 0 {
		l.Hourly = d.Hourly
	}
	if l.Daily <= 0 {
		l.Daily = d.Daily
	}
	return l
}

type window struct {
	name  string
	width time.Duration
	limit int
}

// persistedState is the blob stored under storage.KeyRateLimit.
type persistedState struct {
	RequestHistory     []time.Time `json:"request_history"`
	DailyRequestCount  int         `json:"daily_request_count"`
	HourlyRequestCount int         `json:"hourly_request_count"`
	LastRequestTime    *time.Time  `json:"last_request_time,omitempty"`
	IsRateLimited      bool        `json:"is_rate_limited"`
	RateLimitResetTime *time.Time  `json:"rate_limit_reset_time,omitempty"`
	RemainingRequests  *int        `json:"remaining_requests,omitempty"`
	QuotaUsed          float64     `json:"quota_used"`
}

// Option configures a Governor.
type Option func(*Governor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Governor) { g.logger = l }
}

// WithPersistTimeout bounds each write to the store.
func WithPersistTimeout(d time.Duration) Option {
	return func(g *Governor) { g.persistTimeout = d }
}

// WithClock sets the clock used to prune history on load.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// Governor tracks admitted request timestamps and decides whether another
// request may go out. All state is guarded by one mutex; a record and its
// persist never interleave with another record.
type Governor struct {
	mu sync.Mutex

	store          storage.KVStore
	limits         Limits
	windows        []window
	logger         *slog.Logger
	persistTimeout time.Duration
	now            func() time.Time

	history     []time.Time // ascending
	lastRequest *time.Time
	dailyCount  int
	hourlyCount int
	state       domain.RateLimitState

	observers []func(domain.RateLimitState)
}

// NewGovernor creates a governor and restores any persisted state. A nil
// store disables persistence.
func NewGovernor(store storage.KVStore, limits Limits, opts ...Option) *Governor {
	limits = limits.withDefaults()
	g := &Governor{
		store:          store,
		limits:         limits,
		logger:         slog.Default(),
		persistTimeout: defaultPersistTimeout,
		now:            time.Now,
		windows: []window{
			{name: "minute", width: minuteWindow, limit: limits.PerMinute},
			{name: "hour", width: hourWindow, limit: limits.Hourly},
			{name: "day", width: dayWindow, limit: limits.Daily},
		},
	}
	for _, opt := range opts {
		opt(g)
	}

	g.load()
	g.publishMetrics()
	return g
}

// CanAdmit reports whether a request may be sent at now. An expired limited
// flag is cleared as a side effect.
func (g *Governor) CanAdmit(now time.Time) bool {
	g.mu.Lock()

	changed := false
	if g.state.IsLimited {
		if g.state.ResetAt == nil || now.Before(*g.state.ResetAt) {
			g.mu.Unlock()
			metrics.AdmissionRejectionsTotal.WithLabelValues("limited").Inc()
			return false
		}
		g.state.IsLimited = false
		g.state.ResetAt = nil
		changed = true
		g.persistLocked()
	}

	admitted := true
	for _, w := range g.windows {
		if g.countSince(now, w.width) >= w.limit {
			metrics.AdmissionRejectionsTotal.WithLabelValues(w.name).Inc()
			admitted = false
			break
		}
	}

	snapshot := g.state.Clone()
	g.mu.Unlock()

	if changed {
		g.logger.Info("Rate limit expired", "at", now)
		g.afterChange(snapshot)
	}
	return admitted
}

// RecordAdmission appends now to the history, prunes entries older than a
// day, recomputes the quota and persists.
func (g *Governor) RecordAdmission(now time.Time) {
	g.mu.Lock()

	g.insert(now)
	t := now
	g.lastRequest = &t
	g.pruneLocked(now)
	g.recountLocked(now)
	g.persistLocked()

	snapshot := g.state.Clone()
	g.mu.Unlock()

	metrics.AdmissionsTotal.Inc()
	g.afterChange(snapshot)
}

// ApplyServerQuota folds server-reported quota headers into the state. A
// remaining count of zero or less forces the limited flag; the flag is never
// cleared here.
func (g *Governor) ApplyServerQuota(headers map[string]string) {
	remaining, resetAt, ok := parseQuotaHeaders(headers)
	if !ok {
		return
	}

	g.mu.Lock()
	if remaining != nil {
		g.state.Remaining = remaining
	}
	if resetAt != nil {
		g.state.ResetAt = resetAt
	}
	if g.state.Remaining != nil && *g.state.Remaining <= 0 {
		g.state.IsLimited = true
	}
	g.state.QuotaUsedPercent = quotaPercent(g.dailyCount, g.limits.Daily)
	g.persistLocked()

	snapshot := g.state.Clone()
	g.mu.Unlock()

	if snapshot.IsLimited {
		g.logger.Warn("Server reported quota exhausted", "reset_at", snapshot.ResetAt)
	}
	g.afterChange(snapshot)
}

// NextAdmissionDelay returns how long a caller should wait before asking
// again. The result is never negative. When windows are saturated it is the
// time until every saturated window has a free slot; when limited with a
// known reset instant it is at least the time until that instant.
func (g *Governor) NextAdmissionDelay(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	var wait time.Duration
	bounded := false

	if g.state.IsLimited && g.state.ResetAt != nil && now.Before(*g.state.ResetAt) {
		wait = g.state.ResetAt.Sub(now)
		bounded = true
	}

	for _, w := range g.windows {
		inWindow := g.since(now, w.width)
		if len(inWindow) < w.limit {
			continue
		}
		// The entry that has to age out for the count to drop below the cap.
		pivot := inWindow[len(inWindow)-w.limit]
		d := w.width - now.Sub(pivot)
		if d > wait {
			wait = d
		}
		bounded = true
	}

	if !bounded {
		return DefaultDelay
	}
	if wait < 0 {
		return 0
	}
	return wait
}

// State returns a copy of the current quota state.
func (g *Governor) State() domain.RateLimitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Clone()
}

// Reset clears the limited flag, reset instant and server remaining count.
func (g *Governor) Reset() {
	g.mu.Lock()
	g.state.IsLimited = false
	g.state.ResetAt = nil
	g.state.Remaining = nil
	g.persistLocked()
	snapshot := g.state.Clone()
	g.mu.Unlock()

	g.logger.Info("Rate limit reset")
	g.afterChange(snapshot)
}

// ClearHistory drops every recorded admission.
func (g *Governor) ClearHistory() {
	g.mu.Lock()
	g.history = nil
	g.lastRequest = nil
	g.dailyCount = 0
	g.hourlyCount = 0
	g.state.QuotaUsedPercent = 0
	g.persistLocked()
	snapshot := g.state.Clone()
	g.mu.Unlock()

	g.logger.Info("Request history cleared")
	g.afterChange(snapshot)
}

// OnChange registers fn to receive the state after every mutation. Callbacks
// run on the mutating goroutine, outside the governor's lock.
func (g *Governor) OnChange(fn func(domain.RateLimitState)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

// HistoryLen returns the number of retained admission timestamps.
func (g *Governor) HistoryLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.history)
}

// Oldest returns the oldest retained admission timestamp.
func (g *Governor) Oldest() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.history) == 0 {
		return time.Time{}, false
	}
	return g.history[0], true
}

func (g *Governor) insert(t time.Time) {
	n := len(g.history)
	if n == 0 || !t.Before(g.history[n-1]) {
		g.history = append(g.history, t)
		return
	}
	i := sort.Search(n, func(i int) bool { return g.history[i].After(t) })
	g.history = append(g.history, time.Time{})
	copy(g.history[i+1:], g.history[i:])
	g.history[i] = t
}

// since returns the suffix of history strictly after now-width.
func (g *Governor) since(now time.Time, width time.Duration) []time.Time {
	cutoff := now.Add(-width)
	i := sort.Search(len(g.history), func(i int) bool { return g.history[i].After(cutoff) })
	return g.history[i:]
}

func (g *Governor) countSince(now time.Time, width time.Duration) int {
	return len(g.since(now, width))
}

func (g *Governor) pruneLocked(now time.Time) {
	cutoff := now.Add(-dayWindow)
	i := sort.Search(len(g.history), func(i int) bool { return !g.history[i].Before(cutoff) })
	if i > 0 {
		g.history = append(g.history[:0:0], g.history[i:]...)
	}
}

func (g *Governor) recountLocked(now time.Time) {
	g.hourlyCount = g.countSince(now, hourWindow)
	g.dailyCount = g.countSince(now, dayWindow)
	g.state.QuotaUsedPercent = quotaPercent(g.dailyCount, g.limits.Daily)
}

func quotaPercent(count, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	p := float64(count) / float64(limit) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (g *Governor) afterChange(state domain.RateLimitState) {
	g.publishMetrics()

	g.mu.Lock()
	observers := make([]func(domain.RateLimitState), len(g.observers))
	copy(observers, g.observers)
	g.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func (g *Governor) publishMetrics() {
	st := g.State()
	metrics.QuotaUsedPercent.Set(st.QuotaUsedPercent)
	if st.IsLimited {
		metrics.RateLimited.Set(1)
	} else {
		metrics.RateLimited.Set(0)
	}
}

func (g *Governor) load() {
	if g.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.persistTimeout)
	defer cancel()

	var ps persistedState
	found, err := storage.LoadJSON(ctx, g.store, storage.KeyRateLimit, &ps)
	if err != nil {
		g.logger.Warn("Failed to load rate limit state, starting empty", "error", err)
		return
	}
	if !found {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, t := range ps.RequestHistory {
		g.insert(t)
	}
	g.lastRequest = ps.LastRequestTime
	g.state = domain.RateLimitState{
		IsLimited:        ps.IsRateLimited,
		ResetAt:          ps.RateLimitResetTime,
		Remaining:        ps.RemainingRequests,
		QuotaUsedPercent: ps.QuotaUsed,
	}

	now := g.now()
	g.pruneLocked(now)
	g.recountLocked(now)

	g.logger.Debug("Restored rate limit state",
		"requests", len(g.history),
		"limited", g.state.IsLimited,
		"quota_used", g.state.QuotaUsedPercent,
	)
}

// persistLocked writes the current state. Failures are logged and dropped.
func (g *Governor) persistLocked() {
	if g.store == nil {
		return
	}

	ps := persistedState{
		RequestHistory:     append([]time.Time(nil), g.history...),
		DailyRequestCount:  g.dailyCount,
		HourlyRequestCount: g.hourlyCount,
		LastRequestTime:    g.lastRequest,
		IsRateLimited:      g.state.IsLimited,
		RateLimitResetTime: g.state.ResetAt,
		RemainingRequests:  g.state.Remaining,
		QuotaUsed:          g.state.QuotaUsedPercent,
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.persistTimeout)
	defer cancel()
	if err := storage.SaveJSON(ctx, g.store, storage.KeyRateLimit, ps); err != nil {
		g.logger.Warn("Failed to persist rate limit state", "error", err)
	}
}
