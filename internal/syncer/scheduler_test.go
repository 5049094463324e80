package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/infra/storage"
	"github.com/vietddude/syncwatch/internal/infra/storage/memory"
	"github.com/vietddude/syncwatch/internal/recovery"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeSource struct {
	mu         sync.Mutex
	configured bool
	result     *domain.RefreshResult
	err        error
	calls      int
	started    chan struct{}
	release    chan struct{}
}

func (f *fakeSource) IsConfigured() bool { return f.configured }

func (f *fakeSource) Refresh(ctx context.Context) (*domain.RefreshResult, error) {
	f.mu.Lock()
	f.calls++
	started, release := f.started, f.release
	res, err := f.result, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return res, err
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGovernor struct {
	mu          sync.Mutex
	deny        bool
	checks      int
	admissions  []time.Time
	quotaInputs []map[string]string
}

func (g *fakeGovernor) CanAdmit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	return !g.deny
}

func (g *fakeGovernor) RecordAdmission(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.admissions = append(g.admissions, now)
}

func (g *fakeGovernor) ApplyServerQuota(headers map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quotaInputs = append(g.quotaInputs, headers)
}

type fakeRetries struct {
	mu        sync.Mutex
	scheduled []string
	manual    []string
	cleared   []string
}

func (r *fakeRetries) ManualRetry(key string, action func()) {
	r.mu.Lock()
	r.manual = append(r.manual, key)
	r.mu.Unlock()
	action()
}

func (r *fakeRetries) ScheduleRetry(key string, action func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, key)
	return true
}

func (r *fakeRetries) Clear(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, key)
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (n *fakeNotifier) Notify(ctx context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return n.err
}

type fakeRecorder struct {
	mu       sync.Mutex
	accounts []domain.Account
	at       time.Time
}

func (r *fakeRecorder) RecordAccounts(ctx context.Context, accounts []domain.Account, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, accounts...)
	r.at = at
	return nil
}

type fakeSubmitter struct {
	mu   sync.Mutex
	runs []time.Time
}

func (s *fakeSubmitter) Submit(next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, next)
	return nil
}

var base = time.Date(2025, 10, 17, 9, 0, 0, 0, time.UTC)

func okResult() *domain.RefreshResult {
	return &domain.RefreshResult{
		Accounts: []domain.Account{
			{ID: "acc-1", Username: "antar", FollowersCount: 1200, FollowingCount: 300, IsActive: true},
		},
		PostCount:    4,
		QuotaHeaders: map[string]string{"X-RateLimit-Remaining": "150"},
	}
}

type harness struct {
	sched     *Scheduler
	source    *fakeSource
	governor  *fakeGovernor
	retries   *fakeRetries
	notifier  *fakeNotifier
	recorder  *fakeRecorder
	submitter *fakeSubmitter
	store     *memory.MemoryStorage
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source:    &fakeSource{configured: true, result: okResult()},
		governor:  &fakeGovernor{},
		retries:   &fakeRetries{},
		notifier:  &fakeNotifier{},
		recorder:  &fakeRecorder{},
		submitter: &fakeSubmitter{},
		store:     memory.NewMemoryStorage(),
	}
	h.sched = New(Config{}, Deps{
		Source:    h.source,
		Governor:  h.governor,
		Retries:   h.retries,
		Store:     h.store,
		Recorder:  h.recorder,
		Notifier:  h.notifier,
		Submitter: h.submitter,
	}, WithClock(func() time.Time { return base }))
	t.Cleanup(h.sched.Close)
	return h
}

// =============================================================================
// Cycle Tests
// =============================================================================

func TestRunCycle_UnconfiguredSkipsGovernor(t *testing.T) {
	h := newHarness(t)
	h.source.configured = false

	st := h.sched.RunCycle(context.Background())

	if st.Status != domain.SyncStatusNoData {
		t.Errorf("expected no_data, got %s", st.Status)
	}
	if h.governor.checks != 0 {
		t.Errorf("expected governor not consulted, got %d checks", h.governor.checks)
	}
	if h.source.Calls() != 0 {
		t.Errorf("expected no refresh, got %d", h.source.Calls())
	}
}

func TestRunCycle_RateLimited(t *testing.T) {
	h := newHarness(t)
	h.governor.deny = true

	st := h.sched.RunCycle(context.Background())

	if st.Status != domain.SyncStatusRateLimited {
		t.Errorf("expected rate_limited, got %s", st.Status)
	}
	if h.source.Calls() != 0 {
		t.Error("refresh must not run when admission is denied")
	}
	if len(h.governor.admissions) != 0 {
		t.Error("denied cycle must not record an admission")
	}
}

func TestRunCycle_Success(t *testing.T) {
	h := newHarness(t)

	st := h.sched.RunCycle(context.Background())
	h.sched.Close()

	if st.Status != domain.SyncStatusSuccess {
		t.Fatalf("expected success, got %s", st.Status)
	}
	if last, ok := h.sched.LastSyncAt(); !ok || !last.Equal(base) {
		t.Errorf("expected lastSyncAt %v, got %v (%v)", base, last, ok)
	}
	if len(h.governor.admissions) != 1 {
		t.Errorf("expected 1 admission, got %d", len(h.governor.admissions))
	}
	if len(h.governor.quotaInputs) != 1 || h.governor.quotaInputs[0]["X-RateLimit-Remaining"] != "150" {
		t.Errorf("expected server quota applied, got %v", h.governor.quotaInputs)
	}
	if len(h.recorder.accounts) != 1 || !h.recorder.at.Equal(base) {
		t.Errorf("expected snapshot recorded at %v, got %+v", base, h.recorder)
	}
	if len(h.retries.cleared) != 1 || h.retries.cleared[0] != DefaultRetryKey {
		t.Errorf("expected retry key cleared, got %v", h.retries.cleared)
	}
	if len(h.notifier.titles) != 1 || h.notifier.titles[0] != "Sync Complete" {
		t.Errorf("expected completion notification, got %v", h.notifier.titles)
	}

	var rec domain.SyncRecord
	found, err := storage.LoadJSON(context.Background(), h.store, storage.KeySyncData, &rec)
	if err != nil || !found {
		t.Fatalf("expected persisted sync data, found=%v err=%v", found, err)
	}
	if rec.LastSyncAt == nil || !rec.LastSyncAt.Equal(base) {
		t.Errorf("persisted lastSyncAt = %v", rec.LastSyncAt)
	}
	if rec.Status != "Sync completed successfully" {
		t.Errorf("persisted status = %q", rec.Status)
	}
}

func TestRunCycle_EmptyResult(t *testing.T) {
	h := newHarness(t)
	h.source.result = &domain.RefreshResult{}

	if st := h.sched.RunCycle(context.Background()); st.Status != domain.SyncStatusNoData {
		t.Errorf("expected no_data, got %s", st.Status)
	}
	if _, ok := h.sched.LastSyncAt(); ok {
		t.Error("lastSyncAt must only be set on success")
	}
}

func TestRunCycle_Failure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      domain.ErrorKind
		wantRetry bool
	}{
		{"network retried", context.DeadlineExceeded, domain.ErrorKindNetwork, true},
		{"server error retried", &domain.HTTPStatusError{StatusCode: 503}, domain.ErrorKindAPI, true},
		{"auth surfaced", &domain.HTTPStatusError{StatusCode: 401}, domain.ErrorKindAuth, false},
		{"unknown surfaced", errors.New("boom"), domain.ErrorKindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.source.err = tt.err

			st := h.sched.RunCycle(context.Background())
			h.sched.Close()

			if st.Status != domain.SyncStatusFailed {
				t.Fatalf("expected failed, got %s", st.Status)
			}
			if st.Err == nil || st.Err.Kind != tt.kind {
				t.Fatalf("expected %s error, got %+v", tt.kind, st.Err)
			}
			if got := len(h.retries.scheduled) == 1; got != tt.wantRetry {
				t.Errorf("retry scheduled = %v, want %v", got, tt.wantRetry)
			}
			if len(h.notifier.titles) != 1 || h.notifier.titles[0] != "Sync Failed" {
				t.Errorf("expected failure notification, got %v", h.notifier.titles)
			}
			if _, ok := h.sched.LastSyncAt(); ok {
				t.Error("failed cycle must not set lastSyncAt")
			}
		})
	}
}

func TestRunCycle_NotifierFailureIgnored(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("push gateway down")

	if st := h.sched.RunCycle(context.Background()); st.Status != domain.SyncStatusSuccess {
		t.Errorf("expected success despite notifier error, got %s", st.Status)
	}
}

func TestRunCycle_ReentrantCallIsNoop(t *testing.T) {
	h := newHarness(t)
	h.source.started = make(chan struct{})
	h.source.release = make(chan struct{})

	done := make(chan domain.SyncState)
	go func() { done <- h.sched.RunCycle(context.Background()) }()

	<-h.source.started
	if st := h.sched.State(); st.Status != domain.SyncStatusSyncing {
		t.Fatalf("expected syncing, got %s", st.Status)
	}

	st := h.sched.RunCycle(context.Background())
	if st.Status != domain.SyncStatusSyncing {
		t.Errorf("re-entrant call changed state to %s", st.Status)
	}
	if h.source.Calls() != 1 {
		t.Errorf("expected 1 refresh, got %d", h.source.Calls())
	}

	close(h.source.release)
	if st := <-done; st.Status != domain.SyncStatusSuccess {
		t.Errorf("expected first cycle to succeed, got %s", st.Status)
	}
}

func TestRunCycle_OutcomeReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	h.source.configured = false

	var seen []Transition
	h.sched.Subscribe(func(tr Transition) { seen = append(seen, tr) })

	h.sched.RunCycle(context.Background())
	h.sched.RunCycle(context.Background())

	want := [][2]domain.SyncStatus{
		{domain.SyncStatusIdle, domain.SyncStatusNoData},
		{domain.SyncStatusNoData, domain.SyncStatusIdle},
		{domain.SyncStatusIdle, domain.SyncStatusNoData},
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d transitions, got %d: %+v", len(want), len(seen), seen)
	}
	for i, w := range want {
		if seen[i].From != w[0] || seen[i].To != w[1] {
			t.Errorf("transition %d = %s->%s, want %s->%s", i, seen[i].From, seen[i].To, w[0], w[1])
		}
		if !seen[i].IsValid() {
			t.Errorf("transition %d is not valid", i)
		}
	}
}

// queuedTimer holds retries until fire is called.
type queuedTimer struct {
	mu      sync.Mutex
	pending []func()
}

func (q *queuedTimer) AfterFunc(d time.Duration, f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, f)
}

func (q *queuedTimer) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *queuedTimer) fire() bool {
	q.mu.Lock()
	fns := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, f := range fns {
		f()
	}
	return len(fns) > 0
}

func (q *queuedTimer) drain() {
	for q.fire() {
	}
}

func TestRunCycle_RetriesUntilExhausted(t *testing.T) {
	timer := &queuedTimer{}
	source := &fakeSource{configured: true, err: context.DeadlineExceeded}
	coord := recovery.NewCoordinator(recovery.DefaultRetryConfig(), recovery.WithAfterFunc(timer.AfterFunc))
	sched := New(Config{}, Deps{
		Source:   source,
		Governor: &fakeGovernor{},
		Retries:  coord,
	})

	sched.RunCycle(context.Background())
	timer.drain()

	if source.Calls() != 4 {
		t.Errorf("expected 1 cycle + 3 retries, got %d refreshes", source.Calls())
	}
	if n := coord.Attempts(DefaultRetryKey); n != 3 {
		t.Errorf("expected ledger at 3, got %d", n)
	}
	if sched.State().Status != domain.SyncStatusFailed {
		t.Errorf("expected failed after exhaustion, got %s", sched.State().Status)
	}
}

func TestForceSync_ResetsExhaustedRetries(t *testing.T) {
	timer := &queuedTimer{}
	source := &fakeSource{configured: true, err: context.DeadlineExceeded}
	coord := recovery.NewCoordinator(recovery.DefaultRetryConfig(), recovery.WithAfterFunc(timer.AfterFunc))
	sched := New(Config{}, Deps{
		Source:   source,
		Governor: &fakeGovernor{},
		Retries:  coord,
	})

	sched.RunCycle(context.Background())
	timer.drain()
	require.Equal(t, 4, source.Calls())
	require.Equal(t, 3, coord.Attempts(DefaultRetryKey))

	sched.ForceSync(context.Background())

	// The forced cycle fails and queues a fresh retry.
	require.Eventually(t, func() bool {
		return timer.Len() == 1 && !sched.running.Load()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 5, source.Calls())
	assert.Equal(t, 1, coord.Attempts(DefaultRetryKey))

	timer.drain()
	assert.Equal(t, 8, source.Calls(), "forced cycle plus three more retries")
	assert.Equal(t, 3, coord.Attempts(DefaultRetryKey))
}

func TestForceSync_WithoutRetriesTriggers(t *testing.T) {
	source := &fakeSource{configured: true, result: okResult()}
	sched := New(Config{}, Deps{Source: source, Governor: &fakeGovernor{}})

	sched.ForceSync(context.Background())

	require.Eventually(t, func() bool {
		return sched.State().Status == domain.SyncStatusSuccess
	}, 2*time.Second, 5*time.Millisecond)
}

// =============================================================================
// Freshness Tests
// =============================================================================

func TestIsStale(t *testing.T) {
	h := newHarness(t)

	if !h.sched.IsStale(base) {
		t.Error("never-synced scheduler must be stale")
	}

	h.sched.RunCycle(context.Background())

	if h.sched.IsStale(base.Add(2 * time.Hour)) {
		t.Error("exactly 2h is not stale")
	}
	if !h.sched.IsStale(base.Add(2*time.Hour + time.Second)) {
		t.Error("over 2h must be stale")
	}
}

func TestLastSyncRestoredFromStore(t *testing.T) {
	h := newHarness(t)
	h.sched.RunCycle(context.Background())

	restored := New(Config{}, Deps{Source: h.source, Governor: h.governor, Store: h.store})
	last, ok := restored.LastSyncAt()
	if !ok || !last.Equal(base) {
		t.Errorf("expected restored lastSyncAt %v, got %v", base, last)
	}
	if restored.State().Status != domain.SyncStatusIdle {
		t.Errorf("expected idle on restart, got %s", restored.State().Status)
	}
}

func TestClearSyncData(t *testing.T) {
	h := newHarness(t)
	h.sched.RunCycle(context.Background())

	if err := h.sched.ClearSyncData(context.Background()); err != nil {
		t.Fatalf("ClearSyncData: %v", err)
	}
	if _, ok := h.sched.LastSyncAt(); ok {
		t.Error("expected lastSyncAt cleared")
	}
	if h.sched.State().Status != domain.SyncStatusIdle {
		t.Errorf("expected idle, got %s", h.sched.State().Status)
	}
	if _, err := h.store.Load(context.Background(), storage.KeySyncData); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected sync data deleted, got %v", err)
	}
}

func TestInfo(t *testing.T) {
	h := newHarness(t)

	info := h.sched.Info(base)
	if !info.IsStale || info.HoursSinceLastSync != nil || !info.NextSyncAt.Equal(base) {
		t.Errorf("unexpected info before first sync: %+v", info)
	}
	if info.Message() != "Data is stale - sync recommended" {
		t.Errorf("unexpected message %q", info.Message())
	}

	h.sched.RunCycle(context.Background())

	info = h.sched.Info(base.Add(90 * time.Minute))
	if info.IsStale {
		t.Error("expected fresh data")
	}
	if info.HoursSinceLastSync == nil || *info.HoursSinceLastSync != 1.5 {
		t.Errorf("expected 1.5h since last sync, got %v", info.HoursSinceLastSync)
	}
	if !info.NextSyncAt.Equal(base.Add(DefaultInterval)) {
		t.Errorf("expected next sync at %v, got %v", base.Add(DefaultInterval), info.NextSyncAt)
	}
	if info.Message() != "Sync completed successfully" {
		t.Errorf("unexpected message %q", info.Message())
	}
}

func TestSubmitterReceivesNextRun(t *testing.T) {
	h := newHarness(t)
	h.sched.RunCycle(context.Background())

	if len(h.submitter.runs) != 1 || !h.submitter.runs[0].Equal(base.Add(DefaultInterval)) {
		t.Errorf("expected next run at %v, got %v", base.Add(DefaultInterval), h.submitter.runs)
	}
}

func TestCanTransition(t *testing.T) {
	if CanTransition(domain.SyncStatusSuccess, domain.SyncStatusSyncing) {
		t.Error("outcome must return to idle before syncing")
	}
	if CanTransition(domain.SyncStatusIdle, domain.SyncStatusSuccess) {
		t.Error("success requires syncing first")
	}
	if !CanTransition(domain.SyncStatusSyncing, domain.SyncStatusFailed) {
		t.Error("syncing may fail")
	}
}
