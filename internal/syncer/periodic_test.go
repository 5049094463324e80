package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

func TestPeriodic_RunsAndStops(t *testing.T) {
	h := newHarness(t)

	h.sched.StartPeriodic(context.Background(), 10*time.Millisecond)
	require.True(t, h.sched.IsPeriodic())

	require.Eventually(t, func() bool { return h.source.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)

	h.sched.StopPeriodic()
	assert.False(t, h.sched.IsPeriodic())

	// Allow a tick that was already being handled to finish.
	time.Sleep(30 * time.Millisecond)
	calls := h.source.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, h.source.Calls(), "no cycles after StopPeriodic")
}

func TestPeriodic_StopWithoutStartIsNoop(t *testing.T) {
	h := newHarness(t)
	h.sched.StopPeriodic()
	assert.False(t, h.sched.IsPeriodic())
}

func TestPeriodic_RearmReplacesTimer(t *testing.T) {
	h := newHarness(t)

	h.sched.StartPeriodic(context.Background(), time.Hour)
	h.sched.StartPeriodic(context.Background(), 10*time.Millisecond)

	require.Eventually(t, func() bool { return h.source.Calls() >= 1 }, 2*time.Second, 5*time.Millisecond)

	h.sched.StopPeriodic()
	assert.False(t, h.sched.IsPeriodic(), "a single stop disarms the replaced timer")
}

func TestPeriodic_ContextCancelStopsTimer(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	h.sched.StartPeriodic(ctx, 10*time.Millisecond)
	require.Eventually(t, func() bool { return h.source.Calls() >= 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	require.Eventually(t, func() bool { return !h.sched.IsPeriodic() }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	calls := h.source.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, h.source.Calls())
}

func TestPeriodic_CancelledTimerKeepsRearm(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	h.sched.StartPeriodic(ctx, time.Hour)
	h.sched.StartPeriodic(context.Background(), time.Hour)
	cancel()

	// The first timer's goroutine exits without touching the new one.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, h.sched.IsPeriodic())
}

func TestPeriodic_StopDoesNotAbortInflightCycle(t *testing.T) {
	h := newHarness(t)
	h.source.started = make(chan struct{}, 1)
	h.source.release = make(chan struct{})

	h.sched.StartPeriodic(context.Background(), 10*time.Millisecond)

	select {
	case <-h.source.started:
	case <-time.After(2 * time.Second):
		t.Fatal("periodic cycle did not start")
	}
	h.sched.StopPeriodic()
	close(h.source.release)

	require.Eventually(t, func() bool {
		return h.sched.State().Status == domain.SyncStatusSuccess
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTrigger_RunsInBackground(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	h.sched.ForceSync(ctx)
	cancel()

	require.Eventually(t, func() bool {
		return h.sched.State().Status == domain.SyncStatusSuccess
	}, 2*time.Second, 5*time.Millisecond)

	h.retries.mu.Lock()
	defer h.retries.mu.Unlock()
	assert.Equal(t, []string{DefaultRetryKey}, h.retries.manual)
}
