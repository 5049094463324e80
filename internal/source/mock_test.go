package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/syncwatch/internal/budget"
	"github.com/vietddude/syncwatch/internal/core/domain"
)

type fakeSeeder struct {
	calls map[string][]domain.FollowerSnapshot
	err   error
}

func (f *fakeSeeder) Seed(_ context.Context, id string, snaps []domain.FollowerSnapshot) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.calls == nil {
		f.calls = make(map[string][]domain.FollowerSnapshot)
	}
	f.calls[id] = snaps
	return true, nil
}

var testNow = time.Date(2025, 10, 17, 9, 0, 0, 0, time.UTC)

func newTestMock(cfg Config, seeder Seeder) *Mock {
	cfg.Kind = KindMock
	if cfg.Seed == 0 {
		cfg.Seed = 7
	}
	m := NewMock(cfg, seeder, nil)
	m.now = func() time.Time { return testNow }
	return m
}

func TestMock_RefreshDriftsAccounts(t *testing.T) {
	m := newTestMock(Config{}, nil)
	before := m.Accounts()

	res, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if res.IsEmpty() {
		t.Fatal("expected a non-empty result")
	}
	if len(res.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(res.Accounts))
	}
	for i, acc := range res.Accounts {
		delta := acc.FollowersCount - before[i].FollowersCount
		if delta < -10 || delta > 50 {
			t.Errorf("%s followers drifted by %d", acc.Username, delta)
		}
		if acc.ID != before[i].ID {
			t.Errorf("account id changed for %s", acc.Username)
		}
	}
	if res.PostCount != 30 {
		t.Errorf("PostCount = %d, want 30", res.PostCount)
	}
}

func TestMock_QuotaHeaders(t *testing.T) {
	m := newTestMock(Config{ServerQuota: 3}, nil)
	wantReset := "1760745600" // 2025-10-18 00:00 UTC

	for i, want := range []string{"2", "1", "0", "0"} {
		res, err := m.Refresh(context.Background())
		if err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
		if got := res.QuotaHeaders[budget.HeaderRemaining]; got != want {
			t.Errorf("refresh %d remaining = %s, want %s", i, got, want)
		}
		if got := res.QuotaHeaders[budget.HeaderReset]; got != wantReset {
			t.Errorf("refresh %d reset = %s, want %s", i, got, wantReset)
		}
	}
}

func TestMock_IDsStableAcrossInstances(t *testing.T) {
	a := newTestMock(Config{Seed: 1}, nil).Accounts()
	b := newTestMock(Config{Seed: 2}, nil).Accounts()
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("account %d id differs: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestMock_SeedsHistoryOnce(t *testing.T) {
	seeder := &fakeSeeder{}
	m := newTestMock(Config{SeedHistory: true}, seeder)

	res, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(seeder.calls) != 2 {
		t.Fatalf("expected 2 seeded accounts, got %d", len(seeder.calls))
	}

	for _, acc := range res.Accounts {
		snaps := seeder.calls[acc.ID]
		if len(snaps) != seedDays {
			t.Fatalf("%s: expected %d snapshots, got %d", acc.Username, seedDays, len(snaps))
		}
		if !snaps[0].Timestamp.Equal(testNow.AddDate(0, 0, -seedDays)) {
			t.Errorf("%s: oldest snapshot at %v", acc.Username, snaps[0].Timestamp)
		}
		if !snaps[seedDays-1].Timestamp.Equal(testNow.AddDate(0, 0, -1)) {
			t.Errorf("%s: newest snapshot at %v", acc.Username, snaps[seedDays-1].Timestamp)
		}
		for i := 1; i < len(snaps); i++ {
			if !snaps[i-1].Timestamp.Before(snaps[i].Timestamp) {
				t.Fatalf("%s: snapshots not ascending at %d", acc.Username, i)
			}
		}
		for _, s := range snaps {
			if s.FollowersCount < acc.FollowersCount-500 {
				t.Errorf("%s: seeded followers %d below floor", acc.Username, s.FollowersCount)
			}
		}
	}

	seeder.calls = nil
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if len(seeder.calls) != 0 {
		t.Errorf("expected no reseeding, got %d calls", len(seeder.calls))
	}
}

func TestMock_SeedErrorRetriedNextRefresh(t *testing.T) {
	seeder := &fakeSeeder{err: errors.New("store down")}
	m := newTestMock(Config{SeedHistory: true}, seeder)

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("seed failure must not fail the refresh: %v", err)
	}

	seeder.err = nil
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(seeder.calls) != 2 {
		t.Errorf("expected seeding to be retried, got %d calls", len(seeder.calls))
	}
}

func TestMock_InjectedFailure(t *testing.T) {
	m := newTestMock(Config{FailureRate: 1}, nil)

	for i := 0; i < 20; i++ {
		_, err := m.Refresh(context.Background())
		if err == nil {
			t.Fatal("expected an injected failure")
		}
		var apiErr *domain.APIError
		var httpErr *domain.HTTPStatusError
		if !errors.As(err, &apiErr) && !errors.As(err, &httpErr) {
			t.Fatalf("unexpected failure type %T", err)
		}
	}
}

func TestMock_LatencyHonoursContext(t *testing.T) {
	m := newTestMock(Config{Latency: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind       string
		configured bool
		wantErr    bool
	}{
		{"", false, false},
		{KindNone, false, false},
		{KindMock, true, false},
		{"graph", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			src, err := New(Config{Kind: tt.kind, Seed: 1}, nil, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if src.IsConfigured() != tt.configured {
				t.Errorf("IsConfigured = %v, want %v", src.IsConfigured(), tt.configured)
			}
		})
	}
}

func TestUnconfigured_Refresh(t *testing.T) {
	_, err := Unconfigured{}.Refresh(context.Background())
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) || authErr.Code != domain.AuthErrorNotConfigured {
		t.Errorf("expected not_configured auth error, got %v", err)
	}
}
