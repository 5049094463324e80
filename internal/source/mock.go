package source

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/syncwatch/internal/budget"
	"github.com/vietddude/syncwatch/internal/core/domain"
)

const (
	defaultServerQuota = 200
	seedDays           = 30
	postsPerAccount    = 15
)

// Mock simulates the graph API: two accounts whose counts drift on every
// refresh, optional injected failures and rate-limit headers.
type Mock struct {
	mu       sync.Mutex
	cfg      Config
	rng      *rand.Rand
	accounts []domain.Account
	seeded   map[string]bool
	used     int
	seeder   Seeder
	logger   *slog.Logger
	now      func() time.Time
}

// NewMock creates a mock source. seeder may be nil.
func NewMock(cfg Config, seeder Seeder, logger *slog.Logger) *Mock {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServerQuota <= 0 {
		cfg.ServerQuota = defaultServerQuota
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	now := time.Now()
	return &Mock{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
		accounts: []domain.Account{
			{
				ID:             mockAccountID("travel_explorer"),
				Username:       "travel_explorer",
				DisplayName:    "Travel Explorer",
				FollowersCount: 15420,
				FollowingCount: 892,
				IsActive:       true,
				ConnectedAt:    now,
			},
			{
				ID:             mockAccountID("foodie_adventures"),
				Username:       "foodie_adventures",
				DisplayName:    "Foodie Adventures",
				FollowersCount: 8234,
				FollowingCount: 456,
				ConnectedAt:    now,
			},
		},
		seeded: make(map[string]bool),
		seeder: seeder,
		logger: logger,
		now:    time.Now,
	}
}

func (m *Mock) IsConfigured() bool { return true }

// Accounts returns a copy of the current simulated accounts.
func (m *Mock) Accounts() []domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Account(nil), m.accounts...)
}

func (m *Mock) Refresh(ctx context.Context) (*domain.RefreshResult, error) {
	if m.cfg.Latency > 0 {
		t := time.NewTimer(m.cfg.Latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.used++

	if m.cfg.FailureRate > 0 && m.rng.Float64() < m.cfg.FailureRate {
		return nil, m.failure()
	}

	for i := range m.accounts {
		acc := &m.accounts[i]
		acc.FollowersCount = max(0, acc.FollowersCount+m.between(-10, 50))
		acc.FollowingCount = max(0, acc.FollowingCount+m.between(-5, 10))
	}

	if m.cfg.SeedHistory && m.seeder != nil {
		m.seedLocked(ctx, now)
	}

	remaining := max(0, m.cfg.ServerQuota-m.used)
	reset := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	return &domain.RefreshResult{
		Accounts:  append([]domain.Account(nil), m.accounts...),
		PostCount: postsPerAccount * len(m.accounts),
		QuotaHeaders: map[string]string{
			budget.HeaderRemaining: strconv.Itoa(remaining),
			budget.HeaderReset:     strconv.FormatInt(reset.Unix(), 10),
		},
	}, nil
}

// failure picks one of the shapes a real client produces.
func (m *Mock) failure() error {
	switch m.rng.Intn(4) {
	case 0:
		return &domain.HTTPStatusError{StatusCode: 503, Body: "service unavailable"}
	case 1:
		return &domain.APIError{Code: domain.APIErrorNetwork, Message: "connection reset by peer"}
	case 2:
		return &domain.HTTPStatusError{StatusCode: 429, Body: "too many requests"}
	default:
		return &domain.APIError{Code: domain.APIErrorDecoding}
	}
}

// seedLocked writes 30 days of history ending at the current counts, walking
// backwards so the newest synthetic point is close to the live value.
func (m *Mock) seedLocked(ctx context.Context, now time.Time) {
	for _, acc := range m.accounts {
		if m.seeded[acc.ID] {
			continue
		}

		snaps := make([]domain.FollowerSnapshot, seedDays)
		followers, following := acc.FollowersCount, acc.FollowingCount
		for day := 1; day <= seedDays; day++ {
			followers = max(followers-m.between(-20, 50), acc.FollowersCount-500)
			following = max(following-m.between(-5, 10), acc.FollowingCount-100)
			snaps[seedDays-day] = domain.FollowerSnapshot{
				AccountID:      acc.ID,
				Timestamp:      now.AddDate(0, 0, -day),
				FollowersCount: followers,
				FollowingCount: following,
			}
		}

		ok, err := m.seeder.Seed(ctx, acc.ID, snaps)
		if err != nil {
			m.logger.Warn("Failed to seed follower history", "account", acc.Username, "error", err)
			continue
		}
		m.seeded[acc.ID] = true
		if ok {
			m.logger.Info("Seeded follower history", "account", acc.Username, "days", seedDays)
		}
	}
}

// mockAccountID is stable across restarts so persisted history lines up.
func mockAccountID(username string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("syncwatch/mock/"+username)).String()
}

// between returns a uniform int in [lo, hi].
func (m *Mock) between(lo, hi int) int {
	return lo + m.rng.Intn(hi-lo+1)
}
