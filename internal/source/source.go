// Package source provides the data sources the scheduler refreshes from.
// Only a simulated source ships today; a live graph API client would satisfy
// the same syncer.DataSource interface.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

const (
	KindMock = "mock"
	KindNone = "none"
)

// Config selects and tunes the data source.
type Config struct {
	Kind string `yaml:"kind"`
	// FailureRate is the probability in [0,1] that a mock refresh fails.
	FailureRate float64 `yaml:"failure_rate"`
	// Latency simulates a network round trip per refresh.
	Latency time.Duration `yaml:"latency"`
	// ServerQuota is the daily request budget the mock reports in headers.
	ServerQuota int   `yaml:"server_quota"`
	Seed        int64 `yaml:"seed"`
	SeedHistory bool  `yaml:"seed_history"`
}

// Seeder writes synthetic history for accounts that have none.
type Seeder interface {
	Seed(ctx context.Context, accountID string, snaps []domain.FollowerSnapshot) (bool, error)
}

// Source is what New returns: the scheduler's syncer.DataSource.
type Source interface {
	IsConfigured() bool
	Refresh(ctx context.Context) (*domain.RefreshResult, error)
}

// New builds the source named by cfg.Kind.
func New(cfg Config, seeder Seeder, logger *slog.Logger) (Source, error) {
	switch cfg.Kind {
	case "", KindNone:
		return Unconfigured{}, nil
	case KindMock:
		return NewMock(cfg, seeder, logger), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// Unconfigured is the source used before any credentials exist. The
// scheduler reports no_data without calling Refresh.
type Unconfigured struct{}

func (Unconfigured) IsConfigured() bool { return false }

func (Unconfigured) Refresh(context.Context) (*domain.RefreshResult, error) {
	return nil, &domain.AuthError{Code: domain.AuthErrorNotConfigured}
}
