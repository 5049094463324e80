package worker

import (
	"context"
	"log/slog"
	"time"
)

// HistoryPruner drops snapshots older than a cutoff.
type HistoryPruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}

// Pruner enforces the follower history retention period.
type Pruner struct {
	history   HistoryPruner
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruner creates a pruner. A non-positive retention disables it.
func NewPruner(history HistoryPruner, retention time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		history:   history,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Interval is how often Start prunes: a tenth of the retention, between one
// minute and one hour.
func (p *Pruner) Interval() time.Duration {
	interval := min(p.retention/10, time.Hour)
	return max(interval, time.Minute)
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	p.PruneOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce runs a single retention pass and returns the number of
// snapshots removed.
func (p *Pruner) PruneOnce(ctx context.Context) int {
	cutoff := p.now().Add(-p.retention)
	removed, err := p.history.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Error("Failed to prune follower history", "cutoff", cutoff, "error", err)
		return removed
	}
	if removed > 0 {
		p.logger.Info("Pruned follower history", "removed", removed, "cutoff", cutoff)
	}
	return removed
}
