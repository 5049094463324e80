package analytics

import (
	"context"
	"fmt"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// Summary is a series plus its growth figures.
type Summary struct {
	AccountID     string                     `json:"account_id"`
	Timeframe     Timeframe                  `json:"timeframe"`
	Metric        string                     `json:"metric"`
	Points        []domain.FollowerDataPoint `json:"points"`
	Growth        int                        `json:"growth"`
	GrowthPercent float64                    `json:"growth_percent"`
}

// Service answers analytics queries from stored history.
type Service struct {
	history *History
	agg     *Aggregator
}

// NewService creates a service.
func NewService(history *History, agg *Aggregator) *Service {
	return &Service{history: history, agg: agg}
}

// History returns the backing snapshot store.
func (s *Service) History() *History {
	return s.history
}

// Series returns the bucketed series for an account.
func (s *Service) Series(ctx context.Context, accountID string, tf Timeframe, metric Metric) ([]domain.FollowerDataPoint, error) {
	snaps, err := s.history.Load(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", accountID, err)
	}
	return s.agg.Bucket(snaps, tf, metric), nil
}

// Summary returns the series with growth and growth percent.
func (s *Service) Summary(ctx context.Context, accountID string, tf Timeframe, metric Metric) (*Summary, error) {
	points, err := s.Series(ctx, accountID, tf, metric)
	if err != nil {
		return nil, err
	}
	return &Summary{
		AccountID:     accountID,
		Timeframe:     tf,
		Metric:        metric.Name,
		Points:        points,
		Growth:        Growth(points),
		GrowthPercent: GrowthPercent(points),
	}, nil
}
