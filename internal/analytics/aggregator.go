// Package analytics turns follower snapshots into bucketed series.
package analytics

import (
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// Aggregator buckets snapshot history. It holds no state besides the
// location buckets align to and its clock.
type Aggregator struct {
	loc *time.Location
	now func() time.Time
}

// NewAggregator creates an aggregator. A nil loc uses time.Local and a nil
// clock uses time.Now.
func NewAggregator(loc *time.Location, now func() time.Time) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{loc: loc, now: now}
}

// Location returns the timezone buckets align to.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Bucket groups history into the timeframe's calendar-aligned buckets. The
// latest snapshot in a bucket wins; an empty bucket repeats the previous
// bucket's value, and empty buckets before the first value are omitted.
// Points are returned oldest first.
func (a *Aggregator) Bucket(history []domain.FollowerSnapshot, tf Timeframe, metric Metric) []domain.FollowerDataPoint {
	now := a.now()
	since := tf.since(now)

	type pick struct {
		at    time.Time
		value int
	}
	latest := make(map[time.Time]pick)
	for _, s := range history {
		if s.Timestamp.Before(since) {
			continue
		}
		key := tf.bucketStart(s.Timestamp, a.loc)
		if cur, ok := latest[key]; ok && s.Timestamp.Before(cur.at) {
			continue
		}
		latest[key] = pick{at: s.Timestamp, value: metric.Of(s)}
	}
	if len(latest) == 0 {
		return []domain.FollowerDataPoint{}
	}

	// Walk back from now, then reverse so carry-forward runs chronologically.
	starts := make([]time.Time, 0, tf.BucketCount())
	for i := 0; i < tf.BucketCount(); i++ {
		start := tf.offset(now, i, a.loc)
		if n := len(starts); n > 0 && starts[n-1].Equal(start) {
			continue
		}
		starts = append(starts, start)
	}
	for i, j := 0, len(starts)-1; i < j; i, j = i+1, j-1 {
		starts[i], starts[j] = starts[j], starts[i]
	}

	points := make([]domain.FollowerDataPoint, 0, len(starts))
	var prev *int
	for _, start := range starts {
		var value int
		if p, ok := latest[start]; ok {
			value = p.value
		} else if prev != nil {
			value = *prev
		} else {
			continue
		}
		points = append(points, domain.FollowerDataPoint{
			Date:  start,
			Count: value,
			Label: tf.Label(start),
		})
		v := value
		prev = &v
	}
	return points
}

// Growth is last minus first over the bucketed series.
func (a *Aggregator) Growth(history []domain.FollowerSnapshot, tf Timeframe, metric Metric) int {
	return Growth(a.Bucket(history, tf, metric))
}

// GrowthPercent is Growth relative to the first point.
func (a *Aggregator) GrowthPercent(history []domain.FollowerSnapshot, tf Timeframe, metric Metric) float64 {
	return GrowthPercent(a.Bucket(history, tf, metric))
}

// Growth returns last-first, or 0 with fewer than two points.
func Growth(points []domain.FollowerDataPoint) int {
	if len(points) < 2 {
		return 0
	}
	return points[len(points)-1].Count - points[0].Count
}

// GrowthPercent returns growth as a percentage of the first point. It is 0
// with fewer than two points or when the first count is 0.
func GrowthPercent(points []domain.FollowerDataPoint) float64 {
	if len(points) < 2 || points[0].Count == 0 {
		return 0
	}
	return float64(Growth(points)) / float64(points[0].Count) * 100
}
