package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// Timeframe selects the lookback and bucket width of a series.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// ParseTimeframe accepts day, week or month in any case.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case TimeframeDay, TimeframeWeek, TimeframeMonth:
		return tf, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q (want day, week or month)", s)
	}
}

// Lookback is the nominal width of the timeframe.
func (t Timeframe) Lookback() time.Duration {
	switch t {
	case TimeframeDay:
		return 24 * time.Hour
	case TimeframeWeek:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// BucketCount is the maximum number of points a series can hold.
func (t Timeframe) BucketCount() int {
	switch t {
	case TimeframeDay:
		return 24
	case TimeframeWeek:
		return 7
	default:
		return 30
	}
}

func (t Timeframe) hourly() bool { return t == TimeframeDay }

// since returns the earliest timestamp included in a query at now.
// Day-based timeframes step by calendar days so DST shifts don't drop a day.
func (t Timeframe) since(now time.Time) time.Time {
	switch t {
	case TimeframeDay:
		return now.Add(-24 * time.Hour)
	case TimeframeWeek:
		return now.AddDate(0, 0, -7)
	default:
		return now.AddDate(0, 0, -30)
	}
}

// bucketStart aligns ts to the start of its hour or day in loc.
func (t Timeframe) bucketStart(ts time.Time, loc *time.Location) time.Time {
	ts = ts.In(loc)
	if t.hourly() {
		return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, loc)
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
}

// offset returns the bucket start i units before now.
func (t Timeframe) offset(now time.Time, i int, loc *time.Location) time.Time {
	if t.hourly() {
		return t.bucketStart(now.Add(-time.Duration(i)*time.Hour), loc)
	}
	return t.bucketStart(now.In(loc).AddDate(0, 0, -i), loc)
}

// Label formats a bucket start for display: "3PM", "Mon" or "Jan 2".
func (t Timeframe) Label(start time.Time) string {
	switch t {
	case TimeframeDay:
		return start.Format("3PM")
	case TimeframeWeek:
		return start.Format("Mon")
	default:
		return start.Format("Jan 2")
	}
}

// Metric selects which count of a snapshot a series plots.
type Metric struct {
	Name  string
	value func(domain.FollowerSnapshot) int
}

// Of returns the selected count. The zero Metric selects followers.
func (m Metric) Of(s domain.FollowerSnapshot) int {
	if m.value == nil {
		return s.FollowersCount
	}
	return m.value(s)
}

var (
	Followers = Metric{Name: "followers", value: func(s domain.FollowerSnapshot) int { return s.FollowersCount }}
	Following = Metric{Name: "following", value: func(s domain.FollowerSnapshot) int { return s.FollowingCount }}
)

// ParseMetric accepts followers or following.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", Followers.Name:
		return Followers, nil
	case Following.Name:
		return Following, nil
	default:
		return Metric{}, fmt.Errorf("unknown metric %q (want followers or following)", s)
	}
}
