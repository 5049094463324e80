package budget

import (
	"fmt"
	"time"
)

// Level is a coarse health grade for display.
type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// highUsagePercent is the quota level above which Status reports a warning.
const highUsagePercent = 80

// Status is a point-in-time report of the remaining allowance.
type Status struct {
	PerMinuteRemaining int        `json:"per_minute_remaining"`
	HourlyRemaining    int        `json:"hourly_remaining"`
	DailyRemaining     int        `json:"daily_remaining"`
	QuotaUsedPercent   float64    `json:"quota_used_percent"`
	IsLimited          bool       `json:"is_limited"`
	ResetAt            *time.Time `json:"reset_at,omitempty"`
}

// Message returns a one-line summary.
func (s Status) Message() string {
	if s.IsLimited {
		if s.ResetAt != nil {
			return "Rate limited until " + s.ResetAt.Local().Format(time.Kitchen)
		}
		return "Rate limited - please wait"
	}
	return fmt.Sprintf("%d requests remaining today", s.DailyRemaining)
}

// Level grades the status.
func (s Status) Level() Level {
	switch {
	case s.IsLimited:
		return LevelCritical
	case s.QuotaUsedPercent > highUsagePercent:
		return LevelWarning
	default:
		return LevelOK
	}
}

// Status reports the remaining allowance of every window at now.
func (g *Governor) Status(now time.Time) Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := Status{
		PerMinuteRemaining: max(0, g.limits.PerMinute-g.countSince(now, minuteWindow)),
		HourlyRemaining:    max(0, g.limits.Hourly-g.countSince(now, hourWindow)),
		DailyRemaining:     max(0, g.limits.Daily-g.countSince(now, dayWindow)),
		QuotaUsedPercent:   g.state.QuotaUsedPercent,
		IsLimited:          g.state.IsLimited,
	}
	if g.state.ResetAt != nil {
		t := *g.state.ResetAt
		st.ResetAt = &t
	}
	return st
}
