// Package health exposes sync and rate-limit status over HTTP.
package health

import (
	"time"

	"github.com/vietddude/syncwatch/internal/budget"
	"github.com/vietddude/syncwatch/internal/syncer"
)

// SystemStatus represents the overall health state of the service.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// RateLimitReport is the governor's view in the detailed report.
type RateLimitReport struct {
	budget.Status
	Level   budget.Level `json:"level"`
	Message string       `json:"message"`
}

// SyncReport is the scheduler's view in the detailed report.
type SyncReport struct {
	syncer.Info
	Message  string `json:"message"`
	Retrying bool   `json:"retrying"`
}

// Report contains the full health report.
type Report struct {
	Status    SystemStatus    `json:"status"`
	CheckedAt time.Time       `json:"checked_at"`
	RateLimit RateLimitReport `json:"rate_limit"`
	Sync      SyncReport      `json:"sync"`
	Storage   string          `json:"storage"`
}
