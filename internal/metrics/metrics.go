package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionsTotal tracks requests admitted by the rate-limit governor
	AdmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncwatch_admissions_total",
			Help: "Total number of requests admitted by the governor",
		},
	)

	// AdmissionRejectionsTotal tracks denied admission checks per reason
	AdmissionRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_admission_rejections_total",
			Help: "Total number of admission checks denied",
		},
		[]string{"reason"}, // limited, minute, hour, day
	)

	// QuotaUsedPercent tracks the daily quota consumption
	QuotaUsedPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncwatch_quota_used_percent",
			Help: "Percentage of the daily request quota used",
		},
	)

	// RateLimited is 1 while the governor holds the limited flag
	RateLimited = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncwatch_rate_limited",
			Help: "Whether the governor is currently rate limited (1) or not (0)",
		},
	)

	// ErrorsClassified tracks classified failures by kind and severity
	ErrorsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_errors_classified_total",
			Help: "Total number of failures classified",
		},
		[]string{"kind", "severity"},
	)

	// RetriesScheduled tracks automatic retries handed to the timer
	RetriesScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncwatch_retries_scheduled_total",
			Help: "Total number of automatic retries scheduled",
		},
	)

	// RetriesExhausted tracks retries dropped because the budget was spent
	RetriesExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncwatch_retries_exhausted_total",
			Help: "Total number of retries dropped after max attempts",
		},
	)

	// SyncCyclesTotal tracks completed sync cycles per outcome
	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_sync_cycles_total",
			Help: "Total number of sync cycles by outcome",
		},
		[]string{"outcome"},
	)

	// SyncDuration tracks how long a refresh takes
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "syncwatch_sync_duration_seconds",
			Help:    "Sync cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LastSyncTimestamp is the unix time of the last successful sync
	LastSyncTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncwatch_last_sync_timestamp_seconds",
			Help: "Unix time of the last successful sync",
		},
	)

	// SnapshotsRecorded tracks follower snapshots appended to history
	SnapshotsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncwatch_snapshots_recorded_total",
			Help: "Total number of follower snapshots recorded",
		},
	)

	// SnapshotsPruned tracks snapshots removed by retention
	SnapshotsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncwatch_snapshots_pruned_total",
			Help: "Total number of follower snapshots pruned",
		},
	)

	// NotificationsSent tracks notifications per channel and result
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_notifications_total",
			Help: "Total number of notifications attempted",
		},
		[]string{"channel", "result"},
	)

	// DBConnectionPoolUsage tracks database pool utilization
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncwatch_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
