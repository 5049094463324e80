package recovery

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/syncwatch/internal/metrics"
)

// RetryConfig holds the retry budget.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// DefaultRetryConfig returns 3 attempts spaced 2s apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
	}
}

// AfterFunc runs f once after d. It matches time.AfterFunc without the
// returned timer; scheduled retries cannot be cancelled.
type AfterFunc func(d time.Duration, f func())

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithAfterFunc replaces the timer used to delay retries.
func WithAfterFunc(fn AfterFunc) CoordinatorOption {
	return func(c *Coordinator) { c.afterFunc = fn }
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator owns the retry ledger: attempts per context key, bounded by
// MaxAttempts. The ledger lives in memory only and resets on restart.
type Coordinator struct {
	mu sync.Mutex

	cfg       RetryConfig
	afterFunc AfterFunc
	logger    *slog.Logger

	attempts map[string]int
	pending  int
}

// NewCoordinator creates a coordinator. Zero config fields take defaults.
func NewCoordinator(cfg RetryConfig, opts ...CoordinatorOption) *Coordinator {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}

	c := &Coordinator{
		cfg:      cfg,
		logger:   slog.Default(),
		attempts: make(map[string]int),
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ScheduleRetry runs action once after the configured delay, unless key has
// used up its attempts. It reports whether a retry was scheduled.
func (c *Coordinator) ScheduleRetry(key string, action func()) bool {
	c.mu.Lock()
	n := c.attempts[key]
	if n >= c.cfg.MaxAttempts {
		c.mu.Unlock()
		metrics.RetriesExhausted.Inc()
		c.logger.Warn("Max retry attempts reached", "key", key, "attempts", n)
		return false
	}
	c.attempts[key] = n + 1
	c.pending++
	c.mu.Unlock()

	metrics.RetriesScheduled.Inc()
	c.logger.Info("Scheduling retry",
		"key", key,
		"attempt", n+1,
		"max_attempts", c.cfg.MaxAttempts,
		"delay", c.cfg.Delay,
	)

	c.afterFunc(c.cfg.Delay, func() {
		defer func() {
			c.mu.Lock()
			c.pending--
			c.mu.Unlock()
		}()
		action()
	})
	return true
}

// ManualRetry clears the ledger for key and runs action immediately on the
// caller's goroutine.
func (c *Coordinator) ManualRetry(key string, action func()) {
	c.Clear(key)
	c.logger.Info("Manual retry", "key", key)
	action()
}

// Clear forgets the attempts for key.
func (c *Coordinator) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, key)
}

// ClearAll empties the ledger.
func (c *Coordinator) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = make(map[string]int)
}

// Attempts returns the ledger count for key.
func (c *Coordinator) Attempts(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[key]
}

// IsRetrying reports whether any scheduled retry has not finished running
// its action.
func (c *Coordinator) IsRetrying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}

// Config returns the effective retry budget.
func (c *Coordinator) Config() RetryConfig {
	return c.cfg
}
