package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/syncwatch/internal/analytics"
	"github.com/vietddude/syncwatch/internal/budget"
	"github.com/vietddude/syncwatch/internal/core/config"
	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/core/worker"
	"github.com/vietddude/syncwatch/internal/health"
	"github.com/vietddude/syncwatch/internal/notify"
	"github.com/vietddude/syncwatch/internal/recovery"
	"github.com/vietddude/syncwatch/internal/source"
	"github.com/vietddude/syncwatch/internal/syncer"
)

const shutdownTimeout = 15 * time.Second

// App wires the governor, scheduler, analytics and HTTP surface together and
// owns their lifecycle.
type App struct {
	cfg          *config.AppConfig
	stores       *Stores
	governor     *budget.Governor
	retries      *recovery.Coordinator
	history      *analytics.History
	analytics    *analytics.Service
	scheduler    *syncer.Scheduler
	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	kafka        *notify.KafkaNotifier
	log          *slog.Logger
}

// NewApp opens storage and builds every component from cfg.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	stores, err := OpenStores(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	app, err := newApp(cfg, stores)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	return app, nil
}

func newApp(cfg *config.AppConfig, stores *Stores) (*App, error) {
	log := slog.Default()

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid analytics timezone: %w", err)
	}

	governor := budget.NewGovernor(stores.KV, cfg.RateLimit, budget.WithLogger(log))
	retries := recovery.NewCoordinator(cfg.Retry, recovery.WithCoordinatorLogger(log))
	history := analytics.NewHistory(stores.KV, log)
	svc := analytics.NewService(history, analytics.NewAggregator(loc, nil))

	src, err := source.New(cfg.Source, history, log)
	if err != nil {
		return nil, err
	}

	notifier := notify.Multi{notify.NewLogNotifier(log)}
	if cfg.Notify.Redis.Enabled && stores.Redis != nil {
		notifier = append(notifier, notify.NewRedisNotifier(stores.Redis, cfg.Notify.Redis.Channel))
	}
	var kafka *notify.KafkaNotifier
	if cfg.Notify.Kafka.Topic != "" {
		kafka = notify.NewKafkaNotifier(cfg.Notify.Kafka)
		notifier = append(notifier, kafka)
	}

	scheduler := syncer.New(cfg.Sync, syncer.Deps{
		Source:     src,
		Governor:   governor,
		Classifier: recovery.NewClassifier(log),
		Retries:    retries,
		Store:      stores.KV,
		Recorder:   history,
		Notifier:   notifier,
		Submitter:  &logSubmitter{log: log},
	}, syncer.WithLogger(log))

	scheduler.Subscribe(func(t syncer.Transition) {
		log.Debug("Sync state changed", "from", t.From, "to", t.To, "reason", t.Reason)
	})
	governor.OnChange(func(st domain.RateLimitState) {
		if st.IsLimited {
			log.Warn("Rate limited", "reset_at", st.ResetAt, "quota_used_percent", st.QuotaUsedPercent)
		}
	})

	healthMon := health.NewMonitor(governor, scheduler, stores.Pinger(), health.WithRetries(retries))

	return &App{
		cfg:          cfg,
		stores:       stores,
		governor:     governor,
		retries:      retries,
		history:      history,
		analytics:    svc,
		scheduler:    scheduler,
		pruner:       worker.NewPruner(history, cfg.Analytics.Retention, log),
		healthMon:    healthMon,
		healthServer: health.NewServer(healthMon, scheduler, svc, cfg.Server.Port, log),
		kafka:        kafka,
		log:          log,
	}, nil
}

// Run starts the periodic scheduler, the pruner and the HTTP server, and
// blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.healthServer.Start(); err != nil {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.healthServer.Stop(shutdownCtx)
	})
	g.Go(func() error {
		a.pruner.Start(ctx)
		return nil
	})

	if a.stores.DB != nil {
		a.stores.DB.StartMetricsCollector(ctx)
	}

	a.log.Info("Starting scheduler", "interval", a.cfg.Sync.Interval, "source", a.cfg.Source.Kind)
	a.scheduler.StartPeriodic(ctx, a.cfg.Sync.Interval)
	a.scheduler.Trigger(ctx)

	err := g.Wait()
	a.scheduler.StopPeriodic()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	a.scheduler.Close()
	a.retries.ClearAll()

	var errs []error
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	errs = append(errs, a.stores.Close())
	return errors.Join(errs...)
}

func (a *App) Governor() *budget.Governor { return a.governor }

func (a *App) Scheduler() *syncer.Scheduler { return a.scheduler }

func (a *App) Analytics() *analytics.Service { return a.analytics }

func (a *App) HealthServer() *health.Server { return a.healthServer }

// logSubmitter records the next wake-up. The periodic timer in the scheduler
// is the host scheduler for the daemon.
type logSubmitter struct {
	log *slog.Logger
}

func (s *logSubmitter) Submit(nextRunAt time.Time) error {
	s.log.Debug("Next sync scheduled", "at", nextRunAt)
	return nil
}
