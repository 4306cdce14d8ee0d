// Package app wires settings into the running components shared by the
// CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apiarylabs/hivewatch/internal/alertfeed"
	"github.com/apiarylabs/hivewatch/internal/alerting"
	"github.com/apiarylabs/hivewatch/internal/conf"
	"github.com/apiarylabs/hivewatch/internal/datastore"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/devices"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/metrics"
	"github.com/apiarylabs/hivewatch/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const redisPingTimeout = 5 * time.Second

// App holds the components built from one Settings.
type App struct {
	Settings  *conf.Settings
	Log       logger.Logger
	DB        *gorm.DB
	Store     *repository.Store
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Engine    *alerting.Engine
	Retention *alerting.Retention
	Sync      *monitoring.Synchronizer
	Devices   *devices.Service

	feed       alertfeed.Publisher
	dispatcher *alertfeed.Dispatcher
	redis      *redis.Client
}

// New opens the database and the configured backends. Close releases them.
func New(ctx context.Context, settings *conf.Settings, log logger.Logger) (*App, error) {
	a := &App{Settings: settings, Log: log}
	if err := a.open(ctx); err != nil {
		if cerr := a.Close(); cerr != nil {
			log.Warn("failed to release resources after startup error", logger.Error(cerr))
		}
		return nil, err
	}
	return a, nil
}

// open fills in a. Whatever it opened before failing is left on a for
// Close.
func (a *App) open(ctx context.Context) error {
	settings := a.Settings
	db, err := datastore.Open(settings.Database)
	if err != nil {
		return err
	}
	a.DB = db

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	a.Store = repository.NewStore(a.DB)
	if ttl := settings.Alerting.ThresholdCacheTTL.Std(); ttl > 0 {
		a.Store = a.Store.WithThresholds(repository.NewCachedThresholdRepository(a.Store.Thresholds(), ttl))
	}

	locker, err := a.locker(ctx)
	if err != nil {
		return err
	}

	feed, err := alertfeed.New(settings.Feed, a.Log)
	if err != nil {
		return fmt.Errorf("failed to start alert feed: %w", err)
	}
	a.feed = feed

	opts := []alerting.Option{alerting.WithMetrics(a.Metrics), alerting.WithLocker(locker)}
	if _, off := a.feed.(alertfeed.NopPublisher); !off {
		a.dispatcher = alertfeed.NewDispatcher(a.feed, a.Metrics, a.Log)
		opts = append(opts, alerting.WithAlertHandler(a.dispatcher.Handle))
	}
	a.Engine = alerting.NewEngine(a.Store, alerting.Config{
		LookbackWindow: settings.Alerting.LookbackWindow.Std(),
		DedupWindow:    settings.Alerting.DedupWindow.Std(),
		Concurrency:    settings.Alerting.Concurrency,
		Location:       settings.Alerting.Location(),
	}, a.Log.Module("alerting"), opts...)
	a.Retention = alerting.NewRetention(a.Store.Alerts(), settings.Alerting.Retention.ResolvedDays, a.Metrics, a.Log.Module("alerting"))

	a.Sync = monitoring.NewSynchronizer(a.Metrics, a.Log)
	a.Devices = devices.NewService(a.Store, monitoring.NewRouter(a.Sync, a.Log), a.Log)
	return nil
}

func (a *App) locker(ctx context.Context) (alerting.Locker, error) {
	if a.Settings.Locking.Backend != "redis" {
		return alerting.NewMemoryLocker(), nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.Settings.Redis.Addr,
		Password: a.Settings.Redis.Password,
		DB:       a.Settings.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Settings.Redis.Addr, err)
	}
	return alerting.NewRedisLocker(a.redis, a.Settings.Locking.TTL.Std(), a.Log.Module("alerting")), nil
}

// Migrate creates or updates the schema.
func (a *App) Migrate(ctx context.Context) error {
	return datastore.Migrate(ctx, a.DB)
}

// Ping checks the database.
func (a *App) Ping(ctx context.Context) error {
	return datastore.Ping(ctx, a.DB)
}

// Close releases every backend that New opened.
func (a *App) Close() error {
	var errs []error
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.feed != nil {
		errs = append(errs, a.feed.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, datastore.Close(a.DB))
	}
	return errors.Join(errs...)
}
