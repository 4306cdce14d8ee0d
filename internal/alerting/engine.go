package alerting

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Repositories is the persistence the engine reads and writes.
type Repositories interface {
	Hives() repository.HiveRepository
	Readings() repository.ReadingRepository
	Thresholds() repository.ThresholdRepository
	Alerts() repository.AlertRepository
}

// AlertHandler is called after an alert has been persisted.
type AlertHandler func(ctx context.Context, alert *entities.Alert)

// Config holds the engine's windows.
type Config struct {
	LookbackWindow time.Duration
	DedupWindow    time.Duration
	// Concurrency bounds how many hives a sweep evaluates at once.
	Concurrency int
	// Location decides the calendar day used by the weight rule.
	Location *time.Location
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records evaluation metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLocker serializes alert creation through l instead of an in-process lock.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithAlertHandler registers h to be called for every created alert.
func WithAlertHandler(h AlertHandler) Option {
	return func(e *Engine) { e.onAlert = h }
}

// Engine evaluates hives against their thresholds.
type Engine struct {
	repos   Repositories
	cfg     Config
	guard   *Guard
	locker  Locker
	onAlert AlertHandler
	metrics *metrics.Metrics
	now     func() time.Time
	log     logger.Logger
}

// NewEngine creates an Engine. Zero Config fields take the defaults.
func NewEngine(repos Repositories, cfg Config, log logger.Logger, opts ...Option) *Engine {
	if cfg.LookbackWindow <= 0 {
		cfg.LookbackWindow = DefaultLookbackWindow
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	e := &Engine{
		repos: repos,
		cfg:   cfg,
		now:   time.Now,
		log:   log,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.guard = NewGuard(repos.Alerts(), e.locker, cfg.DedupWindow)
	return e
}

// SweepResult summarizes one pass over all monitored hives.
type SweepResult struct {
	Hives         int
	Failed        int
	AlertsCreated int
	Duration      time.Duration
}

// Evaluate checks a single hive on demand. Unlike a sweep it reports
// failures to the caller.
func (e *Engine) Evaluate(ctx context.Context, hiveID string) (int, error) {
	hive, err := e.repos.Hives().GetHive(ctx, hiveID)
	if err != nil {
		return 0, err
	}
	if !hive.IsActive || !hive.HasMonitoring {
		e.metrics.Evaluation(metrics.StatusSkipped, 0)
		return 0, fmt.Errorf("hive %s: %w", hiveID, ErrHiveNotMonitored)
	}
	return e.EvaluateHive(ctx, hive)
}

// EvaluateAll runs a sweep and returns the number of alerts created.
func (e *Engine) EvaluateAll(ctx context.Context) (int, error) {
	res, err := e.Sweep(ctx)
	return res.AlertsCreated, err
}

// Sweep evaluates every active, monitored hive. A failure or panic on
// one hive is logged and counted; it never stops the others. The error
// is non-nil only when the hive list cannot be read or ctx ends.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	start := e.now()
	hives, err := e.repos.Hives().ListMonitoredHives(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list monitored hives: %w", err)
	}

	var created, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i := range hives {
		if ctx.Err() != nil {
			break
		}
		hive := &hives[i]
		g.Go(func() error {
			n, err := e.evaluateSafely(ctx, hive)
			if err != nil {
				failed.Add(1)
				e.log.Error("failed to evaluate hive",
					logger.String("hive_id", hive.ID),
					logger.Error(err))
				return nil
			}
			created.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{
		Hives:         len(hives),
		Failed:        int(failed.Load()),
		AlertsCreated: int(created.Load()),
		Duration:      e.now().Sub(start),
	}
	e.metrics.Sweep(res.Duration)
	e.log.Info("alert sweep completed",
		logger.Int("hives", res.Hives),
		logger.Int("failed", res.Failed),
		logger.Int("alerts_created", res.AlertsCreated),
		logger.Duration("duration", res.Duration))
	return res, ctx.Err()
}

// evaluateSafely turns a panic in one hive's evaluation into an error.
func (e *Engine) evaluateSafely(ctx context.Context, hive *entities.Hive) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.PanicRecovered("sweep")
			e.log.Error("panic while evaluating hive",
				logger.String("hive_id", hive.ID),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.EvaluateHive(ctx, hive)
}

// EvaluateHive checks the hive's latest reading against its thresholds
// and returns how many alerts were created. A hive without a recent
// reading or without thresholds yields zero.
func (e *Engine) EvaluateHive(ctx context.Context, hive *entities.Hive) (int, error) {
	start := e.now()
	n, err := e.evaluateHive(ctx, hive, start)
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusFailed
	}
	e.metrics.Evaluation(status, e.now().Sub(start))
	return n, err
}

func (e *Engine) evaluateHive(ctx context.Context, hive *entities.Hive, now time.Time) (int, error) {
	log := e.log.With(logger.String("hive_id", hive.ID))

	reading, err := e.repos.Readings().LatestReading(ctx, hive.ID, now.Add(-e.cfg.LookbackWindow))
	if errors.Is(err, repository.ErrReadingNotFound) {
		log.Debug("no recent reading")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	th, err := e.thresholdsFor(ctx, hive)
	if errors.Is(err, repository.ErrThresholdSetNotFound) {
		log.Debug("no thresholds configured", logger.String("owner_id", hive.OwnerID))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	breaches := []*Breach{
		CheckTemperature(reading, th),
		CheckHumidity(reading, th),
		e.checkWeight(ctx, log, hive, reading, th, now),
		CheckSound(reading, th),
		CheckBattery(reading, th),
	}

	created := 0
	for _, b := range breaches {
		if b == nil {
			continue
		}
		if e.record(ctx, log, hive.ID, b, now) {
			created++
		}
	}
	return created, nil
}

// thresholdsFor prefers the hive's own set and falls back to the owner's
// global set.
func (e *Engine) thresholdsFor(ctx context.Context, hive *entities.Hive) (*entities.ThresholdSet, error) {
	th, err := e.repos.Thresholds().GetThresholdSet(ctx, hive.OwnerID, &hive.ID)
	if !errors.Is(err, repository.ErrThresholdSetNotFound) {
		return th, err
	}
	return e.repos.Thresholds().GetThresholdSet(ctx, hive.OwnerID, nil)
}

// checkWeight loads the previous day's reading. A lookup failure only
// skips the weight rule.
func (e *Engine) checkWeight(ctx context.Context, log logger.Logger, hive *entities.Hive, current *entities.SensorReading, th *entities.ThresholdSet, now time.Time) *Breach {
	if current.Weight == nil {
		return nil
	}
	from, to := PreviousDay(now, e.cfg.Location)
	previous, err := e.repos.Readings().LatestReadingBetween(ctx, hive.ID, from, to)
	if errors.Is(err, repository.ErrReadingNotFound) {
		return nil
	}
	if err != nil {
		log.Warn("failed to load previous day reading, skipping weight check", logger.Error(err))
		return nil
	}
	return CheckWeight(current, previous, th)
}

// record persists b and reports whether an alert was created. Persistence
// failures are logged and count as not created.
func (e *Engine) record(ctx context.Context, log logger.Logger, hiveID string, b *Breach, now time.Time) bool {
	alert, created, err := e.guard.CreateIfNovel(ctx, hiveID, b, now)
	if err != nil {
		e.metrics.PersistFailure()
		log.Error("failed to persist alert",
			logger.String("alert_type", string(b.Kind)),
			logger.Error(err))
		return false
	}
	if !created {
		e.metrics.AlertSuppressed(string(b.Kind))
		log.Debug("alert suppressed by open duplicate", logger.String("alert_type", string(b.Kind)))
		return false
	}

	e.metrics.AlertCreated(string(alert.AlertType), string(alert.Severity))
	log.Info("alert created",
		logger.String("alert_id", alert.ID),
		logger.String("alert_type", string(alert.AlertType)),
		logger.String("severity", string(alert.Severity)))
	if e.onAlert != nil {
		e.onAlert(ctx, alert)
	}
	return true
}
