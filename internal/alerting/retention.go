package alerting

import (
	"context"
	"time"

	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/metrics"
)

// Retention deletes resolved alerts once their resolution is older than
// the configured number of days. Unresolved alerts are kept forever.
type Retention struct {
	alerts  repository.AlertRepository
	days    int
	now     func() time.Time
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewRetention creates a Retention. A non-positive days disables it.
func NewRetention(alerts repository.AlertRepository, days int, m *metrics.Metrics, log logger.Logger) *Retention {
	return &Retention{alerts: alerts, days: days, now: time.Now, metrics: m, log: log}
}

// Run performs one purge and returns the number of deleted alerts.
func (r *Retention) Run(ctx context.Context) (int64, error) {
	if r.days <= 0 {
		return 0, nil
	}
	cutoff := r.now().AddDate(0, 0, -r.days)
	deleted, err := r.alerts.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	r.metrics.Purged(deleted)
	if deleted > 0 {
		r.log.Info("resolved alert cleanup completed",
			logger.Int64("deleted", deleted),
			logger.Int("retention_days", r.days))
	}
	return deleted, nil
}
