// Package monitoring keeps each hive's has_monitoring flag equal to
// "at least one active device is linked to the hive".
//
// The Synchronizer recomputes the flag from the device table. The Router
// decides, around every device write, which hives need it.
package monitoring

import (
	"context"
	"fmt"

	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/metrics"
)

// Repos is the persistence the synchronizer and router work on. A
// *repository.Store bound to a transaction satisfies it.
type Repos interface {
	Hives() repository.HiveRepository
	Devices() repository.DeviceRepository
}

// Synchronizer recomputes the derived monitoring flag.
type Synchronizer struct {
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewSynchronizer creates a Synchronizer. m may be nil.
func NewSynchronizer(m *metrics.Metrics, log logger.Logger) *Synchronizer {
	return &Synchronizer{metrics: m, log: log.Module("monitoring")}
}

// Recompute sets the hive's flag from its active devices and returns the
// new value. The flag is written only when it changes. The hive row is
// locked first, so the flag read here is current rather than a snapshot.
func (s *Synchronizer) Recompute(ctx context.Context, repos Repos, hiveID string) (bool, error) {
	hive, err := repos.Hives().LockHive(ctx, hiveID)
	if err != nil {
		return false, err
	}
	active, err := repos.Devices().CountActiveOnHive(ctx, hiveID, "")
	if err != nil {
		return hive.HasMonitoring, err
	}

	want := active > 0
	if hive.HasMonitoring == want {
		s.metrics.Recompute(false)
		return want, nil
	}
	if err := repos.Hives().SetHasMonitoring(ctx, hiveID, want); err != nil {
		return hive.HasMonitoring, err
	}
	s.metrics.Recompute(true)
	s.log.Info("hive monitoring flag updated",
		logger.String("hive_id", hiveID),
		logger.Bool("has_monitoring", want),
		logger.Int64("active_devices", active))
	return want, nil
}

// markMonitored sets the flag without counting. Linking an active device
// can only raise the count, so the result is known.
func (s *Synchronizer) markMonitored(ctx context.Context, repos Repos, hiveID string) error {
	if err := repos.Hives().SetHasMonitoring(ctx, hiveID, true); err != nil {
		return fmt.Errorf("failed to mark hive %s monitored: %w", hiveID, err)
	}
	return nil
}
