package monitoring

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/logger"
)

// ErrConcurrentUpdate is returned when a device's hive link changed between
// reading it and locking it. The caller may retry the whole transaction.
var ErrConcurrentUpdate = errors.New("device was modified concurrently")

// SavePlan carries what BeforeSave learned about the persisted device to
// AfterSave. It is computed from the row as it stood before the write.
type SavePlan struct {
	// Existed is false for a device being created.
	Existed     bool
	PriorHiveID string
	PriorActive bool
	// ReleasedHiveID is the hive the device served as an active device and
	// stops serving with this write. Empty when nothing is released.
	ReleasedHiveID string
	// PriorOrphaned reports that the released hive had no other active
	// device when the plan was made.
	PriorOrphaned bool
}

// Router applies the monitoring flag consequences of device writes. Both
// hooks must run in the transaction that performs the write.
type Router struct {
	sync *Synchronizer
	log  logger.Logger
}

// NewRouter creates a Router that recomputes through sync.
func NewRouter(sync *Synchronizer, log logger.Logger) *Router {
	return &Router{sync: sync, log: log.Module("monitoring")}
}

// LockHives takes row locks on the given hives in ascending id order.
// Empty and repeated ids are skipped. Every device writer locks the hives
// it affects before it locks the device row, so two writers on the same
// hives queue instead of deadlocking.
func (r *Router) LockHives(ctx context.Context, repos Repos, hiveIDs ...string) error {
	ids := slices.DeleteFunc(slices.Clone(hiveIDs), func(id string) bool { return id == "" })
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if _, err := repos.Hives().LockHive(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// LockDevice locks the device's current hive, the extra hives, then the
// device row. It fails with ErrConcurrentUpdate when the row no longer
// matches what was read before the locks were taken.
func (r *Router) LockDevice(ctx context.Context, repos Repos, deviceID string, extraHiveIDs ...string) (*entities.Device, error) {
	seen, err := repos.Devices().GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if err := r.LockHives(ctx, repos, append([]string{seen.LinkedHive()}, extraHiveIDs...)...); err != nil {
		return nil, err
	}
	locked, err := repos.Devices().LockDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if locked.LinkedHive() != seen.LinkedHive() || locked.IsActive != seen.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrConcurrentUpdate, deviceID)
	}
	return locked, nil
}

// BeforeSave locks the hives next touches and the persisted copy of next,
// if any, and plans which hive might lose its monitoring.
func (r *Router) BeforeSave(ctx context.Context, repos Repos, next *entities.Device) (SavePlan, error) {
	var plan SavePlan
	if next.ID == "" {
		return plan, r.LockHives(ctx, repos, next.LinkedHive())
	}
	prior, err := r.LockDevice(ctx, repos, next.ID, next.LinkedHive())
	if errors.Is(err, repository.ErrDeviceNotFound) {
		return plan, r.LockHives(ctx, repos, next.LinkedHive())
	}
	if err != nil {
		return plan, err
	}

	plan.Existed = true
	plan.PriorHiveID = prior.LinkedHive()
	plan.PriorActive = prior.IsActive

	stillServes := next.Monitors() && next.LinkedHive() == plan.PriorHiveID
	if prior.Monitors() && !stillServes {
		plan.ReleasedHiveID = plan.PriorHiveID
		others, err := repos.Devices().CountActiveOnHive(ctx, plan.PriorHiveID, prior.ID)
		if err != nil {
			return plan, err
		}
		plan.PriorOrphaned = others == 0
	}
	return plan, nil
}

// AfterSave runs once device has been written.
func (r *Router) AfterSave(ctx context.Context, repos Repos, device *entities.Device, plan SavePlan) error {
	if device.Monitors() {
		if err := r.sync.markMonitored(ctx, repos, device.LinkedHive()); err != nil {
			return err
		}
	}
	if plan.ReleasedHiveID == "" {
		return nil
	}
	if plan.PriorOrphaned {
		r.log.Debug("device released the last active link of a hive",
			logger.String("device_id", device.ID),
			logger.String("hive_id", plan.ReleasedHiveID))
	}
	// Full recompute: other devices may have been linked since the plan.
	_, err := r.sync.Recompute(ctx, repos, plan.ReleasedHiveID)
	return err
}

// AfterDelete runs once deleted has been removed.
func (r *Router) AfterDelete(ctx context.Context, repos Repos, deleted *entities.Device) error {
	hiveID := deleted.LinkedHive()
	if hiveID == "" {
		return nil
	}
	_, err := r.sync.Recompute(ctx, repos, hiveID)
	return err
}
