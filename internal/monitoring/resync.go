package monitoring

import (
	"context"
	"fmt"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/logger"
)

// ResyncOptions selects what a resync touches.
type ResyncOptions struct {
	// DryRun reports drift without repairing it.
	DryRun bool
	// HiveID limits the walk to one hive. Empty walks all hives.
	HiveID string
}

// Drift is a hive whose stored flag disagrees with its devices.
type Drift struct {
	HiveID        string `json:"hive_id"`
	Name          string `json:"name"`
	Stored        bool   `json:"stored"`
	Actual        bool   `json:"actual"`
	ActiveDevices int64  `json:"active_devices"`
}

// Report is the outcome of a resync. Summary covers every hive, after
// repairs, regardless of HiveID.
type Report struct {
	DryRun  bool                        `json:"dry_run"`
	Total   int                         `json:"total"`
	Correct int                         `json:"correct"`
	Drifted []Drift                     `json:"drifted"`
	Summary repository.MonitoringCounts `json:"summary"`
}

// InSync reports whether every hive's flag matches its devices.
func (r *Report) InSync() bool {
	return r.Summary.Mismatched == 0
}

// Resync walks hives in one transaction, compares each stored flag with
// the device table and repairs mismatches unless DryRun is set.
func (s *Synchronizer) Resync(ctx context.Context, store *repository.Store, opts ResyncOptions) (Report, error) {
	report := Report{DryRun: opts.DryRun, Drifted: []Drift{}}
	err := store.Transaction(ctx, func(tx *repository.Store) error {
		hives, err := s.resyncTargets(ctx, tx, opts.HiveID)
		if err != nil {
			return err
		}
		report.Total = len(hives)

		for i := range hives {
			hive := &hives[i]
			if !opts.DryRun {
				// Same order as device writers: hive row, then device rows.
				if hive, err = tx.Hives().LockHive(ctx, hive.ID); err != nil {
					return err
				}
			}
			active, err := tx.Devices().CountActiveOnHive(ctx, hive.ID, "")
			if err != nil {
				return err
			}
			actual := active > 0
			if hive.HasMonitoring == actual {
				report.Correct++
				continue
			}

			report.Drifted = append(report.Drifted, Drift{
				HiveID:        hive.ID,
				Name:          hive.Name,
				Stored:        hive.HasMonitoring,
				Actual:        actual,
				ActiveDevices: active,
			})
			s.log.Warn("hive monitoring flag drifted",
				logger.String("hive_id", hive.ID),
				logger.Bool("stored", hive.HasMonitoring),
				logger.Bool("actual", actual),
				logger.Bool("dry_run", opts.DryRun))
			if opts.DryRun {
				continue
			}
			if err := tx.Hives().SetHasMonitoring(ctx, hive.ID, actual); err != nil {
				return err
			}
		}

		report.Summary, err = tx.Hives().CountMonitoringState(ctx)
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("monitoring resync failed: %w", err)
	}

	s.metrics.Drift(len(report.Drifted))
	s.log.Info("monitoring resync completed",
		logger.Int("hives", report.Total),
		logger.Int("drifted", len(report.Drifted)),
		logger.Bool("dry_run", opts.DryRun))
	return report, nil
}

func (s *Synchronizer) resyncTargets(ctx context.Context, tx *repository.Store, hiveID string) ([]entities.Hive, error) {
	if hiveID == "" {
		return tx.Hives().ListHives(ctx)
	}
	hive, err := tx.Hives().GetHive(ctx, hiveID)
	if err != nil {
		return nil, err
	}
	return []entities.Hive{*hive}, nil
}
