package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type hiveRepository struct {
	db *gorm.DB
}

// NewHiveRepository creates a new HiveRepository.
func NewHiveRepository(db *gorm.DB) HiveRepository {
	return &hiveRepository{db: db}
}

// GetHive returns ErrHiveNotFound if the hive does not exist.
func (r *hiveRepository) GetHive(ctx context.Context, id string) (*entities.Hive, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *hiveRepository) LockHive(ctx context.Context, id string) (*entities.Hive, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *hiveRepository) get(q *gorm.DB, id string) (*entities.Hive, error) {
	var hive entities.Hive
	if err := q.First(&hive, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHiveNotFound
		}
		return nil, fmt.Errorf("failed to get hive %s: %w", id, err)
	}
	return &hive, nil
}

func (r *hiveRepository) CreateHive(ctx context.Context, hive *entities.Hive) error {
	if err := r.db.WithContext(ctx).Create(hive).Error; err != nil {
		return fmt.Errorf("failed to create hive: %w", err)
	}
	return nil
}

func (r *hiveRepository) ListHives(ctx context.Context) ([]entities.Hive, error) {
	var hives []entities.Hive
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&hives).Error; err != nil {
		return nil, fmt.Errorf("failed to list hives: %w", err)
	}
	return hives, nil
}

func (r *hiveRepository) ListMonitoredHives(ctx context.Context) ([]entities.Hive, error) {
	var hives []entities.Hive
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND has_monitoring = ?", true, true).
		Order("id ASC").
		Find(&hives).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored hives: %w", err)
	}
	return hives, nil
}

// SetHasMonitoring updates the flag column alone, so a concurrent write to
// other hive columns is never clobbered.
func (r *hiveRepository) SetHasMonitoring(ctx context.Context, id string, value bool) error {
	err := r.db.WithContext(ctx).
		Model(&entities.Hive{}).
		Where("id = ?", id).
		UpdateColumn("has_monitoring", value).Error
	if err != nil {
		return fmt.Errorf("failed to set has_monitoring on hive %s: %w", id, err)
	}
	return nil
}

const activeDeviceExists = "EXISTS (SELECT 1 FROM devices WHERE devices.hive_id = hives.id AND devices.is_active = ?)"

func (r *hiveRepository) CountMonitoringState(ctx context.Context) (MonitoringCounts, error) {
	var c MonitoringCounts
	db := r.db.WithContext(ctx)
	if err := db.Model(&entities.Hive{}).Count(&c.Total).Error; err != nil {
		return c, fmt.Errorf("failed to count hives: %w", err)
	}
	if err := db.Model(&entities.Hive{}).Where("has_monitoring = ?", true).Count(&c.Flagged).Error; err != nil {
		return c, fmt.Errorf("failed to count flagged hives: %w", err)
	}
	err := db.Model(&entities.Hive{}).
		Where(activeDeviceExists, true).
		Count(&c.WithActiveDevices).Error
	if err != nil {
		return c, fmt.Errorf("failed to count hives with active devices: %w", err)
	}
	err = db.Model(&entities.Hive{}).
		Where("(has_monitoring = ? AND NOT "+activeDeviceExists+") OR (has_monitoring = ? AND "+activeDeviceExists+")",
			true, true, false, true).
		Count(&c.Mismatched).Error
	if err != nil {
		return c, fmt.Errorf("failed to count mismatched hives: %w", err)
	}
	return c, nil
}
