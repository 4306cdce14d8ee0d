package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

// GetDevice returns ErrDeviceNotFound if the device does not exist.
func (r *deviceRepository) GetDevice(ctx context.Context, id string) (*entities.Device, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *deviceRepository) LockDevice(ctx context.Context, id string) (*entities.Device, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *deviceRepository) get(q *gorm.DB, id string) (*entities.Device, error) {
	var device entities.Device
	if err := q.First(&device, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device %s: %w", id, err)
	}
	return &device, nil
}

func (r *deviceRepository) CreateDevice(ctx context.Context, device *entities.Device) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(device).Error; err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// SaveDevice writes every column of an existing device.
func (r *deviceRepository) SaveDevice(ctx context.Context, device *entities.Device) error {
	if device.ID == "" {
		return fmt.Errorf("failed to save device: missing device ID")
	}
	result := r.db.WithContext(ctx).
		Model(&entities.Device{}).
		Where("id = ?", device.ID).
		Select("serial_number", "owner_id", "hive_id", "device_type", "battery_level", "last_sync_at", "is_active").
		Updates(device)
	if result.Error != nil {
		return fmt.Errorf("failed to save device %s: %w", device.ID, result.Error)
	}
	return nil
}

func (r *deviceRepository) DeleteDevice(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&entities.Device{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete device %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// CountActiveOnHive plucks ids under a shared lock rather than using
// COUNT, which PostgreSQL does not allow with FOR SHARE.
func (r *deviceRepository) CountActiveOnHive(ctx context.Context, hiveID, excludeID string) (int64, error) {
	var ids []string
	query := r.db.WithContext(ctx).
		Model(&entities.Device{}).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("hive_id = ? AND is_active = ?", hiveID, true)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to count active devices on hive %s: %w", hiveID, err)
	}
	return int64(len(ids)), nil
}

func (r *deviceRepository) ListDevices(ctx context.Context, filter DeviceFilter) ([]entities.Device, error) {
	var devices []entities.Device
	query := r.db.WithContext(ctx)

	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.HiveID != "" {
		query = query.Where("hive_id = ?", filter.HiveID)
	}
	if filter.Assigned != nil {
		if *filter.Assigned {
			query = query.Where("hive_id IS NOT NULL")
		} else {
			query = query.Where("hive_id IS NULL")
		}
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}

	if err := query.Order("serial_number ASC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}
