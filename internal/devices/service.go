// Package devices is the write path for monitoring devices. Every change
// to a device's hive link or active status goes through the monitoring
// router inside the same transaction as the write.
package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/monitoring"
)

var (
	ErrInvalidDevice  = errors.New("invalid device")
	ErrOwnerMismatch  = errors.New("device can only be linked to a hive of the same owner")
	ErrOwnerImmutable = errors.New("device owner cannot be changed")
	ErrHiveNotFound   = repository.ErrHiveNotFound
	ErrDeviceNotFound = repository.ErrDeviceNotFound
)

// Service creates, updates and deletes devices.
type Service struct {
	store  *repository.Store
	router *monitoring.Router
	log    logger.Logger
}

// NewService creates a Service on store.
func NewService(store *repository.Store, router *monitoring.Router, log logger.Logger) *Service {
	return &Service{store: store, router: router, log: log.Module("devices")}
}

// Create stores a new device. A device may be created already linked to a
// hive of its owner.
func (s *Service) Create(ctx context.Context, device *entities.Device) error {
	if device.ID != "" {
		if _, err := s.store.Devices().GetDevice(ctx, device.ID); err == nil {
			return fmt.Errorf("%w: device %s already exists", ErrInvalidDevice, device.ID)
		}
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		return s.write(ctx, tx, device)
	})
	if err != nil {
		return err
	}
	s.log.Info("device created",
		logger.String("device_id", device.ID),
		logger.String("serial_number", device.SerialNumber),
		logger.String("hive_id", device.LinkedHive()))
	return nil
}

// Update replaces every stored field of an existing device.
func (s *Service) Update(ctx context.Context, device *entities.Device) error {
	updated, err := s.modify(ctx, device.ID, func(current *entities.Device) error {
		if current.OwnerID != device.OwnerID {
			return ErrOwnerImmutable
		}
		createdAt := current.CreatedAt
		*current = *device
		current.CreatedAt = createdAt
		current.Hive = nil
		return nil
	})
	if err != nil {
		return err
	}
	*device = *updated
	return nil
}

// Assign links the device to hiveID, or unlinks it when hiveID is nil.
func (s *Service) Assign(ctx context.Context, deviceID string, hiveID *string) (*entities.Device, error) {
	device, err := s.modify(ctx, deviceID, func(current *entities.Device) error {
		if hiveID != nil && *hiveID == "" {
			hiveID = nil
		}
		current.HiveID = hiveID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("device assignment changed",
		logger.String("device_id", device.ID),
		logger.String("hive_id", device.LinkedHive()))
	return device, nil
}

// SetActive activates or deactivates the device in place.
func (s *Service) SetActive(ctx context.Context, deviceID string, active bool) (*entities.Device, error) {
	device, err := s.modify(ctx, deviceID, func(current *entities.Device) error {
		current.IsActive = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("device active status changed",
		logger.String("device_id", device.ID),
		logger.Bool("is_active", active))
	return device, nil
}

// Delete removes the device. Its hive, if any, is recomputed.
func (s *Service) Delete(ctx context.Context, deviceID string) error {
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		device, err := s.router.LockDevice(ctx, tx, deviceID)
		if err != nil {
			return err
		}
		if err := tx.Devices().DeleteDevice(ctx, deviceID); err != nil {
			return err
		}
		return s.router.AfterDelete(ctx, tx, device)
	})
	if err != nil {
		return err
	}
	s.log.Info("device deleted", logger.String("device_id", deviceID))
	return nil
}

// modify loads the device, applies change and writes the result in one
// transaction. change runs twice: on an unlocked copy to learn the target
// hive, then on the locked row that is written.
func (s *Service) modify(ctx context.Context, deviceID string, change func(*entities.Device) error) (*entities.Device, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: missing device ID", ErrInvalidDevice)
	}
	var device *entities.Device
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		preview, err := tx.Devices().GetDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		if err := change(preview); err != nil {
			return err
		}
		current, err := s.router.LockDevice(ctx, tx, deviceID, preview.LinkedHive())
		if err != nil {
			return err
		}
		if err := change(current); err != nil {
			return err
		}
		current.ID = deviceID
		if err := s.write(ctx, tx, current); err != nil {
			return err
		}
		device = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// write validates device and persists it between the router hooks.
func (s *Service) write(ctx context.Context, tx *repository.Store, device *entities.Device) error {
	if err := validate(ctx, tx, device); err != nil {
		return err
	}
	plan, err := s.router.BeforeSave(ctx, tx, device)
	if err != nil {
		return err
	}
	if plan.Existed {
		err = tx.Devices().SaveDevice(ctx, device)
	} else {
		err = tx.Devices().CreateDevice(ctx, device)
	}
	if err != nil {
		return err
	}
	return s.router.AfterSave(ctx, tx, device, plan)
}

func validate(ctx context.Context, tx *repository.Store, device *entities.Device) error {
	if strings.TrimSpace(device.SerialNumber) == "" {
		return fmt.Errorf("%w: serial number is required", ErrInvalidDevice)
	}
	if device.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidDevice)
	}
	hiveID := device.LinkedHive()
	if hiveID == "" {
		device.HiveID = nil
		return nil
	}
	hive, err := tx.Hives().GetHive(ctx, hiveID)
	if err != nil {
		return err
	}
	if hive.OwnerID != device.OwnerID {
		return fmt.Errorf("%w: hive %s", ErrOwnerMismatch, hiveID)
	}
	return nil
}

// Get returns ErrDeviceNotFound if the device does not exist.
func (s *Service) Get(ctx context.Context, deviceID string) (*entities.Device, error) {
	return s.store.Devices().GetDevice(ctx, deviceID)
}

// ListForOwner returns all devices of ownerID.
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]entities.Device, error) {
	return s.store.Devices().ListDevices(ctx, repository.DeviceFilter{OwnerID: ownerID})
}

// ListActiveForOwner returns the active devices of ownerID.
func (s *Service) ListActiveForOwner(ctx context.Context, ownerID string) ([]entities.Device, error) {
	active := true
	return s.store.Devices().ListDevices(ctx, repository.DeviceFilter{OwnerID: ownerID, Active: &active})
}

// ListUnassigned returns the devices of ownerID not linked to any hive.
func (s *Service) ListUnassigned(ctx context.Context, ownerID string) ([]entities.Device, error) {
	assigned := false
	return s.store.Devices().ListDevices(ctx, repository.DeviceFilter{OwnerID: ownerID, Assigned: &assigned})
}

// ListAssigned returns the devices of ownerID linked to a hive.
func (s *Service) ListAssigned(ctx context.Context, ownerID string) ([]entities.Device, error) {
	assigned := true
	return s.store.Devices().ListDevices(ctx, repository.DeviceFilter{OwnerID: ownerID, Assigned: &assigned})
}
