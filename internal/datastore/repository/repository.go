// Package repository holds the gorm-backed persistence of hives, devices,
// readings, thresholds and alerts.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
)

var (
	ErrHiveNotFound         = errors.New("hive not found")
	ErrDeviceNotFound       = errors.New("device not found")
	ErrReadingNotFound      = errors.New("sensor reading not found")
	ErrThresholdSetNotFound = errors.New("threshold set not found")
	ErrAlertNotFound        = errors.New("alert not found")
)

// HiveRepository reads hives and maintains their monitoring flag.
type HiveRepository interface {
	GetHive(ctx context.Context, id string) (*entities.Hive, error)
	// LockHive reads a hive and holds a row lock until the surrounding
	// transaction ends, where the backend supports it. Writers that change
	// which devices serve a hive take this lock before counting them.
	LockHive(ctx context.Context, id string) (*entities.Hive, error)
	CreateHive(ctx context.Context, hive *entities.Hive) error
	ListHives(ctx context.Context) ([]entities.Hive, error)
	// ListMonitoredHives returns active hives whose monitoring flag is set.
	ListMonitoredHives(ctx context.Context) ([]entities.Hive, error)
	// SetHasMonitoring writes only the has_monitoring column.
	SetHasMonitoring(ctx context.Context, id string, value bool) error
	CountMonitoringState(ctx context.Context) (MonitoringCounts, error)
}

// MonitoringCounts compares the stored flag with the device table across
// all hives. Flagged and WithActiveDevices are totals and can agree while
// individual hives have drifted in opposite directions; Mismatched counts
// the hives whose own flag disagrees with their devices.
type MonitoringCounts struct {
	Total             int64
	Flagged           int64
	WithActiveDevices int64
	Mismatched        int64
}

// DeviceRepository persists devices and answers assignment queries.
type DeviceRepository interface {
	GetDevice(ctx context.Context, id string) (*entities.Device, error)
	// LockDevice reads a device and holds a row lock until the surrounding
	// transaction ends, where the backend supports it.
	LockDevice(ctx context.Context, id string) (*entities.Device, error)
	CreateDevice(ctx context.Context, device *entities.Device) error
	SaveDevice(ctx context.Context, device *entities.Device) error
	DeleteDevice(ctx context.Context, id string) error
	// CountActiveOnHive counts active devices linked to hiveID, ignoring
	// excludeID when it is non-empty. The rows are read with a shared lock,
	// so the count reflects committed data even under repeatable read.
	CountActiveOnHive(ctx context.Context, hiveID, excludeID string) (int64, error)
	ListDevices(ctx context.Context, filter DeviceFilter) ([]entities.Device, error)
}

// DeviceFilter narrows ListDevices. Nil pointers do not filter.
type DeviceFilter struct {
	OwnerID  string
	HiveID   string
	Assigned *bool
	Active   *bool
}

// ReadingRepository reads telemetry of a hive's active devices.
type ReadingRepository interface {
	// LatestReading returns the newest reading at or after since.
	LatestReading(ctx context.Context, hiveID string, since time.Time) (*entities.SensorReading, error)
	// LatestReadingBetween returns the newest reading in [from, to).
	LatestReadingBetween(ctx context.Context, hiveID string, from, to time.Time) (*entities.SensorReading, error)
	SaveReading(ctx context.Context, reading *entities.SensorReading) error
}

// ThresholdRepository stores per-user threshold sets.
type ThresholdRepository interface {
	// GetThresholdSet returns the set for (userID, hiveID); a nil hiveID
	// selects the user's global set. No fallback is applied here.
	GetThresholdSet(ctx context.Context, userID string, hiveID *string) (*entities.ThresholdSet, error)
	SaveThresholdSet(ctx context.Context, set *entities.ThresholdSet) error
	DeleteThresholdSet(ctx context.Context, userID string, hiveID *string) error
}

// AlertRepository persists alerts.
type AlertRepository interface {
	// CreateIfNovel inserts alert unless an unresolved alert for the same
	// hive and type was created at or after since. The check and insert run
	// in one transaction holding a lock on the hive row.
	CreateIfNovel(ctx context.Context, alert *entities.Alert, since time.Time) (bool, error)
	GetAlert(ctx context.Context, id string) (*entities.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, int64, error)
	CountUnresolvedBySeverity(ctx context.Context, hiveID string) (map[entities.Severity]int64, error)
	ResolveAlert(ctx context.Context, id, resolvedBy, notes string, at time.Time) error
	ReopenAlert(ctx context.Context, id string) error
	// DeleteResolvedBefore removes resolved alerts whose resolved_at is older than before.
	DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertFilter controls alert listing queries.
type AlertFilter struct {
	HiveID    string
	AlertType entities.AlertType
	Severity  entities.Severity
	Resolved  *bool
	Limit     int
	Offset    int
}
