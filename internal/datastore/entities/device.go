package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Device is a field sensor unit. It may be linked to at most one hive,
// and only to a hive with the same owner.
type Device struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	SerialNumber string     `gorm:"size:100;not null;uniqueIndex" json:"serial_number"`
	OwnerID      string     `gorm:"size:36;not null;index" json:"owner_id"`
	HiveID       *string    `gorm:"size:36;index:idx_devices_hive_active,priority:1" json:"hive_id"`
	DeviceType   string     `gorm:"size:50;not null;default:''" json:"device_type"`
	BatteryLevel *int       `json:"battery_level"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	IsActive     bool       `gorm:"not null;index:idx_devices_hive_active,priority:2" json:"is_active"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Hive *Hive `gorm:"foreignKey:HiveID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName returns the table name for GORM.
func (Device) TableName() string {
	return "devices"
}

// BeforeCreate assigns a UUID when the caller did not.
func (d *Device) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// LinkedHive returns the hive id or "" when unassigned.
func (d *Device) LinkedHive() string {
	if d.HiveID == nil {
		return ""
	}
	return *d.HiveID
}

// Monitors reports whether the device currently provides monitoring to its hive.
func (d *Device) Monitors() bool {
	return d.IsActive && d.HiveID != nil
}
