package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hive is a monitored container owned by a single beekeeper.
//
// HasMonitoring caches "at least one linked device is active". It is
// maintained by the monitoring package and can always be recomputed from
// the devices table.
type Hive struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID       string    `gorm:"size:36;not null;index" json:"owner_id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	IsActive      bool      `gorm:"not null;index:idx_hives_active_monitoring,priority:1" json:"is_active"`
	HasMonitoring bool      `gorm:"not null;default:false;index:idx_hives_active_monitoring,priority:2" json:"has_monitoring"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Hive) TableName() string {
	return "hives"
}

// BeforeCreate assigns a UUID when the caller did not.
func (h *Hive) BeforeCreate(_ *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
