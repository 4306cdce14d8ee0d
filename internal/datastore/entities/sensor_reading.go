package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SensorReading is one telemetry sample. Nil metric fields were not
// reported by the device. Rows are immutable once written.
type SensorReading struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	DeviceID     string    `gorm:"size:36;not null;index:idx_readings_device_ts,priority:1" json:"device_id"`
	Temperature  *float64  `json:"temperature"`
	Humidity     *float64  `json:"humidity"`
	Weight       *float64  `json:"weight"`
	SoundLevel   *int      `json:"sound_level"`
	BatteryLevel *int      `json:"battery_level"`
	StatusCode   *int      `json:"status_code"`
	Timestamp    time.Time `gorm:"not null;index:idx_readings_device_ts,priority:2" json:"timestamp"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	Device Device `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (SensorReading) TableName() string {
	return "sensor_readings"
}

// BeforeCreate assigns a UUID when the caller did not.
func (r *SensorReading) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
