package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GlobalScope is the Scope value of a user's fallback threshold set.
const GlobalScope = "global"

// Default threshold values applied to new threshold sets.
const (
	DefaultTemperatureMin        = 32.0
	DefaultTemperatureMax        = 38.0
	DefaultHumidityMin           = 40.0
	DefaultHumidityMax           = 70.0
	DefaultWeightChangeThreshold = 2.0
	DefaultSoundLevelThreshold   = 85
	DefaultBatteryWarningLevel   = 20
	DefaultInspectionReminder    = 7
)

// ThresholdSet holds a user's alert bounds, either for one hive or, with a
// nil HiveID, for all of the user's hives. Scope mirrors HiveID so the
// (user, hive-or-global) pair can carry a unique index on every backend.
type ThresholdSet struct {
	ID                     string    `gorm:"primaryKey;size:36" json:"id"`
	UserID                 string    `gorm:"size:36;not null;uniqueIndex:idx_thresholds_user_scope,priority:1" json:"user_id"`
	HiveID                 *string   `gorm:"size:36" json:"hive_id"`
	Scope                  string    `gorm:"size:36;not null;uniqueIndex:idx_thresholds_user_scope,priority:2" json:"-"`
	TemperatureMin         float64   `gorm:"not null" json:"temperature_min"`
	TemperatureMax         float64   `gorm:"not null" json:"temperature_max"`
	HumidityMin            float64   `gorm:"not null" json:"humidity_min"`
	HumidityMax            float64   `gorm:"not null" json:"humidity_max"`
	WeightChangeThreshold  float64   `gorm:"not null" json:"weight_change_threshold"`
	SoundLevelThreshold    int       `gorm:"not null" json:"sound_level_threshold"`
	BatteryWarningLevel    int       `gorm:"not null" json:"battery_warning_level"`
	InspectionReminderDays int       `gorm:"not null" json:"inspection_reminder_days"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Hive *Hive `gorm:"foreignKey:HiveID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (ThresholdSet) TableName() string {
	return "alert_thresholds"
}

// NewThresholdSet returns a set carrying the default bounds.
func NewThresholdSet(userID string, hiveID *string) *ThresholdSet {
	return &ThresholdSet{
		UserID:                 userID,
		HiveID:                 hiveID,
		TemperatureMin:         DefaultTemperatureMin,
		TemperatureMax:         DefaultTemperatureMax,
		HumidityMin:            DefaultHumidityMin,
		HumidityMax:            DefaultHumidityMax,
		WeightChangeThreshold:  DefaultWeightChangeThreshold,
		SoundLevelThreshold:    DefaultSoundLevelThreshold,
		BatteryWarningLevel:    DefaultBatteryWarningLevel,
		InspectionReminderDays: DefaultInspectionReminder,
	}
}

// ScopeFor returns the Scope value for a hive id, or GlobalScope for nil.
func ScopeFor(hiveID *string) string {
	if hiveID == nil || *hiveID == "" {
		return GlobalScope
	}
	return *hiveID
}

// BeforeSave keeps Scope in step with HiveID.
func (s *ThresholdSet) BeforeSave(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Scope = ScopeFor(s.HiveID)
	return nil
}
