package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlertType classifies what an alert is about.
type AlertType string

const (
	AlertTemperature   AlertType = "Temperature"
	AlertHumidity      AlertType = "Humidity"
	AlertWeight        AlertType = "Weight"
	AlertSound         AlertType = "Sound"
	AlertBattery       AlertType = "Battery"
	AlertInspectionDue AlertType = "Inspection_Due"
	AlertPestRisk      AlertType = "Pest_Risk"
	AlertSwarmRisk     AlertType = "Swarm_Risk"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTemperature, AlertHumidity, AlertWeight, AlertSound, AlertBattery,
		AlertInspectionDue, AlertPestRisk, AlertSwarmRisk:
		return true
	}
	return false
}

// Severity is the graded urgency of an alert.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Alert is a persisted alert record. TriggerValues holds the JSON snapshot
// of the reading and bounds that caused it.
type Alert struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	HiveID          string     `gorm:"size:36;not null;index:idx_alerts_dedup,priority:1" json:"hive_id"`
	AlertType       AlertType  `gorm:"size:20;not null;index:idx_alerts_dedup,priority:2" json:"alert_type"`
	Severity        Severity   `gorm:"size:10;not null;index" json:"severity"`
	Message         string     `gorm:"type:text;not null" json:"message"`
	TriggerValues   string     `gorm:"type:text" json:"-"`
	IsResolved      bool       `gorm:"not null;default:false;index:idx_alerts_dedup,priority:3" json:"is_resolved"`
	ResolvedAt      *time.Time `gorm:"index" json:"resolved_at"`
	ResolvedBy      *string    `gorm:"size:36" json:"resolved_by"`
	ResolutionNotes string     `gorm:"type:text" json:"resolution_notes"`
	CreatedAt       time.Time  `gorm:"not null;index:idx_alerts_dedup,priority:4" json:"created_at"`

	Hive Hive `gorm:"foreignKey:HiveID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}

// BeforeCreate assigns a UUID when the caller did not.
func (a *Alert) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Snapshot decodes TriggerValues. An empty column decodes to an empty map.
func (a *Alert) Snapshot() (map[string]any, error) {
	out := map[string]any{}
	if a.TriggerValues == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(a.TriggerValues), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalJSON embeds TriggerValues as a JSON object instead of a string.
func (a Alert) MarshalJSON() ([]byte, error) {
	type plain Alert
	raw := json.RawMessage("{}")
	if a.TriggerValues != "" && json.Valid([]byte(a.TriggerValues)) {
		raw = json.RawMessage(a.TriggerValues)
	}
	return json.Marshal(struct {
		plain
		TriggerValues json.RawMessage `json:"trigger_values"`
	}{plain: plain(a), TriggerValues: raw})
}
