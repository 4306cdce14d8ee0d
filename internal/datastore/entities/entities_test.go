package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAlertJSON checks that trigger values are embedded as an object and
// that keys are snake_case for the delivery layer.
func TestAlertJSON(t *testing.T) {
	t.Parallel()

	alert := Alert{
		ID:            "a1",
		HiveID:        "h1",
		AlertType:     AlertTemperature,
		Severity:      SeverityCritical,
		Message:       "Temperature too high: 44°C (maximum: 38°C)",
		TriggerValues: `{"temperature":44,"threshold_max":38}`,
		CreatedAt:     time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(alert)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{"id", "hive_id", "alert_type", "severity", "message", "trigger_values", "is_resolved", "created_at"} {
		assert.Contains(t, m, key, "JSON should contain snake_case key %q", key)
	}
	assert.NotContains(t, m, "Hive")
	assert.NotContains(t, m, "TriggerValues")

	tv, ok := m["trigger_values"].(map[string]any)
	require.True(t, ok, "trigger_values should be an object, got %T", m["trigger_values"])
	assert.InDelta(t, 44.0, tv["temperature"], 0)
	assert.Equal(t, "Temperature", m["alert_type"])
	assert.Equal(t, "Critical", m["severity"])
}

func TestAlertJSON_InvalidSnapshot(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Alert{ID: "a1", TriggerValues: "not json"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"trigger_values":{}`)
}

func TestAlertSnapshot(t *testing.T) {
	t.Parallel()

	a := &Alert{}
	snap, err := a.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap)

	a.TriggerValues = `{"battery_level":4,"threshold":20}`
	snap, err = a.Snapshot()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, snap["battery_level"], 0)

	a.TriggerValues = "{"
	_, err = a.Snapshot()
	assert.Error(t, err)
}

func TestThresholdSetScope(t *testing.T) {
	t.Parallel()

	hive := "h1"
	global := NewThresholdSet("u1", nil)
	scoped := NewThresholdSet("u1", &hive)

	require.NoError(t, global.BeforeSave(nil))
	require.NoError(t, scoped.BeforeSave(nil))

	assert.Equal(t, GlobalScope, global.Scope)
	assert.Equal(t, "h1", scoped.Scope)
	assert.NotEmpty(t, global.ID)
	assert.InDelta(t, 38.0, scoped.TemperatureMax, 0)
	assert.Equal(t, 20, scoped.BatteryWarningLevel)

	empty := ""
	assert.Equal(t, GlobalScope, ScopeFor(&empty))
}

func TestEnumValidity(t *testing.T) {
	t.Parallel()

	assert.True(t, AlertSwarmRisk.Valid())
	assert.False(t, AlertType("Flood").Valid())
	assert.True(t, SeverityMedium.Valid())
	assert.False(t, Severity("Urgent").Valid())
}

func TestDeviceHelpers(t *testing.T) {
	t.Parallel()

	d := &Device{IsActive: true}
	assert.Empty(t, d.LinkedHive())
	assert.False(t, d.Monitors())

	hive := "h1"
	d.HiveID = &hive
	assert.Equal(t, "h1", d.LinkedHive())
	assert.True(t, d.Monitors())

	d.IsActive = false
	assert.False(t, d.Monitors())
}
