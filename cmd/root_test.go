package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apiarylabs/hivewatch/internal/app"
	"github.com/apiarylabs/hivewatch/internal/conf"
	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

// writeTestConfig points a config file at a fresh SQLite database.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hivewatch.yaml")
	body := "database:\n  dsn: " + filepath.Join(dir, "cli.db") + "\nserver:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := RootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", configPath, "--log-level", "error"}, args...))
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

// withTestApp opens the same database the commands use, for seeding and
// inspection between command runs.
func withTestApp(t *testing.T, configPath string, fn func(ctx context.Context, a *app.App)) {
	t.Helper()
	settings, err := conf.Load(configPath)
	require.NoError(t, err)
	a, err := app.New(t.Context(), settings, logger.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()
	fn(t.Context(), a)
}

func TestMigrateAndCheckAlerts(t *testing.T) {
	t.Parallel()
	cfg := writeTestConfig(t)

	out, err := run(t, cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date (sqlite)")

	var hiveID, idleID string
	withTestApp(t, cfg, func(ctx context.Context, a *app.App) {
		hive := &entities.Hive{OwnerID: "u1", Name: "Linden", IsActive: true}
		idle := &entities.Hive{OwnerID: "u1", Name: "Spare", IsActive: true}
		require.NoError(t, a.Store.Hives().CreateHive(ctx, hive))
		require.NoError(t, a.Store.Hives().CreateHive(ctx, idle))
		hiveID, idleID = hive.ID, idle.ID

		device := &entities.Device{SerialNumber: "SN-1", OwnerID: "u1", HiveID: &hive.ID, IsActive: true}
		require.NoError(t, a.Devices.Create(ctx, device))
		require.NoError(t, a.Store.Thresholds().SaveThresholdSet(ctx, entities.NewThresholdSet("u1", nil)))
		require.NoError(t, a.Store.Readings().SaveReading(ctx, &entities.SensorReading{
			DeviceID:    device.ID,
			Temperature: ptr(44.0),
			Timestamp:   time.Now().Add(-time.Minute),
		}))
	})

	out, err = run(t, cfg, "check-alerts")
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 1 hives (0 failed). Created 1 alerts")

	out, err = run(t, cfg, "check-alerts", "--hive-id", hiveID)
	require.NoError(t, err)
	assert.Contains(t, out, "Created 0 alerts for hive "+hiveID, "open alert suppresses the repeat")

	out, err = run(t, cfg, "check-alerts", "--hive-id", idleID)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to check")

	_, err = run(t, cfg, "check-alerts", "--hive-id", "missing")
	require.Error(t, err)

	out, err = run(t, cfg, "alerts", "list", "--unresolved")
	require.NoError(t, err)
	assert.Contains(t, out, "Temperature too high: 44°C (maximum: 38°C)")
	assert.Contains(t, out, "Showing 1 of 1 alert(s)")

	out, err = run(t, cfg, "alerts", "summary", "--hive-id", hiveID)
	require.NoError(t, err)
	assert.Contains(t, out, "Critical: 1")
	assert.Contains(t, out, "Unresolved alerts: 1")

	_, err = run(t, cfg, "alerts", "list", "--severity", "Urgent")
	require.ErrorContains(t, err, "unknown severity")
}

func TestAlertsResolveAndCleanup(t *testing.T) {
	t.Parallel()
	cfg := writeTestConfig(t)
	_, err := run(t, cfg, "migrate")
	require.NoError(t, err)

	var alertID string
	withTestApp(t, cfg, func(ctx context.Context, a *app.App) {
		hive := &entities.Hive{OwnerID: "u1", Name: "Linden", IsActive: true}
		require.NoError(t, a.Store.Hives().CreateHive(ctx, hive))
		alert := &entities.Alert{
			HiveID:    hive.ID,
			AlertType: entities.AlertBattery,
			Severity:  entities.SeverityMedium,
			Message:   "Low battery level: 20% (warning level: 20%)",
		}
		created, err := a.Store.Alerts().CreateIfNovel(ctx, alert, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.True(t, created)
		alertID = alert.ID
	})

	out, err := run(t, cfg, "alerts", "resolve", alertID, "--by", "u1", "--notes", "replaced battery")
	require.NoError(t, err)
	assert.Contains(t, out, "Alert "+alertID+" resolved")

	_, err = run(t, cfg, "alerts", "resolve", "missing")
	require.Error(t, err)

	out, err = run(t, cfg, "cleanup-alerts")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 resolved alert(s)", "a fresh resolution is kept")

	out, err = run(t, cfg, "alerts", "reopen", alertID)
	require.NoError(t, err)
	assert.Contains(t, out, "reopened")

	withTestApp(t, cfg, func(ctx context.Context, a *app.App) {
		got, err := a.Store.Alerts().GetAlert(ctx, alertID)
		require.NoError(t, err)
		assert.False(t, got.IsResolved)
		assert.Nil(t, got.ResolvedAt)
	})
}

func TestDevicesAndSyncMonitoring(t *testing.T) {
	t.Parallel()
	cfg := writeTestConfig(t)
	_, err := run(t, cfg, "migrate")
	require.NoError(t, err)

	var hiveA, hiveB, deviceID string
	withTestApp(t, cfg, func(ctx context.Context, a *app.App) {
		ha := &entities.Hive{OwnerID: "u1", Name: "A", IsActive: true}
		hb := &entities.Hive{OwnerID: "u1", Name: "B", IsActive: true}
		require.NoError(t, a.Store.Hives().CreateHive(ctx, ha))
		require.NoError(t, a.Store.Hives().CreateHive(ctx, hb))
		d := &entities.Device{SerialNumber: "SN-1", OwnerID: "u1", HiveID: &ha.ID, IsActive: true}
		require.NoError(t, a.Devices.Create(ctx, d))
		hiveA, hiveB, deviceID = ha.ID, hb.ID, d.ID
	})

	out, err := run(t, cfg, "devices", "assign", deviceID, "--hive-id", hiveB)
	require.NoError(t, err)
	assert.Contains(t, out, "linked to hive "+hiveB)

	out, err = run(t, cfg, "devices", "list", "--owner", "u1", "--assigned")
	require.NoError(t, err)
	assert.Contains(t, out, "SN-1")

	out, err = run(t, cfg, "sync-monitoring", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Would update 0 out of 2 hive(s)")
	assert.Contains(t, out, "All hive statuses are synchronized")

	withTestApp(t, cfg, func(ctx context.Context, a *app.App) {
		a1, err := a.Store.Hives().GetHive(ctx, hiveA)
		require.NoError(t, err)
		assert.False(t, a1.HasMonitoring)
		b1, err := a.Store.Hives().GetHive(ctx, hiveB)
		require.NoError(t, err)
		assert.True(t, b1.HasMonitoring)

		// Corrupt the cache behind the router's back.
		require.NoError(t, a.Store.Hives().SetHasMonitoring(ctx, hiveA, true))
	})

	out, err = run(t, cfg, "sync-monitoring", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Would update 1 out of 2 hive(s)")
	assert.Contains(t, out, "Mismatch detected: 1 hive(s) need synchronization")

	out, err = run(t, cfg, "sync-monitoring")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated 1 out of 2 hive(s)")
	assert.Contains(t, out, "All hive statuses are synchronized")

	out, err = run(t, cfg, "devices", "deactivate", deviceID)
	require.NoError(t, err)
	assert.Contains(t, out, "active=false")

	out, err = run(t, cfg, "devices", "delete", deviceID)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	_, err = run(t, cfg, "sync-monitoring", "--hive-id", "missing")
	require.Error(t, err)
}
