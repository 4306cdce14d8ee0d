//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/apiarylabs/hivewatch/internal/datastore"
	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/devices"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/monitoring"
	"github.com/apiarylabs/hivewatch/internal/testutil/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mysqlContainer *containers.MySQLContainer

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	mysqlContainer, err = containers.NewMySQLContainer(ctx, nil)
	if err != nil {
		panic("failed to start MySQL: " + err.Error())
	}
	if err := datastore.Migrate(ctx, mysqlContainer.DB()); err != nil {
		_ = mysqlContainer.Terminate(ctx)
		panic("failed to migrate: " + err.Error())
	}

	code := m.Run()
	_ = mysqlContainer.Terminate(ctx)
	os.Exit(code)
}

func mysqlStore(t *testing.T) *repository.Store {
	t.Helper()
	require.NoError(t, mysqlContainer.Reset(t.Context(), []string{"alerts", "alert_thresholds", "sensor_readings", "devices", "hives"}))
	return repository.NewStore(mysqlContainer.GetDB(t))
}

// TestMySQL_CreateIfNovelConcurrent runs the dedup check on separate
// connections, where the hive row lock is what keeps it to one insert.
func TestMySQL_CreateIfNovelConcurrent(t *testing.T) {
	s := mysqlStore(t)
	ctx := t.Context()
	hive := &entities.Hive{OwnerID: "u1", Name: "hive", IsActive: true, HasMonitoring: true}
	require.NoError(t, s.Hives().CreateHive(ctx, hive))

	now := time.Now().UTC().Truncate(time.Second)
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Alerts().CreateIfNovel(ctx, &entities.Alert{
				HiveID:        hive.ID,
				AlertType:     entities.AlertTemperature,
				Severity:      entities.SeverityHigh,
				Message:       "Temperature too high: 42°C (maximum: 38°C)",
				TriggerValues: "{}",
				CreatedAt:     now,
			}, now.Add(-time.Hour))
			if assert.NoError(t, err) && ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestMySQL_NoopUpdatesAreNotMissing(t *testing.T) {
	s := mysqlStore(t)
	ctx := t.Context()
	hive := &entities.Hive{OwnerID: "u1", Name: "hive", IsActive: true}
	require.NoError(t, s.Hives().CreateHive(ctx, hive))

	alert := &entities.Alert{HiveID: hive.ID, AlertType: entities.AlertBattery, Severity: entities.SeverityLow, TriggerValues: "{}"}
	ok, err := s.Alerts().CreateIfNovel(ctx, alert, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	// Reopening an open alert changes no row, MySQL reports zero affected.
	require.NoError(t, s.Alerts().ReopenAlert(ctx, alert.ID))
	require.ErrorIs(t, s.Alerts().ReopenAlert(ctx, "missing"), repository.ErrAlertNotFound)
}

func TestMySQL_ThresholdUpsertAndReadings(t *testing.T) {
	s := mysqlStore(t)
	ctx := t.Context()
	hive := &entities.Hive{OwnerID: "u1", Name: "hive", IsActive: true}
	require.NoError(t, s.Hives().CreateHive(ctx, hive))

	set := entities.NewThresholdSet("u1", nil)
	require.NoError(t, s.Thresholds().SaveThresholdSet(ctx, set))
	again := entities.NewThresholdSet("u1", nil)
	again.TemperatureMax = 36
	require.NoError(t, s.Thresholds().SaveThresholdSet(ctx, again))

	got, err := s.Thresholds().GetThresholdSet(ctx, "u1", nil)
	require.NoError(t, err)
	assert.InDelta(t, 36.0, got.TemperatureMax, 0)
	assert.Equal(t, set.ID, got.ID)

	device := &entities.Device{SerialNumber: "SN-1", OwnerID: "u1", HiveID: &hive.ID, IsActive: true}
	require.NoError(t, s.Devices().CreateDevice(ctx, device))
	ts := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	temp := 35.5
	require.NoError(t, s.Readings().SaveReading(ctx, &entities.SensorReading{DeviceID: device.ID, Temperature: &temp, Timestamp: ts}))

	r, err := s.Readings().LatestReading(ctx, hive.ID, ts.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, r.Timestamp.Equal(ts))
}

// TestMySQL_ConcurrentDeactivation deactivates both active devices of a
// hive on separate connections under repeatable read. Without the hive
// lock each writer counts the other as still active and the flag stays set.
func TestMySQL_ConcurrentDeactivation(t *testing.T) {
	s := mysqlStore(t)
	ctx := t.Context()
	router := monitoring.NewRouter(monitoring.NewSynchronizer(nil, logger.NewNop()), logger.NewNop())
	svc := devices.NewService(s, router, logger.NewNop())

	for round := range 20 {
		hive := &entities.Hive{OwnerID: "u1", Name: "hive", IsActive: true}
		require.NoError(t, s.Hives().CreateHive(ctx, hive))
		ids := make([]string, 2)
		for i := range ids {
			d := &entities.Device{SerialNumber: fmt.Sprintf("SN-%d-%d", round, i), OwnerID: "u1", HiveID: &hive.ID, IsActive: true}
			require.NoError(t, svc.Create(ctx, d))
			ids[i] = d.ID
		}

		start := make(chan struct{})
		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := svc.SetActive(ctx, id, false)
				assert.NoError(t, err)
			}()
		}
		close(start)
		wg.Wait()

		got, err := s.Hives().GetHive(ctx, hive.ID)
		require.NoError(t, err)
		require.False(t, got.HasMonitoring, "round %d", round)
	}
}
