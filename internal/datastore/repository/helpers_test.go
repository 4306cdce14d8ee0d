package repository

import (
	"testing"
	"time"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/testutil/testdb"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(testdb.Open(t))
}

func createHive(t *testing.T, s *Store, owner string, active, monitored bool) *entities.Hive {
	t.Helper()
	hive := &entities.Hive{OwnerID: owner, Name: "hive", IsActive: active, HasMonitoring: monitored}
	require.NoError(t, s.Hives().CreateHive(t.Context(), hive))
	return hive
}

func createDevice(t *testing.T, s *Store, serial, owner string, hiveID *string, active bool) *entities.Device {
	t.Helper()
	device := &entities.Device{SerialNumber: serial, OwnerID: owner, HiveID: hiveID, IsActive: active}
	require.NoError(t, s.Devices().CreateDevice(t.Context(), device))
	return device
}

func saveReading(t *testing.T, s *Store, deviceID string, ts time.Time, mutate func(*entities.SensorReading)) *entities.SensorReading {
	t.Helper()
	reading := &entities.SensorReading{DeviceID: deviceID, Timestamp: ts}
	if mutate != nil {
		mutate(reading)
	}
	require.NoError(t, s.Readings().SaveReading(t.Context(), reading))
	return reading
}

func ptr[T any](v T) *T { return &v }

func newDevice(serial, owner string) *entities.Device {
	return &entities.Device{SerialNumber: serial, OwnerID: owner, IsActive: true}
}
