package devices

import (
	"testing"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/monitoring"
	"github.com/apiarylabs/hivewatch/internal/testutil/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func setupService(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	store := repository.NewStore(testdb.Open(t))
	router := monitoring.NewRouter(monitoring.NewSynchronizer(nil, logger.NewNop()), logger.NewNop())
	return NewService(store, router, logger.NewNop()), store
}

func createHive(t *testing.T, store *repository.Store, owner string) string {
	t.Helper()
	hive := &entities.Hive{OwnerID: owner, Name: "hive", IsActive: true}
	require.NoError(t, store.Hives().CreateHive(t.Context(), hive))
	return hive.ID
}

func hasMonitoring(t *testing.T, store *repository.Store, hiveID string) bool {
	t.Helper()
	hive, err := store.Hives().GetHive(t.Context(), hiveID)
	require.NoError(t, err)
	return hive.HasMonitoring
}

func TestService_Lifecycle(t *testing.T) {
	t.Parallel()
	svc, store := setupService(t)
	ctx := t.Context()
	a := createHive(t, store, "u1")
	b := createHive(t, store, "u1")

	d := &entities.Device{SerialNumber: "SN-100", OwnerID: "u1", IsActive: true}
	require.NoError(t, svc.Create(ctx, d))
	require.NotEmpty(t, d.ID)
	assert.False(t, hasMonitoring(t, store, a))

	_, err := svc.Assign(ctx, d.ID, &a)
	require.NoError(t, err)
	assert.True(t, hasMonitoring(t, store, a))

	_, err = svc.Assign(ctx, d.ID, &b)
	require.NoError(t, err)
	assert.False(t, hasMonitoring(t, store, a))
	assert.True(t, hasMonitoring(t, store, b))

	got, err := svc.SetActive(ctx, d.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, hasMonitoring(t, store, b))

	_, err = svc.SetActive(ctx, d.ID, true)
	require.NoError(t, err)
	assert.True(t, hasMonitoring(t, store, b))

	require.NoError(t, svc.Delete(ctx, d.ID))
	assert.False(t, hasMonitoring(t, store, b))
	_, err = svc.Get(ctx, d.ID)
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestService_CreatePreassigned(t *testing.T) {
	t.Parallel()
	svc, store := setupService(t)
	hiveID := createHive(t, store, "u1")

	require.NoError(t, svc.Create(t.Context(), &entities.Device{SerialNumber: "SN-1", OwnerID: "u1", HiveID: &hiveID, IsActive: true}))
	assert.True(t, hasMonitoring(t, store, hiveID))
}

func TestService_Update(t *testing.T) {
	t.Parallel()
	svc, store := setupService(t)
	ctx := t.Context()
	hiveID := createHive(t, store, "u1")

	d := &entities.Device{SerialNumber: "SN-1", OwnerID: "u1", HiveID: &hiveID, IsActive: true, DeviceType: "scale"}
	require.NoError(t, svc.Create(ctx, d))

	level := 55
	next := *d
	next.BatteryLevel = &level
	next.IsActive = false
	require.NoError(t, svc.Update(ctx, &next))
	assert.False(t, hasMonitoring(t, store, hiveID))

	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BatteryLevel)
	assert.Equal(t, 55, *got.BatteryLevel)
	assert.Equal(t, "scale", got.DeviceType)
}

func TestService_Validation(t *testing.T) {
	t.Parallel()
	svc, store := setupService(t)
	ctx := t.Context()
	mine := createHive(t, store, "u1")
	theirs := createHive(t, store, "u2")
	missing := "missing"

	tests := []struct {
		name   string
		device *entities.Device
		want   error
	}{
		{name: "no serial", device: &entities.Device{OwnerID: "u1"}, want: ErrInvalidDevice},
		{name: "no owner", device: &entities.Device{SerialNumber: "SN-9"}, want: ErrInvalidDevice},
		{name: "unknown hive", device: &entities.Device{SerialNumber: "SN-9", OwnerID: "u1", HiveID: &missing}, want: ErrHiveNotFound},
		{name: "foreign hive", device: &entities.Device{SerialNumber: "SN-9", OwnerID: "u1", HiveID: &theirs, IsActive: true}, want: ErrOwnerMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, svc.Create(ctx, tt.device), tt.want)
		})
	}
	assert.False(t, hasMonitoring(t, store, theirs))

	d := &entities.Device{SerialNumber: "SN-1", OwnerID: "u1", HiveID: &mine, IsActive: true}
	require.NoError(t, svc.Create(ctx, d))

	_, err := svc.Assign(ctx, d.ID, &theirs)
	require.ErrorIs(t, err, ErrOwnerMismatch)
	assert.True(t, hasMonitoring(t, store, mine), "rejected write leaves the flag alone")

	moved := *d
	moved.OwnerID = "u2"
	require.ErrorIs(t, svc.Update(ctx, &moved), ErrOwnerImmutable)

	_, err = svc.SetActive(ctx, "missing", false)
	require.ErrorIs(t, err, ErrDeviceNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "missing"), ErrDeviceNotFound)
}

func TestService_List(t *testing.T) {
	t.Parallel()
	svc, store := setupService(t)
	ctx := t.Context()
	hiveID := createHive(t, store, "u1")

	require.NoError(t, svc.Create(ctx, &entities.Device{SerialNumber: "SN-1", OwnerID: "u1", HiveID: &hiveID, IsActive: true}))
	require.NoError(t, svc.Create(ctx, &entities.Device{SerialNumber: "SN-2", OwnerID: "u1", IsActive: false}))
	require.NoError(t, svc.Create(ctx, &entities.Device{SerialNumber: "SN-3", OwnerID: "u1", IsActive: true}))
	require.NoError(t, svc.Create(ctx, &entities.Device{SerialNumber: "SN-4", OwnerID: "u2", IsActive: true}))

	serials := func(list []entities.Device, err error) []string {
		require.NoError(t, err)
		out := make([]string, 0, len(list))
		for _, d := range list {
			out = append(out, d.SerialNumber)
		}
		return out
	}

	assert.Equal(t, []string{"SN-1", "SN-2", "SN-3"}, serials(svc.ListForOwner(ctx, "u1")))
	assert.Equal(t, []string{"SN-1", "SN-3"}, serials(svc.ListActiveForOwner(ctx, "u1")))
	assert.Equal(t, []string{"SN-2", "SN-3"}, serials(svc.ListUnassigned(ctx, "u1")))
	assert.Equal(t, []string{"SN-1"}, serials(svc.ListAssigned(ctx, "u1")))
}

// The two active devices of a hive are deactivated at the same time. The
// last one to commit must see the other's write and clear the flag.
func TestService_ConcurrentDeactivation(t *testing.T) {
	t.Parallel()
	svc, store := setupService(t)
	ctx := t.Context()
	hiveID := createHive(t, store, "u1")

	a := &entities.Device{SerialNumber: "SN-1", OwnerID: "u1", HiveID: &hiveID, IsActive: true}
	b := &entities.Device{SerialNumber: "SN-2", OwnerID: "u1", HiveID: &hiveID, IsActive: true}
	require.NoError(t, svc.Create(ctx, a))
	require.NoError(t, svc.Create(ctx, b))
	require.True(t, hasMonitoring(t, store, hiveID))

	var g errgroup.Group
	for _, id := range []string{a.ID, b.ID} {
		g.Go(func() error {
			_, err := svc.SetActive(ctx, id, false)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.False(t, hasMonitoring(t, store, hiveID))
}
