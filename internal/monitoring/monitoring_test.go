package monitoring

import (
	"testing"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/testutil/testdb"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	store  *repository.Store
	sync   *Synchronizer
	router *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sync := NewSynchronizer(nil, logger.NewNop())
	return &harness{
		t:      t,
		store:  repository.NewStore(testdb.Open(t)),
		sync:   sync,
		router: NewRouter(sync, logger.NewNop()),
	}
}

func (h *harness) hive(flag bool) string {
	h.t.Helper()
	hive := &entities.Hive{OwnerID: "u1", Name: "hive", IsActive: true, HasMonitoring: flag}
	require.NoError(h.t, h.store.Hives().CreateHive(h.t.Context(), hive))
	return hive.ID
}

// save writes device through the router the way the device service does.
func (h *harness) save(device *entities.Device) SavePlan {
	h.t.Helper()
	ctx := h.t.Context()
	var plan SavePlan
	err := h.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		plan, err = h.router.BeforeSave(ctx, tx, device)
		if err != nil {
			return err
		}
		if plan.Existed {
			err = tx.Devices().SaveDevice(ctx, device)
		} else {
			err = tx.Devices().CreateDevice(ctx, device)
		}
		if err != nil {
			return err
		}
		return h.router.AfterSave(ctx, tx, device, plan)
	})
	require.NoError(h.t, err)
	return plan
}

func (h *harness) remove(device *entities.Device) {
	h.t.Helper()
	ctx := h.t.Context()
	err := h.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Devices().DeleteDevice(ctx, device.ID); err != nil {
			return err
		}
		return h.router.AfterDelete(ctx, tx, device)
	})
	require.NoError(h.t, err)
}

func (h *harness) flag(hiveID string) bool {
	h.t.Helper()
	hive, err := h.store.Hives().GetHive(h.t.Context(), hiveID)
	require.NoError(h.t, err)
	return hive.HasMonitoring
}

func device(serial string, hiveID *string, active bool) *entities.Device {
	return &entities.Device{SerialNumber: serial, OwnerID: "u1", HiveID: hiveID, IsActive: active}
}
