package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
)

// Guard creates alerts unless an unresolved alert for the same hive and
// type was raised within the window.
type Guard struct {
	alerts repository.AlertRepository
	locker Locker
	window time.Duration
}

// NewGuard creates a Guard. A nil locker uses a MemoryLocker.
func NewGuard(alerts repository.AlertRepository, locker Locker, window time.Duration) *Guard {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Guard{alerts: alerts, locker: locker, window: window}
}

func lockKey(hiveID string, kind entities.AlertType) string {
	return "alert:" + hiveID + ":" + string(kind)
}

// CreateIfNovel persists the alert described by b for hiveID at time now.
// created is false when an open alert inside the window suppressed it.
func (g *Guard) CreateIfNovel(ctx context.Context, hiveID string, b *Breach, now time.Time) (alert *entities.Alert, created bool, err error) {
	snapshot, err := json.Marshal(b.Snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode alert snapshot: %w", err)
	}

	unlock, err := g.locker.Lock(ctx, lockKey(hiveID, b.Kind))
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock %s: %w", lockKey(hiveID, b.Kind), err)
	}
	defer unlock()

	alert = &entities.Alert{
		HiveID:        hiveID,
		AlertType:     b.Kind,
		Severity:      b.Severity,
		Message:       b.Message,
		TriggerValues: string(snapshot),
		CreatedAt:     now,
	}
	created, err = g.alerts.CreateIfNovel(ctx, alert, now.Add(-g.window))
	if err != nil || !created {
		return nil, false, err
	}
	return alert, true, nil
}
