package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) CreateIfNovel(ctx context.Context, alert *entities.Alert, since time.Time) (bool, error) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	alert.CreatedAt = alert.CreatedAt.UTC()

	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The hive row lock serializes check-then-insert across connections.
		// SQLite drops the clause, its writers are serialized already.
		var hive entities.Hive
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&hive, "id = ?", alert.HiveID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHiveNotFound
			}
			return fmt.Errorf("failed to lock hive %s: %w", alert.HiveID, err)
		}

		var recent int64
		err = tx.Model(&entities.Alert{}).
			Where("hive_id = ? AND alert_type = ? AND is_resolved = ? AND created_at >= ?",
				alert.HiveID, alert.AlertType, false, since.UTC()).
			Count(&recent).Error
		if err != nil {
			return fmt.Errorf("failed to count recent alerts: %w", err)
		}
		if recent > 0 {
			return nil
		}

		if err := tx.Omit(clause.Associations).Create(alert).Error; err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetAlert returns ErrAlertNotFound if the alert does not exist.
func (r *alertRepository) GetAlert(ctx context.Context, id string) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return &alert, nil
}

func (r *alertRepository) filtered(ctx context.Context, filter AlertFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&entities.Alert{})
	if filter.HiveID != "" {
		query = query.Where("hive_id = ?", filter.HiveID)
	}
	if filter.AlertType != "" {
		query = query.Where("alert_type = ?", filter.AlertType)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Resolved != nil {
		query = query.Where("is_resolved = ?", *filter.Resolved)
	}
	return query
}

// ListAlerts returns matching alerts newest first, together with the
// total count ignoring pagination.
func (r *alertRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := r.filtered(ctx, filter).Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var items []entities.Alert
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return items, total, nil
}

func (r *alertRepository) CountUnresolvedBySeverity(ctx context.Context, hiveID string) (map[entities.Severity]int64, error) {
	var rows []struct {
		Severity entities.Severity
		Count    int64
	}
	resolved := false
	err := r.filtered(ctx, AlertFilter{HiveID: hiveID, Resolved: &resolved}).
		Select("severity, COUNT(*) AS count").
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count unresolved alerts: %w", err)
	}
	out := make(map[entities.Severity]int64, len(rows))
	for _, row := range rows {
		out[row.Severity] = row.Count
	}
	return out, nil
}

func (r *alertRepository) ResolveAlert(ctx context.Context, id, resolvedBy, notes string, at time.Time) error {
	var by *string
	if resolvedBy != "" {
		by = &resolvedBy
	}
	result := r.db.WithContext(ctx).
		Model(&entities.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_resolved":      true,
			"resolved_at":      at.UTC(),
			"resolved_by":      by,
			"resolution_notes": notes,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to resolve alert %s: %w", id, result.Error)
	}
	return r.requireAffected(ctx, id, result.RowsAffected)
}

func (r *alertRepository) ReopenAlert(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_resolved":      false,
			"resolved_at":      nil,
			"resolved_by":      nil,
			"resolution_notes": "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to reopen alert %s: %w", id, result.Error)
	}
	return r.requireAffected(ctx, id, result.RowsAffected)
}

// requireAffected tells a missing alert apart from an update that changed
// nothing, which MySQL also reports as zero rows.
func (r *alertRepository) requireAffected(ctx context.Context, id string, affected int64) error {
	if affected > 0 {
		return nil
	}
	_, err := r.GetAlert(ctx, id)
	return err
}

func (r *alertRepository) DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("is_resolved = ? AND resolved_at < ?", true, before.UTC()).
		Delete(&entities.Alert{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete resolved alerts before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}
