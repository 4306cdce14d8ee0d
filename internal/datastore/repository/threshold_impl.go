package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type thresholdRepository struct {
	db *gorm.DB
}

// NewThresholdRepository creates a new ThresholdRepository.
func NewThresholdRepository(db *gorm.DB) ThresholdRepository {
	return &thresholdRepository{db: db}
}

func (r *thresholdRepository) GetThresholdSet(ctx context.Context, userID string, hiveID *string) (*entities.ThresholdSet, error) {
	var set entities.ThresholdSet
	scope := entities.ScopeFor(hiveID)
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND scope = ?", userID, scope).
		First(&set).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThresholdSetNotFound
		}
		return nil, fmt.Errorf("failed to get threshold set %s/%s: %w", userID, scope, err)
	}
	return &set, nil
}

// SaveThresholdSet inserts the set or replaces the bounds of the existing
// set with the same user and scope.
func (r *thresholdRepository) SaveThresholdSet(ctx context.Context, set *entities.ThresholdSet) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "scope"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"temperature_min", "temperature_max",
				"humidity_min", "humidity_max",
				"weight_change_threshold", "sound_level_threshold",
				"battery_warning_level", "inspection_reminder_days",
				"updated_at",
			}),
		}).
		Create(set).Error
	if err != nil {
		return fmt.Errorf("failed to save threshold set: %w", err)
	}
	// On conflict the generated ID was discarded; reload the stored row.
	stored, err := r.GetThresholdSet(ctx, set.UserID, set.HiveID)
	if err != nil {
		return err
	}
	*set = *stored
	return nil
}

func (r *thresholdRepository) DeleteThresholdSet(ctx context.Context, userID string, hiveID *string) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND scope = ?", userID, entities.ScopeFor(hiveID)).
		Delete(&entities.ThresholdSet{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete threshold set: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrThresholdSetNotFound
	}
	return nil
}
