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

type readingRepository struct {
	db *gorm.DB
}

// NewReadingRepository creates a new ReadingRepository.
func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{db: db}
}

// activeOnHive scopes readings to active devices linked to hiveID.
func (r *readingRepository) activeOnHive(ctx context.Context, hiveID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&entities.SensorReading{}).
		Joins("JOIN devices ON devices.id = sensor_readings.device_id").
		Where("devices.hive_id = ? AND devices.is_active = ?", hiveID, true).
		Order("sensor_readings.timestamp DESC")
}

func (r *readingRepository) LatestReading(ctx context.Context, hiveID string, since time.Time) (*entities.SensorReading, error) {
	var reading entities.SensorReading
	err := r.activeOnHive(ctx, hiveID).
		Where("sensor_readings.timestamp >= ?", since.UTC()).
		Take(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReadingNotFound
		}
		return nil, fmt.Errorf("failed to get latest reading for hive %s: %w", hiveID, err)
	}
	return &reading, nil
}

func (r *readingRepository) LatestReadingBetween(ctx context.Context, hiveID string, from, to time.Time) (*entities.SensorReading, error) {
	var reading entities.SensorReading
	err := r.activeOnHive(ctx, hiveID).
		Where("sensor_readings.timestamp >= ? AND sensor_readings.timestamp < ?", from.UTC(), to.UTC()).
		Take(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReadingNotFound
		}
		return nil, fmt.Errorf("failed to get reading for hive %s between %v and %v: %w", hiveID, from, to, err)
	}
	return &reading, nil
}

// SaveReading stores a reading. Timestamps are kept in UTC so that range
// comparisons behave on backends that store times as text.
func (r *readingRepository) SaveReading(ctx context.Context, reading *entities.SensorReading) error {
	reading.Timestamp = reading.Timestamp.UTC()
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(reading).Error; err != nil {
		return fmt.Errorf("failed to save sensor reading: %w", err)
	}
	return nil
}
