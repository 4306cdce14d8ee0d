package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories over one *gorm.DB. A Store handed to a
// Transaction callback is bound to that transaction.
type Store struct {
	db         *gorm.DB
	hives      HiveRepository
	devices    DeviceRepository
	readings   ReadingRepository
	thresholds ThresholdRepository
	alerts     AlertRepository
}

// NewStore creates a Store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		hives:      NewHiveRepository(db),
		devices:    NewDeviceRepository(db),
		readings:   NewReadingRepository(db),
		thresholds: NewThresholdRepository(db),
		alerts:     NewAlertRepository(db),
	}
}

func (s *Store) DB() *gorm.DB                    { return s.db }
func (s *Store) Hives() HiveRepository           { return s.hives }
func (s *Store) Devices() DeviceRepository       { return s.devices }
func (s *Store) Readings() ReadingRepository     { return s.readings }
func (s *Store) Thresholds() ThresholdRepository { return s.thresholds }
func (s *Store) Alerts() AlertRepository         { return s.alerts }

// WithThresholds returns a copy of s that reads thresholds through repo.
func (s *Store) WithThresholds(repo ThresholdRepository) *Store {
	cp := *s
	cp.thresholds = repo
	return &cp
}

// Transaction runs fn with a Store bound to a new transaction. Returning
// an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
