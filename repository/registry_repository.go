package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/likebounty/models"
	"github.com/amirphl/likebounty/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceCounterRepositoryImpl implements SequenceCounterRepository interface
type SequenceCounterRepositoryImpl struct {
	*BaseRepository[models.SequenceCounter, struct{}]
}

// NewSequenceCounterRepository creates a new sequence counter repository
func NewSequenceCounterRepository(db *gorm.DB) SequenceCounterRepository {
	return &SequenceCounterRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SequenceCounter, struct{}](db, nil),
	}
}

// NextValue returns the stored next value of a counter. The flag is false
// when the counter was never written.
func (r *SequenceCounterRepositoryImpl) NextValue(ctx context.Context, name string) (uint64, bool, error) {
	db := r.getDB(ctx)
	var counter models.SequenceCounter
	err := db.Where("name = ?", name).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read counter %s: %w", name, err)
	}
	return counter.NextValue, true, nil
}

// SetNextValue stores the next value of a counter
func (r *SequenceCounterRepositoryImpl) SetNextValue(ctx context.Context, name string, value uint64) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	counter := &models.SequenceCounter{Name: name, NextValue: value, CreatedAt: now, UpdatedAt: now}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"next_value", "updated_at"}),
	}).Create(counter).Error
	if err != nil {
		return fmt.Errorf("failed to store counter %s: %w", name, err)
	}
	return nil
}

// RegistrySettingRepositoryImpl implements RegistrySettingRepository interface
type RegistrySettingRepositoryImpl struct {
	*BaseRepository[models.RegistrySetting, struct{}]
}

// NewRegistrySettingRepository creates a new registry setting repository
func NewRegistrySettingRepository(db *gorm.DB) RegistrySettingRepository {
	return &RegistrySettingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RegistrySetting, struct{}](db, nil),
	}
}

// Get returns the value stored under key
func (r *RegistrySettingRepositoryImpl) Get(ctx context.Context, key string) (string, bool, error) {
	db := r.getDB(ctx)
	var setting models.RegistrySetting
	err := db.Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return setting.Value, true, nil
}

// Set stores value under key
func (r *RegistrySettingRepositoryImpl) Set(ctx context.Context, key, value string, at time.Time) error {
	db := r.getDB(ctx)
	setting := &models.RegistrySetting{Key: key, Value: value, UpdatedAt: at}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(setting).Error
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}
