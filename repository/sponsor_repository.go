package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/likebounty/models"
	"gorm.io/gorm"
)

// SponsorRepositoryImpl implements SponsorRepository interface
type SponsorRepositoryImpl struct {
	*BaseRepository[models.Sponsor, models.SponsorFilter]
}

// NewSponsorRepository creates a new sponsor repository
func NewSponsorRepository(db *gorm.DB) SponsorRepository {
	return &SponsorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Sponsor, models.SponsorFilter](db, applySponsorFilter),
	}
}

// ByIdentity finds an active sponsor by identity
func (r *SponsorRepositoryImpl) ByIdentity(ctx context.Context, identity string) (*models.Sponsor, error) {
	db := r.getDB(ctx)
	var sponsor models.Sponsor
	err := db.Where("identity = ?", identity).Last(&sponsor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sponsor, nil
}

// Upsert inserts the sponsor or revives its soft-deleted row
func (r *SponsorRepositoryImpl) Upsert(ctx context.Context, sponsor *models.Sponsor) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	var existing models.Sponsor
	err = db.Unscoped().Where("identity = ?", sponsor.Identity).Last(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Create(sponsor).Error
		if err != nil {
			return fmt.Errorf("failed to create sponsor: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load sponsor: %w", err)
	}

	err = db.Unscoped().Model(&existing).Updates(map[string]any{
		"name":       sponsor.Name,
		"enabled":    sponsor.Enabled,
		"deleted_at": nil,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to revive sponsor: %w", err)
	}
	sponsor.ID = existing.ID
	sponsor.CreatedAt = existing.CreatedAt
	return nil
}

// DeleteByIdentity soft-deletes the sponsor row
func (r *SponsorRepositoryImpl) DeleteByIdentity(ctx context.Context, identity string) error {
	db := r.getDB(ctx)
	if err := db.Where("identity = ?", identity).Delete(&models.Sponsor{}).Error; err != nil {
		return fmt.Errorf("failed to delete sponsor: %w", err)
	}
	return nil
}

// ListActive returns every sponsor that has not been removed
func (r *SponsorRepositoryImpl) ListActive(ctx context.Context) ([]*models.Sponsor, error) {
	db := r.getDB(ctx)
	var sponsors []*models.Sponsor
	if err := db.Order("id ASC").Find(&sponsors).Error; err != nil {
		return nil, err
	}
	return sponsors, nil
}

func applySponsorFilter(query *gorm.DB, filter models.SponsorFilter) *gorm.DB {
	if filter.Identity != nil {
		query = query.Where("identity = ?", *filter.Identity)
	}
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}
	return query
}
