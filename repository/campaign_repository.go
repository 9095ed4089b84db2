package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/likebounty/models"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db, applyCampaignFilter),
	}
}

// UpdateState overwrites the mutable lifecycle columns of a campaign
func (r *CampaignRepositoryImpl) UpdateState(ctx context.Context, campaign *models.Campaign) error {
	db := r.getDB(ctx)
	result := db.Model(campaign).Select(
		"status",
		"outcome",
		"selected_applicant",
		"engagement_count",
		"escrow_balance",
		"escrow_released",
		"updated_at",
	).Updates(campaign)
	if result.Error != nil {
		return fmt.Errorf("failed to update campaign %d: %w", campaign.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("campaign %d not found", campaign.ID)
	}
	return nil
}

// ListAll returns every campaign ordered by id
func (r *CampaignRepositoryImpl) ListAll(ctx context.Context) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	var campaigns []*models.Campaign
	if err := db.Order("id ASC").Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

func applyCampaignFilter(query *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Sponsor != nil {
		query = query.Where("sponsor = ?", *filter.Sponsor)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
