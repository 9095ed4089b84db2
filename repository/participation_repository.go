package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/likebounty/models"
	"gorm.io/gorm"
)

// CampaignApplicationRepositoryImpl implements CampaignApplicationRepository interface
type CampaignApplicationRepositoryImpl struct {
	*BaseRepository[models.CampaignApplication, models.ParticipationFilter]
}

// NewCampaignApplicationRepository creates a new application repository
func NewCampaignApplicationRepository(db *gorm.DB) CampaignApplicationRepository {
	return &CampaignApplicationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignApplication, models.ParticipationFilter](db, applyParticipationFilter),
	}
}

// DeleteByCampaignAndIdentity removes the application of a selected applicant
func (r *CampaignApplicationRepositoryImpl) DeleteByCampaignAndIdentity(ctx context.Context, campaignID uint64, identity string) error {
	db := r.getDB(ctx)
	result := db.Where("campaign_id = ? AND identity = ?", campaignID, identity).Delete(&models.CampaignApplication{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete application: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("application of %s to campaign %d not found", identity, campaignID)
	}
	return nil
}

// ListByCampaignIDs returns the applications of the given campaigns
func (r *CampaignApplicationRepositoryImpl) ListByCampaignIDs(ctx context.Context, campaignIDs []uint64) ([]*models.CampaignApplication, error) {
	if len(campaignIDs) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)
	var rows []*models.CampaignApplication
	if err := db.Where("campaign_id IN ?", campaignIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CampaignEngagementRepositoryImpl implements CampaignEngagementRepository interface
type CampaignEngagementRepositoryImpl struct {
	*BaseRepository[models.CampaignEngagement, models.ParticipationFilter]
}

// NewCampaignEngagementRepository creates a new engagement repository
func NewCampaignEngagementRepository(db *gorm.DB) CampaignEngagementRepository {
	return &CampaignEngagementRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignEngagement, models.ParticipationFilter](db, applyParticipationFilter),
	}
}

// ListByCampaignIDs returns the engagements of the given campaigns
func (r *CampaignEngagementRepositoryImpl) ListByCampaignIDs(ctx context.Context, campaignIDs []uint64) ([]*models.CampaignEngagement, error) {
	if len(campaignIDs) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)
	var rows []*models.CampaignEngagement
	if err := db.Where("campaign_id IN ?", campaignIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func applyParticipationFilter(query *gorm.DB, filter models.ParticipationFilter) *gorm.DB {
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Identity != nil {
		query = query.Where("identity = ?", *filter.Identity)
	}
	return query
}
