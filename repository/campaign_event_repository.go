package repository

import (
	"context"

	"github.com/amirphl/likebounty/models"
	"gorm.io/gorm"
)

// CampaignEventRepositoryImpl implements CampaignEventRepository interface
type CampaignEventRepositoryImpl struct {
	*BaseRepository[models.CampaignEvent, models.CampaignEventFilter]
}

// NewCampaignEventRepository creates a new campaign event repository
func NewCampaignEventRepository(db *gorm.DB) CampaignEventRepository {
	return &CampaignEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignEvent, models.CampaignEventFilter](db, applyCampaignEventFilter),
	}
}

// ListByCampaign returns the events of one campaign in the order they happened
func (r *CampaignEventRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint64, limit, offset int) ([]*models.CampaignEvent, error) {
	return r.ByFilter(ctx, models.CampaignEventFilter{CampaignID: &campaignID}, "id ASC", limit, offset)
}

func applyCampaignEventFilter(query *gorm.DB, filter models.CampaignEventFilter) *gorm.DB {
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.OccurredAfter != nil {
		query = query.Where("occurred_at >= ?", *filter.OccurredAfter)
	}
	if filter.OccurredBefore != nil {
		query = query.Where("occurred_at <= ?", *filter.OccurredBefore)
	}
	return query
}
