package repository

import (
	"context"

	"github.com/amirphl/likebounty/models"
	"gorm.io/gorm"
)

// TransactionRepositoryImpl implements TransactionRepository interface
type TransactionRepositoryImpl struct {
	*BaseRepository[models.Transaction, models.TransactionFilter]
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &TransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Transaction, models.TransactionFilter](db, applyTransactionFilter),
	}
}

// ListByWallet returns the newest transactions of a wallet first
func (r *TransactionRepositoryImpl) ListByWallet(ctx context.Context, walletID uint, limit, offset int) ([]*models.Transaction, error) {
	return r.ByFilter(ctx, models.TransactionFilter{WalletID: &walletID}, "id DESC", limit, offset)
}

// ListByCampaign returns every funds movement caused by one campaign
func (r *TransactionRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint64) ([]*models.Transaction, error) {
	return r.ByFilter(ctx, models.TransactionFilter{CampaignID: &campaignID}, "id ASC", 0, 0)
}

func applyTransactionFilter(query *gorm.DB, filter models.TransactionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CorrelationID != nil {
		query = query.Where("correlation_id = ?", *filter.CorrelationID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.WalletID != nil {
		query = query.Where("wallet_id = ?", *filter.WalletID)
	}
	if filter.Identity != nil {
		query = query.Where("identity = ?", *filter.Identity)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
