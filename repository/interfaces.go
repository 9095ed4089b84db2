package repository

import (
	"context"
	"time"

	"github.com/amirphl/likebounty/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint64) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// SponsorRepository defines operations for whitelisted sponsors
type SponsorRepository interface {
	Repository[models.Sponsor, models.SponsorFilter]
	ByIdentity(ctx context.Context, identity string) (*models.Sponsor, error)
	Upsert(ctx context.Context, sponsor *models.Sponsor) error
	DeleteByIdentity(ctx context.Context, identity string) error
	ListActive(ctx context.Context) ([]*models.Sponsor, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	UpdateState(ctx context.Context, campaign *models.Campaign) error
	ListAll(ctx context.Context) ([]*models.Campaign, error)
}

// CampaignApplicationRepository defines operations for campaign applications
type CampaignApplicationRepository interface {
	Repository[models.CampaignApplication, models.ParticipationFilter]
	DeleteByCampaignAndIdentity(ctx context.Context, campaignID uint64, identity string) error
	ListByCampaignIDs(ctx context.Context, campaignIDs []uint64) ([]*models.CampaignApplication, error)
}

// CampaignEngagementRepository defines operations for campaign engagements
type CampaignEngagementRepository interface {
	Repository[models.CampaignEngagement, models.ParticipationFilter]
	ListByCampaignIDs(ctx context.Context, campaignIDs []uint64) ([]*models.CampaignEngagement, error)
}

// CampaignEventRepository defines operations for the campaign event log
type CampaignEventRepository interface {
	Repository[models.CampaignEvent, models.CampaignEventFilter]
	ListByCampaign(ctx context.Context, campaignID uint64, limit, offset int) ([]*models.CampaignEvent, error)
}

// SequenceCounterRepository defines operations for named counters
type SequenceCounterRepository interface {
	NextValue(ctx context.Context, name string) (uint64, bool, error)
	SetNextValue(ctx context.Context, name string, value uint64) error
}

// RegistrySettingRepository defines operations for registry flags
type RegistrySettingRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, at time.Time) error
}

// WalletRepository defines operations for wallets
type WalletRepository interface {
	Repository[models.Wallet, models.WalletFilter]
	ByIdentity(ctx context.Context, identity string) (*models.Wallet, error)
	Ensure(ctx context.Context, identity string) (*models.Wallet, error)
	Credit(ctx context.Context, walletID uint, amount uint64) (*models.Wallet, error)
	Debit(ctx context.Context, walletID uint, amount uint64) (*models.Wallet, bool, error)
}

// TransactionRepository defines operations for wallet transactions
type TransactionRepository interface {
	Repository[models.Transaction, models.TransactionFilter]
	ListByWallet(ctx context.Context, walletID uint, limit, offset int) ([]*models.Transaction, error)
	ListByCampaign(ctx context.Context, campaignID uint64) ([]*models.Transaction, error)
}
