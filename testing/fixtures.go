package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/likebounty/models"
	"github.com/amirphl/likebounty/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestSponsor inserts a whitelisted sponsor row
func (tf *TestFixtures) CreateTestSponsor(identity string) (*models.Sponsor, error) {
	sponsor := &models.Sponsor{
		Identity: identity,
		Name:     "Sponsor " + identity,
		Enabled:  true,
	}
	if err := tf.DB.DB.Create(sponsor).Error; err != nil {
		return nil, fmt.Errorf("failed to create sponsor %s: %w", identity, err)
	}
	return sponsor, nil
}

// CreateTestWallet inserts a wallet holding balance
func (tf *TestFixtures) CreateTestWallet(identity string, balance uint64) (*models.Wallet, error) {
	wallet := &models.Wallet{
		Identity: identity,
		Balance:  balance,
	}
	if err := tf.DB.DB.Create(wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to create wallet %s: %w", identity, err)
	}
	return wallet, nil
}

// CreateTestCampaign inserts a campaign row in the Created state
func (tf *TestFixtures) CreateTestCampaign(id uint64, sponsor string, reward uint64) (*models.Campaign, error) {
	now := utils.UTCNow()
	campaign := &models.Campaign{
		ID:                   id,
		Name:                 fmt.Sprintf("Campaign %d", id),
		Sponsor:              sponsor,
		LikeGoal:             3,
		Reward:               reward,
		EscrowBalance:        reward,
		ApplicationWindowEnd: now.Add(time.Hour),
		ActivityWindowEnd:    now.Add(2 * time.Hour),
		Status:               models.CampaignStatusCreated,
		Outcome:              models.CampaignOutcomeNone,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create campaign %d: %w", id, err)
	}
	return campaign, nil
}

// WalletBalance reads the current balance of identity's wallet
func (tf *TestFixtures) WalletBalance(identity string) (uint64, error) {
	var wallet models.Wallet
	if err := tf.DB.DB.Where("identity = ?", identity).First(&wallet).Error; err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}
