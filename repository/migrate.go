package repository

import (
	"fmt"

	"github.com/amirphl/likebounty/models"
	"gorm.io/gorm"
)

// Models lists every table owned by the service
func Models() []any {
	return []any{
		&models.Sponsor{},
		&models.Campaign{},
		&models.CampaignApplication{},
		&models.CampaignEngagement{},
		&models.CampaignEvent{},
		&models.SequenceCounter{},
		&models.RegistrySetting{},
		&models.Wallet{},
		&models.Transaction{},
	}
}

// Migrate creates or updates the schema of every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
