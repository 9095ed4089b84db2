package models

import (
	"time"

	"github.com/amirphl/likebounty/utils"
	"gorm.io/gorm"
)

// Sponsor is a whitelisted identity allowed to create campaigns.
// Removal soft-deletes the row so the audit trail survives.
type Sponsor struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Identity  string         `gorm:"size:255;not null;uniqueIndex:uk_sponsors_identity" json:"identity"`
	Name      string         `gorm:"size:255" json:"name"`
	Enabled   bool           `gorm:"not null;default:true" json:"enabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Sponsor) TableName() string {
	return "sponsors"
}

// BeforeCreate is called before creating a new record
func (s *Sponsor) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// SponsorFilter represents filter criteria for sponsors
type SponsorFilter struct {
	Identity *string `json:"identity,omitempty"`
	Enabled  *bool   `json:"enabled,omitempty"`
}
