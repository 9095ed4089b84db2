package models

import (
	"time"

	"github.com/amirphl/likebounty/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet holds the spendable balance of one identity. Campaign payments are
// debited from it and payouts or refunds are credited to it.
type Wallet struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Identity  string    `gorm:"size:255;not null;uniqueIndex:uk_wallets_identity" json:"identity"`
	Balance   uint64    `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Transactions []Transaction `gorm:"foreignKey:WalletID" json:"transactions,omitempty"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// WalletFilter represents filter criteria for wallet queries
type WalletFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	Identity      *string    `json:"identity,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// BeforeCreate ensures UUID is set
func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.UUID == uuid.Nil {
		w.UUID = uuid.New()
	}
	now := utils.UTCNow()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = now
	}
	return nil
}
