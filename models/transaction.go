package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"     // Wallet top-up
	TransactionTypeEscrowHold TransactionType = "escrow_hold" // Campaign reward moved into escrow
	TransactionTypePayout     TransactionType = "payout"      // Escrow released to the selected applicant
	TransactionTypeRefund     TransactionType = "refund"      // Escrow returned to the sponsor
)

// TransactionStatus represents the current status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction represents an immutable wallet movement
type Transaction struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;index;not null" json:"correlation_id"`

	Type   TransactionType   `gorm:"type:varchar(20);not null;index" json:"type"`
	Status TransactionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Amount uint64            `gorm:"not null" json:"amount"`

	WalletID uint   `gorm:"not null;index" json:"wallet_id"`
	Identity string `gorm:"size:255;not null;index" json:"identity"`

	BalanceBefore uint64 `gorm:"not null" json:"balance_before"`
	BalanceAfter  uint64 `gorm:"not null" json:"balance_after"`

	// Zero for deposits
	CampaignID  uint64 `gorm:"not null;default:0;index" json:"campaign_id"`
	Description string `gorm:"type:text" json:"description"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate ensures UUID and CorrelationID are set
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.CorrelationID == uuid.Nil {
		t.CorrelationID = uuid.New()
	}
	return nil
}

// IsCompleted returns true if the transaction is in a final state
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed
}

// IsPending returns true if the transaction is still being processed
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// TransactionFilter represents filter criteria for transaction queries
type TransactionFilter struct {
	ID            *uint              `json:"id,omitempty"`
	UUID          *uuid.UUID         `json:"uuid,omitempty"`
	CorrelationID *uuid.UUID         `json:"correlation_id,omitempty"`
	Type          *TransactionType   `json:"type,omitempty"`
	Status        *TransactionStatus `json:"status,omitempty"`
	WalletID      *uint              `json:"wallet_id,omitempty"`
	Identity      *string            `json:"identity,omitempty"`
	CampaignID    *uint64            `json:"campaign_id,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}
