package dto

import "time"

// DepositRequest represents a wallet top-up
type DepositRequest struct {
	Amount uint64 `json:"amount" validate:"required,gt=0,max=9223372036854775807"`
}

// TransactionItem represents a single wallet movement
type TransactionItem struct {
	UUID          string    `json:"uuid"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Amount        uint64    `json:"amount"`
	BalanceBefore uint64    `json:"balance_before"`
	BalanceAfter  uint64    `json:"balance_after"`
	CampaignID    uint64    `json:"campaign_id,omitempty"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// WalletResponse represents a wallet with its latest movements
type WalletResponse struct {
	Identity     string            `json:"identity"`
	Balance      uint64            `json:"balance"`
	Transactions []TransactionItem `json:"transactions"`
}
