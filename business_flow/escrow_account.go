package businessflow

import (
	"context"
)

// Reasons recorded with every funds movement
const (
	FundsReasonEscrowHold = "escrow_hold"
	FundsReasonPayout     = "payout"
	FundsReasonRefund     = "refund"
)

// FundsReference links a funds movement to the campaign that caused it
type FundsReference struct {
	CampaignID uint64
	Reason     string
}

// FundsCollector takes a payment from an identity into custody
type FundsCollector interface {
	Collect(ctx context.Context, from string, amount uint64, ref FundsReference) error
}

// FundsTransferer moves custodied funds to an identity. A returned error means
// the destination did not receive anything.
type FundsTransferer interface {
	Transfer(ctx context.Context, to string, amount uint64, ref FundsReference) error
}

// EscrowAccount holds a single reward from campaign creation until it is
// released to the winner or refunded to the sponsor.
type EscrowAccount struct {
	campaignID uint64
	amount     uint64
	released   bool
	transferer FundsTransferer
}

type escrowState struct {
	amount   uint64
	released bool
}

// NewEscrowAccount creates a funded, unreleased escrow
func NewEscrowAccount(campaignID, amount uint64, transferer FundsTransferer) *EscrowAccount {
	return &EscrowAccount{
		campaignID: campaignID,
		amount:     amount,
		transferer: transferer,
	}
}

// Balance returns the amount still held
func (e *EscrowAccount) Balance() uint64 {
	return e.amount
}

// Released reports whether the escrow has been paid out or refunded
func (e *EscrowAccount) Released() bool {
	return e.released
}

// Release transfers the whole held amount to the given identity. The transfer
// runs before the account is marked released, so a failed transfer leaves the
// account exactly as it was.
func (e *EscrowAccount) Release(ctx context.Context, to string, amount uint64, reason string) error {
	if e.released {
		return NewBusinessError(KindConflict, "ESCROW_ALREADY_RELEASED", "Escrow was already released", ErrAlreadyReleased)
	}
	if amount > e.amount {
		return NewBusinessErrorf(KindConflict, "ESCROW_INSUFFICIENT_FUNDS", "Requested %d but escrow holds %d", ErrInsufficientFunds, amount, e.amount)
	}
	if amount < e.amount {
		return NewBusinessErrorf(KindValidation, "ESCROW_PARTIAL_RELEASE", "Escrow must be released in full (%d)", ErrInvalidParameters, e.amount)
	}

	if e.transferer != nil {
		ref := FundsReference{CampaignID: e.campaignID, Reason: reason}
		if err := e.transferer.Transfer(ctx, to, amount, ref); err != nil {
			return NewBusinessError(KindInternal, "ESCROW_TRANSFER_FAILED", "Escrow transfer failed", err)
		}
	}

	e.released = true
	e.amount = 0
	return nil
}

func (e *EscrowAccount) state() escrowState {
	return escrowState{amount: e.amount, released: e.released}
}

func (e *EscrowAccount) reset(s escrowState) {
	e.amount = s.amount
	e.released = s.released
}
