package businessflow

import (
	"context"
	"fmt"
	"math"

	"github.com/amirphl/likebounty/app/dto"
	"github.com/amirphl/likebounty/models"
	"github.com/amirphl/likebounty/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const walletHistoryLimit = 20

// maxWalletBalance keeps balances inside a signed bigint column
const maxWalletBalance uint64 = math.MaxInt64

// WalletFlow handles wallet balances. It is the payment source for campaign
// creation and the destination of payouts and refunds.
type WalletFlow interface {
	FundsCollector
	FundsTransferer
	Deposit(ctx context.Context, identity string, req *dto.DepositRequest) (*dto.WalletResponse, error)
	Wallet(ctx context.Context, identity string) (*dto.WalletResponse, error)
}

// WalletFlowImpl implements the wallet business flow
type WalletFlowImpl struct {
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	db              *gorm.DB
}

// NewWalletFlow creates a new wallet flow instance
func NewWalletFlow(
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	db *gorm.DB,
) WalletFlow {
	return &WalletFlowImpl{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		db:              db,
	}
}

// Deposit credits identity's wallet
func (f *WalletFlowImpl) Deposit(ctx context.Context, identity string, req *dto.DepositRequest) (*dto.WalletResponse, error) {
	if identity == "" {
		return nil, NewBusinessError(KindValidation, "IDENTITY_REQUIRED", "Wallet identity is required", ErrEmptyIdentity)
	}
	if req.Amount == 0 {
		return nil, NewBusinessError(KindValidation, "AMOUNT_TOO_LOW", "Deposit amount must be positive", ErrAmountTooLow)
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		return f.credit(txCtx, identity, req.Amount, models.TransactionTypeDeposit, 0, "Wallet deposit")
	})
	if err != nil {
		return nil, asBusinessError(err, "DEPOSIT_FAILED", "Failed to deposit")
	}

	return f.Wallet(ctx, identity)
}

// Wallet returns identity's balance and latest transactions
func (f *WalletFlowImpl) Wallet(ctx context.Context, identity string) (*dto.WalletResponse, error) {
	wallet, err := f.walletRepo.ByIdentity(ctx, identity)
	if err != nil {
		return nil, NewBusinessError(KindInternal, "WALLET_LOOKUP_FAILED", "Failed to load wallet", err)
	}
	if wallet == nil {
		return nil, NewBusinessError(KindNotFound, "WALLET_NOT_FOUND", "Wallet not found", ErrWalletNotFound)
	}

	txs, err := f.transactionRepo.ListByWallet(ctx, wallet.ID, walletHistoryLimit, 0)
	if err != nil {
		return nil, NewBusinessError(KindInternal, "WALLET_LOOKUP_FAILED", "Failed to load wallet transactions", err)
	}

	resp := &dto.WalletResponse{
		Identity:     wallet.Identity,
		Balance:      wallet.Balance,
		Transactions: make([]dto.TransactionItem, 0, len(txs)),
	}
	for _, t := range txs {
		resp.Transactions = append(resp.Transactions, dto.TransactionItem{
			UUID:          t.UUID.String(),
			Type:          string(t.Type),
			Status:        string(t.Status),
			Amount:        t.Amount,
			BalanceBefore: t.BalanceBefore,
			BalanceAfter:  t.BalanceAfter,
			CampaignID:    t.CampaignID,
			Description:   t.Description,
			CreatedAt:     t.CreatedAt,
		})
	}
	return resp, nil
}

// Collect debits the sponsor's wallet into escrow
func (f *WalletFlowImpl) Collect(ctx context.Context, from string, amount uint64, ref FundsReference) error {
	return repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		wallet, err := f.walletRepo.ByIdentity(txCtx, from)
		if err != nil {
			return fmt.Errorf("failed to load wallet of %s: %w", from, err)
		}
		if wallet == nil {
			return NewBusinessErrorf(KindConflict, "INSUFFICIENT_BALANCE", "Wallet balance is below %d", ErrInsufficientBalance, amount)
		}

		updated, ok, err := f.walletRepo.Debit(txCtx, wallet.ID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return NewBusinessErrorf(KindConflict, "INSUFFICIENT_BALANCE", "Wallet balance is below %d", ErrInsufficientBalance, amount)
		}

		return f.transactionRepo.Save(txCtx, &models.Transaction{
			CorrelationID: uuid.New(),
			Type:          models.TransactionTypeEscrowHold,
			Status:        models.TransactionStatusCompleted,
			Amount:        amount,
			WalletID:      wallet.ID,
			Identity:      from,
			BalanceBefore: updated.Balance + amount,
			BalanceAfter:  updated.Balance,
			CampaignID:    ref.CampaignID,
			Description:   fmt.Sprintf("Reward escrowed for campaign %d", ref.CampaignID),
		})
	})
}

// Transfer credits escrowed funds to the destination wallet
func (f *WalletFlowImpl) Transfer(ctx context.Context, to string, amount uint64, ref FundsReference) error {
	txType := models.TransactionTypePayout
	description := fmt.Sprintf("Payout of campaign %d", ref.CampaignID)
	if ref.Reason == FundsReasonRefund {
		txType = models.TransactionTypeRefund
		description = fmt.Sprintf("Refund of campaign %d", ref.CampaignID)
	}

	return repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		return f.credit(txCtx, to, amount, txType, ref.CampaignID, description)
	})
}

func (f *WalletFlowImpl) credit(ctx context.Context, identity string, amount uint64, txType models.TransactionType, campaignID uint64, description string) error {
	wallet, err := f.walletRepo.Ensure(ctx, identity)
	if err != nil {
		return err
	}
	if wallet.Balance > maxWalletBalance || amount > maxWalletBalance-wallet.Balance {
		return NewBusinessErrorf(KindValidation, "BALANCE_LIMIT_EXCEEDED", "Wallet balance cannot exceed %d", ErrBalanceLimit, maxWalletBalance)
	}
	updated, err := f.walletRepo.Credit(ctx, wallet.ID, amount)
	if err != nil {
		return err
	}

	return f.transactionRepo.Save(ctx, &models.Transaction{
		CorrelationID: uuid.New(),
		Type:          txType,
		Status:        models.TransactionStatusCompleted,
		Amount:        amount,
		WalletID:      wallet.ID,
		Identity:      identity,
		BalanceBefore: updated.Balance - amount,
		BalanceAfter:  updated.Balance,
		CampaignID:    campaignID,
		Description:   description,
	})
}
