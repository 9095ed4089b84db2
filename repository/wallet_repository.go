package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/likebounty/models"
	"github.com/amirphl/likebounty/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepositoryImpl implements WalletRepository interface
type WalletRepositoryImpl struct {
	*BaseRepository[models.Wallet, models.WalletFilter]
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &WalletRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Wallet, models.WalletFilter](db, applyWalletFilter),
	}
}

// ByIdentity finds a wallet by its owner identity
func (r *WalletRepositoryImpl) ByIdentity(ctx context.Context, identity string) (*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallet models.Wallet
	err := db.Where("identity = ?", identity).Last(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// Ensure returns the wallet of identity, creating an empty one when missing
func (r *WalletRepositoryImpl) Ensure(ctx context.Context, identity string) (*models.Wallet, error) {
	db := r.getDB(ctx)
	wallet := &models.Wallet{Identity: identity}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoNothing: true,
	}).Create(wallet).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure wallet: %w", err)
	}

	existing, err := r.ByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("wallet of %s vanished after creation", identity)
	}
	return existing, nil
}

// Credit adds amount to the wallet balance and returns the updated wallet
func (r *WalletRepositoryImpl) Credit(ctx context.Context, walletID uint, amount uint64) (*models.Wallet, error) {
	db := r.getDB(ctx)
	result := db.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to credit wallet %d: %w", walletID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("wallet %d not found", walletID)
	}
	return r.ByID(ctx, uint64(walletID))
}

// Debit subtracts amount from the wallet balance when it is covered. The
// returned flag is false when the balance was too low and nothing changed.
func (r *WalletRepositoryImpl) Debit(ctx context.Context, walletID uint, amount uint64) (*models.Wallet, bool, error) {
	db := r.getDB(ctx)
	result := db.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to debit wallet %d: %w", walletID, result.Error)
	}

	wallet, err := r.ByID(ctx, uint64(walletID))
	if err != nil {
		return nil, false, err
	}
	return wallet, result.RowsAffected == 1, nil
}

func applyWalletFilter(query *gorm.DB, filter models.WalletFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Identity != nil {
		query = query.Where("identity = ?", *filter.Identity)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
