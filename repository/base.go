// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// FilterFunc narrows a query to the rows matching a filter
type FilterFunc[F any] func(db *gorm.DB, filter F) *gorm.DB

// BaseRepository provides common repository functionality with transaction support
type BaseRepository[T any, F any] struct {
	DB          *gorm.DB
	applyFilter FilterFunc[F]
}

// NewBaseRepository creates a new base repository instance
func NewBaseRepository[T any, F any](db *gorm.DB, applyFilter FilterFunc[F]) *BaseRepository[T, F] {
	if applyFilter == nil {
		applyFilter = func(db *gorm.DB, _ F) *gorm.DB { return db }
	}
	return &BaseRepository[T, F]{
		DB:          db,
		applyFilter: applyFilter,
	}
}

// getDB returns the appropriate database connection (with or without transaction)
func (r *BaseRepository[T, F]) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB.WithContext(ctx)
}

// getDBForWrite returns database connection with transaction for write operations
func (r *BaseRepository[T, F]) getDBForWrite(ctx context.Context) (*gorm.DB, bool, error) {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx), false, nil // Transaction already exists, don't commit
	}

	// Start new transaction for write operation
	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	return tx, true, nil // New transaction, should commit
}

// ByID retrieves an entity by its ID
func (r *BaseRepository[T, F]) ByID(ctx context.Context, id uint64) (*T, error) {
	db := r.getDB(ctx)

	var entity T
	err := db.Last(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find entity by ID %d: %w", id, err)
	}

	return &entity, nil
}

// ByFilter retrieves entities based on filter criteria
func (r *BaseRepository[T, F]) ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error) {
	db := r.getDB(ctx)

	var entity T
	query := r.applyFilter(db.Model(&entity), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var entities []*T
	if err := query.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to find entities by filter: %w", err)
	}

	return entities, nil
}

// Save inserts a new entity
func (r *BaseRepository[T, F]) Save(ctx context.Context, entity *T) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Create(entity).Error
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	return nil
}

// SaveBatch inserts multiple entities in a single transaction
func (r *BaseRepository[T, F]) SaveBatch(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.CreateInBatches(entities, 100).Error // Batch size of 100
	if err != nil {
		return fmt.Errorf("failed to save batch entities: %w", err)
	}

	return nil
}

// Count returns the number of entities matching the filter
func (r *BaseRepository[T, F]) Count(ctx context.Context, filter F) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var entity T
	query := r.applyFilter(db.Model(&entity), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}

	return count, nil
}

// Exists checks if any entity matching the filter exists
func (r *BaseRepository[T, F]) Exists(ctx context.Context, filter F) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// WithTransaction executes a function within a database transaction. When ctx
// already carries a transaction the function joins it instead of nesting.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(context.Context) error) (err error) {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	ctx = context.WithValue(ctx, TxContextKey, tx)

	if err := fn(ctx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
