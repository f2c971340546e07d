package repository

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	domainRepo "github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"gorm.io/gorm"
)

type txKey struct{}

// TransactionManager keeps the active *gorm.DB transaction in the context so that
// repositories called from a use case share it.
type TransactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) domainRepo.TransactionManager {
	return &TransactionManager{db: db}
}

// RunInTransaction opens a transaction, or a savepoint when ctx already carries one.
func (m *TransactionManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return ExtractTx(ctx, m.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}

// ExtractTx returns the transaction stored in ctx or fallback.
func ExtractTx(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback
}

func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	return ExtractTx(ctx, db).WithContext(ctx)
}

// notFound converts gorm.ErrRecordNotFound into a domain NotFoundError.
func notFound(err error, entity string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErrors.NewNotFoundError(entity, id)
	}
	return fmt.Errorf("failed to load %s %v: %w", entity, id, err)
}
