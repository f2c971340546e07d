package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewLedgerRepository(db *gorm.DB, logger *zap.Logger) domainRepo.LedgerRepository {
	return &ledgerRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ledgerRepository) Create(ctx context.Context, entry *model.BalanceTransaction) error {
	if err := conn(ctx, r.db).Create(entry).Error; err != nil {
		if isDuplicate(err) {
			return domainErrors.NewConflictError("balance_transaction", entry.SourceRef, "entry already posted")
		}
		r.logger.Error("Failed to insert ledger entry",
			zap.Int64("dealer_id", entry.DealerID),
			zap.String("source_ref", entry.SourceRef),
			zap.String("type", string(entry.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to create balance transaction: %w", err)
	}
	return nil
}

// FindBySource returns nil, nil when no entry exists for the pair.
func (r *ledgerRepository) FindBySource(ctx context.Context, sourceRef string, txType model.TransactionType) (*model.BalanceTransaction, error) {
	var entry model.BalanceTransaction
	err := conn(ctx, r.db).
		Where("source_ref = ? AND type = ?", sourceRef, txType).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction by source: %w", err)
	}
	return &entry, nil
}

func (r *ledgerRepository) List(ctx context.Context, filter domainRepo.LedgerFilter) ([]model.BalanceTransaction, int64, error) {
	query := conn(ctx, r.db).Model(&model.BalanceTransaction{}).Where("dealer_id = ?", filter.DealerID)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []model.BalanceTransaction
	if err := query.Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
		r.logger.Error("Failed to get transaction history",
			zap.Int64("dealer_id", filter.DealerID),
			zap.Error(err))
		return nil, 0, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return entries, total, nil
}

// Sum adds the amounts in decimal arithmetic; SQL SUM over floating columns is not exact
// on every driver.
func (r *ledgerRepository) Sum(ctx context.Context, dealerID int64) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := conn(ctx, r.db).
		Model(&model.BalanceTransaction{}).
		Where("dealer_id = ?", dealerID).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}
