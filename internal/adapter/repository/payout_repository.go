package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type payoutRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPayoutRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PayoutRepository {
	return &payoutRepository{
		db:     db,
		logger: logger,
	}
}

func (r *payoutRepository) Create(ctx context.Context, payout *model.PayoutRequest) error {
	if err := conn(ctx, r.db).Create(payout).Error; err != nil {
		if isDuplicate(err) {
			return domainErrors.NewConflictError("payout", payout.TransactionReference, "duplicate transaction reference")
		}
		return fmt.Errorf("failed to create payout request: %w", err)
	}
	return nil
}

func (r *payoutRepository) GetByID(ctx context.Context, id int64) (*model.PayoutRequest, error) {
	var payout model.PayoutRequest
	if err := conn(ctx, r.db).First(&payout, id).Error; err != nil {
		return nil, notFound(err, "payout", id)
	}
	return &payout, nil
}

func (r *payoutRepository) GetForUpdate(ctx context.Context, id int64) (*model.PayoutRequest, error) {
	var payout model.PayoutRequest
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, notFound(err, "payout", id)
	}
	return &payout, nil
}

func (r *payoutRepository) UpdateIfStatus(ctx context.Context, payout *model.PayoutRequest, from model.PayoutStatus) error {
	result := conn(ctx, r.db).
		Model(&model.PayoutRequest{}).
		Where("id = ? AND status = ?", payout.ID, from).
		Updates(map[string]interface{}{
			"status":               payout.Status,
			"settlement_reference": payout.SettlementReference,
			"failure_reason":       payout.FailureReason,
			"processed_by":         payout.ProcessedBy,
			"approved_at":          payout.ApprovedAt,
			"completed_at":         payout.CompletedAt,
			"failed_at":            payout.FailedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update payout: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		r.logger.Info("Payout status changed concurrently",
			zap.Int64("payout_id", payout.ID),
			zap.String("expected_status", string(from)))
		return domainErrors.NewConflictError("payout", payout.ID, fmt.Sprintf("payout is no longer %s", from))
	}
	return nil
}

func (r *payoutRepository) SumPending(ctx context.Context, dealerID int64) (decimal.Decimal, error) {
	var pending []model.PayoutRequest
	err := conn(ctx, r.db).
		Select("amount", "processing_fee").
		Where("dealer_id = ? AND status = ?", dealerID, model.PayoutStatusRequested).
		Find(&pending).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum pending payouts: %w", err)
	}

	total := decimal.Zero
	for i := range pending {
		total = total.Add(pending[i].DebitAmount())
	}
	return total, nil
}

func (r *payoutRepository) ListByDealer(ctx context.Context, dealerID int64, limit, offset int) ([]model.PayoutRequest, int64, error) {
	query := conn(ctx, r.db).Model(&model.PayoutRequest{}).Where("dealer_id = ?", dealerID)
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payouts: %w", err)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var payouts []model.PayoutRequest
	if err := query.Order("created_at DESC, id DESC").Find(&payouts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payouts: %w", err)
	}
	return payouts, total, nil
}
