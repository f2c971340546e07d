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

type dealerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewDealerRepository(db *gorm.DB, logger *zap.Logger) domainRepo.DealerRepository {
	return &dealerRepository{
		db:     db,
		logger: logger,
	}
}

func (r *dealerRepository) Create(ctx context.Context, dealer *model.DealerProfile) error {
	if err := conn(ctx, r.db).Create(dealer).Error; err != nil {
		if isDuplicate(err) {
			return domainErrors.NewConflictError("dealer", dealer.UserID, "a dealer profile already exists for this user")
		}
		return fmt.Errorf("failed to create dealer profile: %w", err)
	}
	return nil
}

func (r *dealerRepository) GetByID(ctx context.Context, id int64) (*model.DealerProfile, error) {
	var dealer model.DealerProfile
	if err := conn(ctx, r.db).First(&dealer, id).Error; err != nil {
		return nil, notFound(err, "dealer", id)
	}
	return &dealer, nil
}

func (r *dealerRepository) GetByUserID(ctx context.Context, userID string) (*model.DealerProfile, error) {
	var dealer model.DealerProfile
	if err := conn(ctx, r.db).Where("user_id = ?", userID).First(&dealer).Error; err != nil {
		return nil, notFound(err, "dealer", userID)
	}
	return &dealer, nil
}

// GetForUpdate locks the dealer row; every balance mutation goes through it.
func (r *dealerRepository) GetForUpdate(ctx context.Context, id int64) (*model.DealerProfile, error) {
	var dealer model.DealerProfile
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&dealer).Error
	if err != nil {
		r.logger.Debug("Failed to lock dealer row", zap.Int64("dealer_id", id), zap.Error(err))
		return nil, notFound(err, "dealer", id)
	}
	return &dealer, nil
}

func (r *dealerRepository) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	result := conn(ctx, r.db).
		Model(&model.DealerProfile{}).
		Where("id = ?", id).
		Update("current_balance", balance)
	if result.Error != nil {
		return fmt.Errorf("failed to update dealer balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("dealer", id)
	}
	return nil
}

func (r *dealerRepository) UpdateCommissionRate(ctx context.Context, id int64, rate decimal.Decimal) error {
	result := conn(ctx, r.db).
		Model(&model.DealerProfile{}).
		Where("id = ?", id).
		Update("commission_percentage", rate)
	if result.Error != nil {
		return fmt.Errorf("failed to update commission rate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("dealer", id)
	}
	return nil
}

func (r *dealerRepository) SetVirtualCard(ctx context.Context, id int64, reference string) error {
	err := conn(ctx, r.db).
		Model(&model.DealerProfile{}).
		Where("id = ?", id).
		Update("virtual_card_reference", reference).Error
	if err != nil {
		return fmt.Errorf("failed to store virtual card: %w", err)
	}
	return nil
}

func (r *dealerRepository) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := conn(ctx, r.db).Model(&model.DealerProfile{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list dealers: %w", err)
	}
	return ids, nil
}

func (r *dealerRepository) CreateCommissionHistory(ctx context.Context, entry *model.CommissionHistory) error {
	if err := conn(ctx, r.db).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record commission change: %w", err)
	}
	return nil
}

func (r *dealerRepository) ListCommissionHistory(ctx context.Context, dealerID int64) ([]model.CommissionHistory, error) {
	var history []model.CommissionHistory
	err := conn(ctx, r.db).
		Where("dealer_id = ?", dealerID).
		Order("effective_at DESC, id DESC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list commission history: %w", err)
	}
	return history, nil
}
