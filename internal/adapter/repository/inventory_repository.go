package repository

import (
	"context"
	"fmt"

	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type inventoryRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewInventoryRepository(db *gorm.DB, logger *zap.Logger) domainRepo.InventoryRepository {
	return &inventoryRepository{
		db:     db,
		logger: logger,
	}
}

func (r *inventoryRepository) GetSlot(ctx context.Context, id int64) (*model.ServiceSlot, error) {
	var slot model.ServiceSlot
	if err := conn(ctx, r.db).First(&slot, id).Error; err != nil {
		return nil, notFound(err, "service_slot", id)
	}
	return &slot, nil
}

// ReserveSlot decrements capacity in a single conditional update so two bookings
// cannot take the last seat.
func (r *inventoryRepository) ReserveSlot(ctx context.Context, id int64) error {
	result := conn(ctx, r.db).
		Model(&model.ServiceSlot{}).
		Where("id = ? AND available_capacity > 0 AND is_active = ? AND is_blocked = ?", id, true, false).
		UpdateColumn("available_capacity", gorm.Expr("available_capacity - 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to reserve slot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewValidationError("slot_id", "slot %d is not available", id)
	}
	return nil
}

func (r *inventoryRepository) ReleaseSlot(ctx context.Context, id int64) error {
	err := conn(ctx, r.db).
		Model(&model.ServiceSlot{}).
		Where("id = ? AND available_capacity < total_capacity", id).
		UpdateColumn("available_capacity", gorm.Expr("available_capacity + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

func (r *inventoryRepository) GetVehicle(ctx context.Context, id int64) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := conn(ctx, r.db).First(&vehicle, id).Error; err != nil {
		return nil, notFound(err, "vehicle", id)
	}
	return &vehicle, nil
}

func (r *inventoryRepository) GetCancellationPolicy(ctx context.Context, id int64) (*model.CancellationPolicy, error) {
	var policy model.CancellationPolicy
	if err := conn(ctx, r.db).First(&policy, id).Error; err != nil {
		return nil, notFound(err, "cancellation_policy", id)
	}
	return &policy, nil
}
