package repository

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type bookingRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewBookingRepository(db *gorm.DB, logger *zap.Logger) domainRepo.BookingRepository {
	return &bookingRepository{
		db:     db,
		logger: logger,
	}
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if booking.Version == 0 {
		booking.Version = 1
	}
	if err := conn(ctx, r.db).Create(booking).Error; err != nil {
		if isDuplicate(err) {
			return domainErrors.NewConflictError("booking", booking.BookingNumber, "booking already exists")
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	var booking model.Booking
	if err := conn(ctx, r.db).First(&booking, id).Error; err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &booking, nil
}

// UpdateIfVersion writes the mutable columns guarded by the version the caller read.
func (r *bookingRepository) UpdateIfVersion(ctx context.Context, booking *model.Booking) error {
	expected := booking.Version
	result := conn(ctx, r.db).
		Model(&model.Booking{}).
		Where("id = ? AND version = ?", booking.ID, expected).
		Updates(map[string]interface{}{
			"status":              booking.Status,
			"version":             expected + 1,
			"refund_amount":       booking.RefundAmount,
			"responded_at":        booking.RespondedAt,
			"completed_at":        booking.CompletedAt,
			"cancelled_at":        booking.CancelledAt,
			"cancelled_by":        booking.CancelledBy,
			"cancellation_reason": booking.CancellationReason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		r.logger.Info("Booking version changed concurrently",
			zap.Int64("booking_id", booking.ID),
			zap.Int64("expected_version", expected))
		return domainErrors.NewConflictError("booking", booking.ID, "booking was modified concurrently")
	}
	booking.Version = expected + 1
	return nil
}

func (r *bookingRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	var ids []int64
	query := conn(ctx, r.db).
		Model(&model.Booking{}).
		Where("status = ? AND dealer_response_deadline < ?", model.BookingStatusPending, now).
		Order("dealer_response_deadline")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list overdue bookings: %w", err)
	}
	return ids, nil
}

func (r *bookingRepository) AddHistory(ctx context.Context, entry *model.BookingStatusHistory) error {
	if err := conn(ctx, r.db).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record booking history: %w", err)
	}
	return nil
}

func (r *bookingRepository) ListHistory(ctx context.Context, bookingID int64) ([]model.BookingStatusHistory, error) {
	var history []model.BookingStatusHistory
	err := conn(ctx, r.db).
		Where("booking_id = ?", bookingID).
		Order("id").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list booking history: %w", err)
	}
	return history, nil
}
