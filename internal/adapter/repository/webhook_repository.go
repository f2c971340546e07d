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

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WebhookRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
	}
}

func (r *webhookRepository) CreateConfig(ctx context.Context, cfg *model.WebhookConfiguration) error {
	if err := conn(ctx, r.db).Create(cfg).Error; err != nil {
		return fmt.Errorf("failed to create webhook configuration: %w", err)
	}
	return nil
}

func (r *webhookRepository) GetConfig(ctx context.Context, id int64) (*model.WebhookConfiguration, error) {
	var cfg model.WebhookConfiguration
	if err := conn(ctx, r.db).First(&cfg, id).Error; err != nil {
		return nil, notFound(err, "webhook_configuration", id)
	}
	return &cfg, nil
}

func (r *webhookRepository) ListConfigs(ctx context.Context, dealerID int64) ([]model.WebhookConfiguration, error) {
	var configs []model.WebhookConfiguration
	if err := conn(ctx, r.db).Where("dealer_id = ?", dealerID).Order("id").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook configurations: %w", err)
	}
	return configs, nil
}

func (r *webhookRepository) ListActiveConfigs(ctx context.Context, dealerID int64) ([]model.WebhookConfiguration, error) {
	var configs []model.WebhookConfiguration
	err := conn(ctx, r.db).
		Where("dealer_id = ? AND is_active = ?", dealerID, true).
		Order("id").
		Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active webhook configurations: %w", err)
	}
	return configs, nil
}

func (r *webhookRepository) DeactivateConfig(ctx context.Context, dealerID, id int64) error {
	result := conn(ctx, r.db).
		Model(&model.WebhookConfiguration{}).
		Where("id = ? AND dealer_id = ?", id, dealerID).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate webhook configuration: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("webhook_configuration", id)
	}
	return nil
}

func (r *webhookRepository) CreateEvents(ctx context.Context, events []*model.WebhookEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := conn(ctx, r.db).Create(events).Error; err != nil {
		return fmt.Errorf("failed to enqueue webhook events: %w", err)
	}
	return nil
}

func (r *webhookRepository) GetEvent(ctx context.Context, id string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	err := conn(ctx, r.db).
		Preload("Logs", func(db *gorm.DB) *gorm.DB { return db.Order("attempt") }).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, notFound(err, "webhook_event", id)
	}
	return &event, nil
}

func (r *webhookRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.WebhookEvent, error) {
	var events []model.WebhookEvent
	query := conn(ctx, r.db).
		Where("status = ? AND next_attempt_at <= ?", model.WebhookStatusPending, now).
		Order("created_at, id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list due webhook events: %w", err)
	}
	return events, nil
}

// Claim is a compare-and-swap on status; only one dispatcher instance wins an event.
// An event that has used all its attempts is never claimed again.
func (r *webhookRepository) Claim(ctx context.Context, event *model.WebhookEvent, now time.Time) (bool, error) {
	result := conn(ctx, r.db).
		Model(&model.WebhookEvent{}).
		Where("id = ? AND status = ? AND attempts = ? AND attempts < max_attempts",
			event.ID, model.WebhookStatusPending, event.Attempts).
		Updates(map[string]interface{}{
			"status":    model.WebhookStatusDelivering,
			"attempts":  event.Attempts + 1,
			"locked_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim webhook event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	event.Status = model.WebhookStatusDelivering
	event.Attempts++
	event.LockedAt = &now
	return true, nil
}

func (r *webhookRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":       model.WebhookStatusDelivered,
		"delivered_at": at,
		"locked_at":    nil,
		"last_error":   "",
	})
}

func (r *webhookRepository) Reschedule(ctx context.Context, id string, next time.Time, lastError string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":          model.WebhookStatusPending,
		"next_attempt_at": next,
		"locked_at":       nil,
		"last_error":      lastError,
	})
}

func (r *webhookRepository) MarkFailed(ctx context.Context, id string, at time.Time, lastError string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":     model.WebhookStatusFailed,
		"failed_at":  at,
		"locked_at":  nil,
		"last_error": lastError,
	})
}

const abandonedDelivery = "final attempt abandoned without a result"

// finish only moves events out of delivering, so terminal states are never left.
func (r *webhookRepository) finish(ctx context.Context, id string, updates map[string]interface{}) error {
	result := conn(ctx, r.db).
		Model(&model.WebhookEvent{}).
		Where("id = ? AND status = ?", id, model.WebhookStatusDelivering).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update webhook event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewConflictError("webhook_event", id, "event is not being delivered")
	}
	return nil
}

func (r *webhookRepository) ReleaseStale(ctx context.Context, cutoff, now time.Time) (int64, int64, error) {
	stale := func() *gorm.DB {
		return conn(ctx, r.db).
			Model(&model.WebhookEvent{}).
			Where("status = ? AND locked_at < ?", model.WebhookStatusDelivering, cutoff)
	}

	exhausted := stale().
		Where("attempts >= max_attempts").
		Updates(map[string]interface{}{
			"status":     model.WebhookStatusFailed,
			"failed_at":  now,
			"locked_at":  nil,
			"last_error": abandonedDelivery,
		})
	if exhausted.Error != nil {
		return 0, 0, fmt.Errorf("failed to fail abandoned webhook events: %w", exhausted.Error)
	}

	released := stale().
		Where("attempts < max_attempts").
		Updates(map[string]interface{}{
			"status":    model.WebhookStatusPending,
			"locked_at": nil,
		})
	if released.Error != nil {
		return 0, exhausted.RowsAffected, fmt.Errorf("failed to release stale webhook events: %w", released.Error)
	}
	return released.RowsAffected, exhausted.RowsAffected, nil
}

func (r *webhookRepository) ListEvents(ctx context.Context, dealerID int64, limit, offset int) ([]model.WebhookEvent, int64, error) {
	query := conn(ctx, r.db).Model(&model.WebhookEvent{}).Where("dealer_id = ?", dealerID)
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count webhook events: %w", err)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var events []model.WebhookEvent
	if err := query.Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return events, total, nil
}

func (r *webhookRepository) CreateLog(ctx context.Context, log *model.WebhookLog) error {
	if err := conn(ctx, r.db).Create(log).Error; err != nil {
		return fmt.Errorf("failed to write webhook log: %w", err)
	}
	return nil
}

func (r *webhookRepository) ListLogs(ctx context.Context, eventID string) ([]model.WebhookLog, error) {
	var logs []model.WebhookLog
	if err := conn(ctx, r.db).Where("event_id = ?", eventID).Order("attempt").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}
	return logs, nil
}
