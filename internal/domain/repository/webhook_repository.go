package repository

import (
	"context"
	"time"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

type WebhookRepository interface {
	CreateConfig(ctx context.Context, cfg *model.WebhookConfiguration) error
	GetConfig(ctx context.Context, id int64) (*model.WebhookConfiguration, error)
	ListConfigs(ctx context.Context, dealerID int64) ([]model.WebhookConfiguration, error)
	ListActiveConfigs(ctx context.Context, dealerID int64) ([]model.WebhookConfiguration, error)
	DeactivateConfig(ctx context.Context, dealerID, id int64) error

	CreateEvents(ctx context.Context, events []*model.WebhookEvent) error
	GetEvent(ctx context.Context, id string) (*model.WebhookEvent, error)
	// ListDue returns pending events whose next attempt is due, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.WebhookEvent, error)
	// Claim moves a pending event to delivering and counts the attempt. It
	// returns false when another worker got there first.
	Claim(ctx context.Context, event *model.WebhookEvent, now time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	Reschedule(ctx context.Context, id string, next time.Time, lastError string) error
	MarkFailed(ctx context.Context, id string, at time.Time, lastError string) error
	// ReleaseStale handles events stuck in delivering since before cutoff: those
	// with attempts left go back to pending (released), the rest fail at now
	// (exhausted).
	ReleaseStale(ctx context.Context, cutoff, now time.Time) (released, exhausted int64, err error)
	ListEvents(ctx context.Context, dealerID int64, limit, offset int) ([]model.WebhookEvent, int64, error)

	CreateLog(ctx context.Context, log *model.WebhookLog) error
	ListLogs(ctx context.Context, eventID string) ([]model.WebhookLog, error)
}
