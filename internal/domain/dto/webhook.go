package dto

import (
	"time"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

type CreateWebhookRequest struct {
	URL        string   `json:"url" validate:"required,url,max=500"`
	EventTypes []string `json:"event_types" validate:"required,min=1,dive,required"`
}

// WebhookConfigResponse carries the signing secret only in the create response.
type WebhookConfigResponse struct {
	ID         int64     `json:"id"`
	DealerID   int64     `json:"dealer_id"`
	URL        string    `json:"url"`
	EventTypes []string  `json:"event_types"`
	IsActive   bool      `json:"is_active"`
	Secret     string    `json:"secret,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type WebhookEventListResponse struct {
	Events     []model.WebhookEvent `json:"events"`
	Pagination PaginationInfo       `json:"pagination"`
}

func NewWebhookConfigResponse(cfg *model.WebhookConfiguration, secret string) WebhookConfigResponse {
	return WebhookConfigResponse{
		ID:         cfg.ID,
		DealerID:   cfg.DealerID,
		URL:        cfg.URL,
		EventTypes: []string(cfg.EventTypes),
		IsActive:   cfg.IsActive,
		Secret:     secret,
		CreatedAt:  cfg.CreatedAt,
	}
}
