package usecase

import (
	"context"
	"net/url"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
)

// WebhookService manages dealer webhook endpoints and exposes their delivery history.
type WebhookService struct {
	webhooks repository.WebhookRepository
	dealers  repository.DealerRepository
	cipher   provider.SecretCipher
	logger   *zap.Logger
}

func NewWebhookService(
	webhooks repository.WebhookRepository,
	dealers repository.DealerRepository,
	cipher provider.SecretCipher,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		webhooks: webhooks,
		dealers:  dealers,
		cipher:   cipher,
		logger:   logger,
	}
}

// Create registers an endpoint. The generated secret is returned once and only
// stored encrypted.
func (s *WebhookService) Create(ctx context.Context, actor model.Actor, dealerID int64, req dto.CreateWebhookRequest) (*dto.WebhookConfigResponse, error) {
	if !actor.CanAccessDealer(dealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot configure webhooks for this dealer")
	}
	target, err := url.Parse(req.URL)
	if err != nil || (target.Scheme != "https" && target.Scheme != "http") || target.Host == "" {
		return nil, domainErrors.NewValidationError("url", "must be an absolute http(s) URL")
	}
	if len(req.EventTypes) == 0 {
		return nil, domainErrors.NewValidationError("event_types", "at least one event type is required")
	}
	for _, t := range req.EventTypes {
		if !model.EventType(t).IsKnown() {
			return nil, domainErrors.NewValidationError("event_types", "unknown event type %q", t)
		}
	}
	if _, err := s.dealers.GetByID(ctx, dealerID); err != nil {
		return nil, err
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return nil, err
	}
	sealed, nonce, err := s.cipher.Seal(secret, SecretOwner(dealerID))
	if err != nil {
		return nil, err
	}

	cfg := &model.WebhookConfiguration{
		DealerID:         dealerID,
		URL:              req.URL,
		SecretCiphertext: sealed,
		SecretIV:         nonce,
		EventTypes:       datatypes.JSONSlice[string](req.EventTypes),
		IsActive:         true,
	}
	if err := s.webhooks.CreateConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("Webhook configured",
		zap.Int64("dealer_id", dealerID),
		zap.Int64("webhook_id", cfg.ID),
		zap.Strings("event_types", req.EventTypes))
	resp := dto.NewWebhookConfigResponse(cfg, secret)
	return &resp, nil
}

func (s *WebhookService) List(ctx context.Context, actor model.Actor, dealerID int64) ([]dto.WebhookConfigResponse, error) {
	if !actor.CanAccessDealer(dealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot read this dealer's webhooks")
	}
	configs, err := s.webhooks.ListConfigs(ctx, dealerID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.WebhookConfigResponse, len(configs))
	for i := range configs {
		items[i] = dto.NewWebhookConfigResponse(&configs[i], "")
	}
	return items, nil
}

// Deactivate stops new events for the endpoint. Queued events fail on their next attempt.
func (s *WebhookService) Deactivate(ctx context.Context, actor model.Actor, dealerID, webhookID int64) error {
	if !actor.CanAccessDealer(dealerID) {
		return domainErrors.NewForbiddenError(actor.String(), "cannot configure webhooks for this dealer")
	}
	if err := s.webhooks.DeactivateConfig(ctx, dealerID, webhookID); err != nil {
		return err
	}
	s.logger.Info("Webhook deactivated", zap.Int64("dealer_id", dealerID), zap.Int64("webhook_id", webhookID))
	return nil
}

func (s *WebhookService) ListEvents(ctx context.Context, actor model.Actor, dealerID int64, page dto.PageRequest) (*dto.WebhookEventListResponse, error) {
	if !actor.CanAccessDealer(dealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot read this dealer's webhook events")
	}
	page.SetDefaults()

	events, total, err := s.webhooks.ListEvents(ctx, dealerID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return &dto.WebhookEventListResponse{
		Events:     events,
		Pagination: dto.NewPaginationInfo(page, len(events), total),
	}, nil
}

// GetEvent returns one event with its attempt log.
func (s *WebhookService) GetEvent(ctx context.Context, actor model.Actor, eventID string) (*model.WebhookEvent, error) {
	event, err := s.webhooks.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessDealer(event.DealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot read this webhook event")
	}
	return event, nil
}
