package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/middleware/auth"
	"github.com/wekeepgrowing/carservice-backend/internal/usecase"
)

// WebhookHandler manages dealer webhook endpoints and their delivery log.
type WebhookHandler struct {
	webhooks *usecase.WebhookService
	logger   *zap.Logger
}

func NewWebhookHandler(webhooks *usecase.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		logger:   logger,
	}
}

// CreateWebhook handles POST /dealers/:id/webhooks. The response carries the
// signing secret; it is not shown again.
func (h *WebhookHandler) CreateWebhook(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	dealerID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.CreateWebhookRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	cfg, err := h.webhooks.Create(c.Request().Context(), actor, dealerID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cfg)
}

// ListWebhooks handles GET /dealers/:id/webhooks
func (h *WebhookHandler) ListWebhooks(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	dealerID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	configs, err := h.webhooks.List(c.Request().Context(), actor, dealerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"webhooks": configs})
}

// DeactivateWebhook handles DELETE /dealers/:id/webhooks/:webhookId
func (h *WebhookHandler) DeactivateWebhook(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	dealerID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	webhookID, err := paramID(c, "webhookId")
	if err != nil {
		return err
	}

	if err := h.webhooks.Deactivate(c.Request().Context(), actor, dealerID, webhookID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListEvents handles GET /dealers/:id/webhook-events
func (h *WebhookHandler) ListEvents(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	dealerID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var page dto.PageRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &page); err != nil {
		return domainErrors.NewValidationError("query", "malformed query parameters")
	}

	events, err := h.webhooks.ListEvents(c.Request().Context(), actor, dealerID, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

// GetEvent handles GET /webhook-events/:eventId
func (h *WebhookHandler) GetEvent(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}

	event, err := h.webhooks.GetEvent(c.Request().Context(), actor, c.Param("eventId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, event)
}
