package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"github.com/wekeepgrowing/carservice-backend/internal/middleware/auth"
	"github.com/wekeepgrowing/carservice-backend/internal/usecase"
)

type PayoutHandler struct {
	payouts *usecase.PayoutService
	logger  *zap.Logger
}

func NewPayoutHandler(payouts *usecase.PayoutService, logger *zap.Logger) *PayoutHandler {
	return &PayoutHandler{
		payouts: payouts,
		logger:  logger,
	}
}

// CreatePayout handles POST /payouts
func (h *PayoutHandler) CreatePayout(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}

	var req dto.CreatePayoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	payout, err := h.payouts.Request(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}

	h.logger.Info("Payout requested via API",
		zap.Int64("payout_id", payout.ID),
		zap.Int64("dealer_id", payout.DealerID),
		zap.String("amount", payout.Amount.StringFixed(2)))
	return c.JSON(http.StatusCreated, dto.NewPayoutDTO(payout))
}

// GetPayout handles GET /payouts/:id
func (h *PayoutHandler) GetPayout(c echo.Context) error {
	return h.withPayout(c, h.payouts.Get)
}

// ListPayouts handles GET /dealers/:id/payouts
func (h *PayoutHandler) ListPayouts(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var page dto.PageRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &page); err != nil {
		return domainErrors.NewValidationError("query", "malformed query parameters")
	}

	list, err := h.payouts.List(c.Request().Context(), actor, id, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Approve handles POST /payouts/:id/approve
func (h *PayoutHandler) Approve(c echo.Context) error {
	return h.withPayout(c, h.payouts.Approve)
}

// Complete handles POST /payouts/:id/complete
func (h *PayoutHandler) Complete(c echo.Context) error {
	var req dto.CompletePayoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.withPayout(c, func(ctx context.Context, actor model.Actor, id int64) (*model.PayoutRequest, error) {
		return h.payouts.Complete(ctx, actor, id, req)
	})
}

// Fail handles POST /payouts/:id/fail
func (h *PayoutHandler) Fail(c echo.Context) error {
	var req dto.FailPayoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.withPayout(c, func(ctx context.Context, actor model.Actor, id int64) (*model.PayoutRequest, error) {
		return h.payouts.Fail(ctx, actor, id, req)
	})
}

func (h *PayoutHandler) withPayout(c echo.Context, fn func(context.Context, model.Actor, int64) (*model.PayoutRequest, error)) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	payout, err := fn(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.NewPayoutDTO(payout))
}
