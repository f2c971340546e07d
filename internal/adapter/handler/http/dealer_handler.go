package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	"github.com/wekeepgrowing/carservice-backend/internal/middleware/auth"
	"github.com/wekeepgrowing/carservice-backend/internal/usecase"
)

type DealerHandler struct {
	dealers *usecase.DealerService
	logger  *zap.Logger
}

func NewDealerHandler(dealers *usecase.DealerService, logger *zap.Logger) *DealerHandler {
	return &DealerHandler{
		dealers: dealers,
		logger:  logger,
	}
}

// CreateDealer handles POST /dealers
func (h *DealerHandler) CreateDealer(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}

	var req dto.CreateDealerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	dealer, err := h.dealers.CreateProfile(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dealer)
}

// GetDealer handles GET /dealers/:id
func (h *DealerHandler) GetDealer(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	dealer, err := h.dealers.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dealer)
}

// UpdateCommission handles PUT /dealers/:id/commission
func (h *DealerHandler) UpdateCommission(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateCommissionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	entry, err := h.dealers.UpdateCommissionRate(c.Request().Context(), actor, id, req)
	if err != nil {
		return err
	}

	h.logger.Info("Commission rate updated via API",
		zap.Int64("dealer_id", id),
		zap.String("actor", actor.String()),
		zap.String("new_rate", entry.NewRate.StringFixed(2)))
	return c.JSON(http.StatusOK, entry)
}

// GetCommissionHistory handles GET /dealers/:id/commission-history
func (h *DealerHandler) GetCommissionHistory(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	history, err := h.dealers.CommissionHistory(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"history": history})
}

// IssueVirtualCard handles POST /dealers/:id/virtual-card
func (h *DealerHandler) IssueVirtualCard(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	card, err := h.dealers.IssueVirtualCard(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, card)
}
