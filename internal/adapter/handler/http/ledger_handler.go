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

type LedgerHandler struct {
	ledger *usecase.LedgerService
	logger *zap.Logger
}

func NewLedgerHandler(ledger *usecase.LedgerService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		logger: logger,
	}
}

// GetBalance handles GET /dealers/:id/balance
func (h *LedgerHandler) GetBalance(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	balance, err := h.ledger.GetBalance(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balance)
}

// GetTransactions handles GET /dealers/:id/transactions?type=&limit=&offset=
func (h *LedgerHandler) GetTransactions(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var filters dto.TransactionFilters
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &filters); err != nil {
		return domainErrors.NewValidationError("query", "malformed query parameters")
	}

	history, err := h.ledger.History(c.Request().Context(), actor, id, filters)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}

// CreateAdjustment handles POST /dealers/:id/adjustments
func (h *LedgerHandler) CreateAdjustment(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.AdjustmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	entry, err := h.ledger.Adjust(c.Request().Context(), actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.NewTransactionDTO(entry))
}

// VerifyBalance handles GET /admin/dealers/:id/verify. An inconsistent balance is
// reported in the body, not as an error.
func (h *LedgerHandler) VerifyBalance(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domainErrors.NewForbiddenError(actor.String(), "balance verification is admin only")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.ledger.VerifyBalance(c.Request().Context(), id)
	if err != nil && !domainErrors.IsIntegrity(err) {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
