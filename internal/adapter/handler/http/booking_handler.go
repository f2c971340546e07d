package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"github.com/wekeepgrowing/carservice-backend/internal/middleware/auth"
	"github.com/wekeepgrowing/carservice-backend/internal/usecase"
)

type BookingHandler struct {
	bookings *usecase.BookingService
	logger   *zap.Logger
}

func NewBookingHandler(bookings *usecase.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		logger:   logger,
	}
}

// CreateBooking handles POST /bookings
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}

	var req dto.CreateBookingRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	booking, err := h.bookings.Create(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}

	h.logger.Debug("Booking created via API",
		zap.Int64("booking_id", booking.ID),
		zap.String("actor", actor.String()))
	return c.JSON(http.StatusCreated, booking)
}

// GetBooking handles GET /bookings/:id. Reading an overdue pending booking expires it.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	return h.withBooking(c, func(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
		return h.bookings.Get(ctx, actor, id)
	})
}

// GetHistory handles GET /bookings/:id/history
func (h *BookingHandler) GetHistory(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	history, err := h.bookings.History(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"history": history})
}

// Respond handles POST /bookings/:id/respond
func (h *BookingHandler) Respond(c echo.Context) error {
	var req dto.RespondBookingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.withBooking(c, func(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
		return h.bookings.Respond(ctx, actor, id, req)
	})
}

// Cancel handles POST /bookings/:id/cancel
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req dto.CancelBookingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.withBooking(c, func(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
		return h.bookings.Cancel(ctx, actor, id, req)
	})
}

// Complete handles POST /bookings/:id/complete
func (h *BookingHandler) Complete(c echo.Context) error {
	return h.withBooking(c, h.bookings.Complete)
}

// MarkNoShow handles POST /bookings/:id/no-show
func (h *BookingHandler) MarkNoShow(c echo.Context) error {
	return h.withBooking(c, h.bookings.MarkNoShow)
}

func (h *BookingHandler) withBooking(c echo.Context, fn func(context.Context, model.Actor, int64) (*model.Booking, error)) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	booking, err := fn(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, booking)
}
