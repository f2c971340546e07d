package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/wekeepgrowing/carservice-backend/internal/adapter/handler/http"
	"github.com/wekeepgrowing/carservice-backend/internal/config"
	"github.com/wekeepgrowing/carservice-backend/internal/middleware/auth"
	"github.com/wekeepgrowing/carservice-backend/internal/usecase"
	"github.com/wekeepgrowing/carservice-backend/pkg/logger"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Bookings *usecase.BookingService
	Dealers  *usecase.DealerService
	Ledger   *usecase.LedgerService
	Payouts  *usecase.PayoutService
	Webhooks *usecase.WebhookService
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	services Services
}

func NewServer(cfg *config.Config, zapLogger *zap.Logger, services Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewRequestValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(logger.NewEchoRequestLogger(zapLogger))
	logger.WithEchoLogger(e, zapLogger)

	if len(cfg.Server.HTTP.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.HTTP.CORSOrigins,
			AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
		}))
	}

	s := &Server{
		config:   cfg,
		logger:   zapLogger,
		echo:     e,
		services: services,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	bookingHandler := handlers.NewBookingHandler(s.services.Bookings, s.logger)
	dealerHandler := handlers.NewDealerHandler(s.services.Dealers, s.logger)
	ledgerHandler := handlers.NewLedgerHandler(s.services.Ledger, s.logger)
	payoutHandler := handlers.NewPayoutHandler(s.services.Payouts, s.logger)
	webhookHandler := handlers.NewWebhookHandler(s.services.Webhooks, s.logger)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Issuer: s.config.JWT.Issuer,
		Logger: s.logger,
	}

	v1 := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))

	bookings := v1.Group("/bookings")
	bookings.POST("", bookingHandler.CreateBooking)
	bookings.GET("/:id", bookingHandler.GetBooking)
	bookings.GET("/:id/history", bookingHandler.GetHistory)
	bookings.POST("/:id/respond", bookingHandler.Respond)
	bookings.POST("/:id/cancel", bookingHandler.Cancel)
	bookings.POST("/:id/complete", bookingHandler.Complete)
	bookings.POST("/:id/no-show", bookingHandler.MarkNoShow)

	dealers := v1.Group("/dealers")
	dealers.POST("", dealerHandler.CreateDealer)
	dealers.GET("/:id", dealerHandler.GetDealer)
	dealers.PUT("/:id/commission", dealerHandler.UpdateCommission)
	dealers.GET("/:id/commission-history", dealerHandler.GetCommissionHistory)
	dealers.POST("/:id/virtual-card", dealerHandler.IssueVirtualCard)
	dealers.GET("/:id/balance", ledgerHandler.GetBalance)
	dealers.GET("/:id/transactions", ledgerHandler.GetTransactions)
	dealers.POST("/:id/adjustments", ledgerHandler.CreateAdjustment)
	dealers.GET("/:id/payouts", payoutHandler.ListPayouts)
	dealers.POST("/:id/webhooks", webhookHandler.CreateWebhook)
	dealers.GET("/:id/webhooks", webhookHandler.ListWebhooks)
	dealers.DELETE("/:id/webhooks/:webhookId", webhookHandler.DeactivateWebhook)
	dealers.GET("/:id/webhook-events", webhookHandler.ListEvents)

	v1.GET("/webhook-events/:eventId", webhookHandler.GetEvent)

	payouts := v1.Group("/payouts")
	payouts.POST("", payoutHandler.CreatePayout)
	payouts.GET("/:id", payoutHandler.GetPayout)
	payouts.POST("/:id/approve", payoutHandler.Approve)
	payouts.POST("/:id/complete", payoutHandler.Complete)
	payouts.POST("/:id/fail", payoutHandler.Fail)

	v1.GET("/admin/dealers/:id/verify", ledgerHandler.VerifyBalance)
}
