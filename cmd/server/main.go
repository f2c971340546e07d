package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/config"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/crypto"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/database"
	grpcServer "github.com/wekeepgrowing/carservice-backend/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/carservice-backend/internal/infrastructure/http"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/messaging"
	gateways "github.com/wekeepgrowing/carservice-backend/internal/infrastructure/provider"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/scheduler"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/webhook"
	"github.com/wekeepgrowing/carservice-backend/internal/usecase"
	"github.com/wekeepgrowing/carservice-backend/pkg/logger"
	pkgmessaging "github.com/wekeepgrowing/carservice-backend/pkg/messaging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.Log.Config)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger = zapLogger.With(zap.String("service", cfg.Service.Name))

	db, err := database.NewConnection(&cfg.Database, &cfg.Log, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repos := database.NewRepositories(db, zapLogger)

	cipher, err := crypto.NewAESCipher(cfg.Webhook.EncryptionKey)
	if err != nil {
		zapLogger.Fatal("Invalid webhook encryption key", zap.Error(err))
	}

	gateway, err := gateways.NewGateway(cfg.Gateway, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := webhook.NewSender(&http.Client{}, cfg.Service.Name+"-webhooks/"+cfg.Service.Version, zapLogger)
	dispatcher := usecase.NewWebhookDispatcher(repos.Tx, repos.Webhook, sender, cipher, cfg.Webhook, zapLogger)

	// Committed events wake the local dispatcher and, with redis, every other instance.
	notifiers := usecase.Notifiers{dispatcher}
	var redisClient pkgmessaging.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = pkgmessaging.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()

		broadcaster := messaging.NewBroadcaster(redisClient, cfg.Redis.Channel, zapLogger)
		if err := broadcaster.Listen(ctx, dispatcher); err != nil {
			zapLogger.Fatal("Failed to subscribe to event notices", zap.Error(err))
		}
		notifiers = append(notifiers, broadcaster)
	}

	ledger := usecase.NewLedgerService(repos.Tx, repos.Ledger, repos.Dealer, repos.Payout, cfg.Booking.Currency, zapLogger)
	bookings := usecase.NewBookingService(repos.Tx, repos.Booking, repos.Inventory, repos.Dealer, ledger, gateway,
		dispatcher, notifiers, cfg.Booking, zapLogger)
	payouts := usecase.NewPayoutService(repos.Tx, repos.Payout, repos.Dealer, ledger,
		dispatcher, notifiers, cfg.Payout, zapLogger)
	dealers := usecase.NewDealerService(repos.Tx, repos.Dealer, gateway, cfg.Booking.DefaultCommissionRate, zapLogger)
	webhooks := usecase.NewWebhookService(repos.Webhook, repos.Dealer, cipher, zapLogger)

	if _, err := dispatcher.Recover(ctx); err != nil {
		zapLogger.Error("Failed to recover stale webhook deliveries", zap.Error(err))
	}
	dispatcher.Start(ctx)

	jobs, err := scheduler.New(cfg.Scheduler, bookings, ledger, dispatcher, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	jobs.Start()

	grpcSrv := grpcServer.NewServer(cfg, zapLogger)
	httpSrv := httpServer.NewServer(cfg, zapLogger, httpServer.Services{
		Bookings: bookings,
		Dealers:  dealers,
		Ledger:   ledger,
		Payouts:  payouts,
		Webhooks: webhooks,
	})

	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}
	if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}
	if err := jobs.Shutdown(); err != nil {
		zapLogger.Error("Failed to shutdown scheduler", zap.Error(err))
	}
	dispatcher.Stop()
	cancel()

	zapLogger.Info("Servers shut down successfully")
}
