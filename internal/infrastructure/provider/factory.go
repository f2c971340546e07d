package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/config"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/provider/offline"
	stripeProvider "github.com/wekeepgrowing/carservice-backend/internal/infrastructure/provider/stripe"
)

const (
	ProviderStripe  = "stripe"
	ProviderOffline = "offline"
)

// NewGateway returns the payment gateway selected by cfg.Provider. Offline is the default.
func NewGateway(cfg config.GatewayConfig, logger *zap.Logger) (provider.PaymentGateway, error) {
	switch cfg.Provider {
	case ProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("stripe secret key not configured")
		}
		return stripeProvider.NewGateway(stripeProvider.Options{
			SecretKey:    cfg.StripeSecretKey,
			APIURL:       cfg.StripeAPIURL,
			Currency:     cfg.Currency,
			CardholderID: cfg.CardholderID,
		}, logger.Named("stripe")), nil
	case ProviderOffline, "":
		logger.Warn("Using the offline payment gateway; charges are not captured")
		return offline.NewGateway(logger.Named("offline-gateway")), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", cfg.Provider)
	}
}
