package offline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
)

// DeclinedSource is a payment source the offline gateway always declines.
const DeclinedSource = "pm_card_declined"

// Gateway approves every charge without contacting a processor. It replays
// results for a repeated idempotency key.
type Gateway struct {
	mu       sync.Mutex
	charges  map[string]*provider.ChargeResult
	refunded map[string]bool
	logger   *zap.Logger
}

func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		charges:  make(map[string]*provider.ChargeResult),
		refunded: make(map[string]bool),
		logger:   logger,
	}
}

func (g *Gateway) Charge(_ context.Context, req *provider.ChargeRequest) (*provider.ChargeResult, error) {
	if req.PaymentSource == DeclinedSource {
		return nil, &provider.GatewayError{Code: "card_declined", Message: "Payment was not accepted"}
	}
	if !req.Amount.IsPositive() {
		return nil, &provider.GatewayError{Code: "invalid_amount", Message: "Payment was not accepted"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if prior, ok := g.charges[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return prior, nil
	}

	id, err := gonanoid.New(24)
	if err != nil {
		return nil, fmt.Errorf("failed to generate transaction id: %w", err)
	}
	result := &provider.ChargeResult{TransactionID: "off_" + id, Status: "succeeded"}
	key := req.IdempotencyKey
	if key == "" {
		key = result.TransactionID
	}
	g.charges[key] = result

	g.logger.Info("Offline charge approved",
		zap.String("transaction_id", result.TransactionID),
		zap.Stringer("amount", req.Amount),
		zap.String("currency", strings.ToUpper(req.Currency)))
	return result, nil
}

// Refund marks a charge made by this gateway as refunded. Repeating it is a no-op.
func (g *Gateway) Refund(_ context.Context, transactionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, charge := range g.charges {
		if charge.TransactionID != transactionID {
			continue
		}
		if !g.refunded[transactionID] {
			g.refunded[transactionID] = true
			g.logger.Info("Offline charge refunded", zap.String("transaction_id", transactionID))
		}
		return nil
	}
	return &provider.GatewayError{Code: "unknown_charge", Message: "Payment could not be refunded", Details: transactionID}
}

func (g *Gateway) IssueVirtualCard(_ context.Context, dealerID int64) (*provider.VirtualCard, error) {
	id, err := gonanoid.Generate("0123456789", 4)
	if err != nil {
		return nil, fmt.Errorf("failed to generate card number: %w", err)
	}
	return &provider.VirtualCard{
		CardReference: fmt.Sprintf("offline_card_%d", dealerID),
		Last4:         id,
		ExpMonth:      12,
		ExpYear:       2099,
	}, nil
}
