package stripe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
)

var minorUnits = decimal.NewFromInt(100)

// Gateway charges customers with PaymentIntents and issues dealer cards through Stripe Issuing.
type Gateway struct {
	api          *client.API
	currency     string
	cardholderID string
	logger       *zap.Logger
}

// Options configures the Stripe client. APIURL is only set for stripe-mock or tests.
type Options struct {
	SecretKey    string
	APIURL       string
	Currency     string
	CardholderID string
}

func NewGateway(opts Options, logger *zap.Logger) *Gateway {
	config := &stripeapi.BackendConfig{
		MaxNetworkRetries: stripeapi.Int64(2),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelError},
	}
	if opts.APIURL != "" {
		config.URL = stripeapi.String(opts.APIURL)
		config.MaxNetworkRetries = stripeapi.Int64(0)
	}
	backends := &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, config),
		Connect: stripeapi.GetBackendWithConfig(stripeapi.ConnectBackend, config),
		Uploads: stripeapi.GetBackendWithConfig(stripeapi.UploadsBackend, config),
	}

	return &Gateway{
		api:          client.New(opts.SecretKey, backends),
		currency:     strings.ToLower(opts.Currency),
		cardholderID: opts.CardholderID,
		logger:       logger,
	}
}

// Charge creates and confirms a PaymentIntent. Anything but an immediate
// success is reported as a GatewayError.
func (g *Gateway) Charge(ctx context.Context, req *provider.ChargeRequest) (*provider.ChargeResult, error) {
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = g.currency
	}

	params := &stripeapi.PaymentIntentParams{
		Amount:        stripeapi.Int64(req.Amount.Mul(minorUnits).Round(0).IntPart()),
		Currency:      stripeapi.String(currency),
		PaymentMethod: stripeapi.String(req.PaymentSource),
		Description:   stripeapi.String(req.Description),
		Confirm:       stripeapi.Bool(true),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripeapi.Bool(true),
			AllowRedirects: stripeapi.String("never"),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey("charge:" + req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.logger.Warn("Stripe charge failed",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(err))
		return nil, toGatewayError(err, "CHARGE_FAILED", "Payment was not accepted")
	}
	if intent.Status != stripeapi.PaymentIntentStatusSucceeded {
		return nil, &provider.GatewayError{
			Code:    "PAYMENT_INCOMPLETE",
			Message: "Payment requires further action",
			Details: fmt.Sprintf("payment intent %s is %s", intent.ID, intent.Status),
		}
	}

	g.logger.Info("Stripe charge succeeded",
		zap.String("payment_intent", intent.ID),
		zap.Int64("amount_minor", intent.Amount))
	return &provider.ChargeResult{
		TransactionID: intent.ID,
		Status:        string(intent.Status),
	}, nil
}

// Refund refunds the full amount of a PaymentIntent.
func (g *Gateway) Refund(ctx context.Context, transactionID string) error {
	params := &stripeapi.RefundParams{
		PaymentIntent: stripeapi.String(transactionID),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund:" + transactionID)

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return toGatewayError(err, "REFUND_FAILED", "Payment could not be refunded")
	}
	g.logger.Info("Stripe refund created",
		zap.String("payment_intent", transactionID),
		zap.String("refund", refund.ID),
		zap.String("status", string(refund.Status)))
	return nil
}

// IssueVirtualCard issues an active virtual Issuing card for the dealer.
func (g *Gateway) IssueVirtualCard(ctx context.Context, dealerID int64) (*provider.VirtualCard, error) {
	if g.cardholderID == "" {
		return nil, &provider.GatewayError{
			Code:    "NOT_CONFIGURED",
			Message: "Stripe Issuing cardholder is not configured",
		}
	}

	params := &stripeapi.IssuingCardParams{
		Cardholder: stripeapi.String(g.cardholderID),
		Currency:   stripeapi.String(g.currency),
		Type:       stripeapi.String(string(stripeapi.IssuingCardTypeVirtual)),
		Status:     stripeapi.String(string(stripeapi.IssuingCardStatusActive)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("virtual-card:" + strconv.FormatInt(dealerID, 10))
	params.AddMetadata("dealer_id", strconv.FormatInt(dealerID, 10))

	card, err := g.api.IssuingCards.New(params)
	if err != nil {
		return nil, toGatewayError(err, "CARD_ISSUE_FAILED", "Virtual card could not be issued")
	}

	return &provider.VirtualCard{
		CardReference: card.ID,
		Last4:         card.Last4,
		ExpMonth:      int(card.ExpMonth),
		ExpYear:       int(card.ExpYear),
	}, nil
}

func toGatewayError(err error, fallbackCode, message string) *provider.GatewayError {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		code := string(stripeErr.Code)
		if code == "" {
			code = string(stripeErr.Type)
		}
		return &provider.GatewayError{
			Code:    code,
			Message: message,
			Details: stripeErr.Msg,
		}
	}
	return &provider.GatewayError{
		Code:    fallbackCode,
		Message: message,
		Details: err.Error(),
	}
}
