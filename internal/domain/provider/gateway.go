package provider

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// PaymentGateway is the contract with the external payment processor.
type PaymentGateway interface {
	// Charge captures amount from the customer's payment source.
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	// Refund returns a captured charge to the customer in full.
	Refund(ctx context.Context, transactionID string) error
	// IssueVirtualCard issues a card the dealer can spend its balance with.
	IssueVirtualCard(ctx context.Context, dealerID int64) (*VirtualCard, error)
}

type ChargeRequest struct {
	Amount        decimal.Decimal
	Currency      string
	PaymentSource string
	Description   string
	// IdempotencyKey makes a retried charge return the first result.
	IdempotencyKey string
	Metadata       map[string]string
}

type ChargeResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type VirtualCard struct {
	CardReference string `json:"card_reference"`
	Last4         string `json:"last4,omitempty"`
	ExpMonth      int    `json:"exp_month,omitempty"`
	ExpYear       int    `json:"exp_year,omitempty"`
}

// GatewayError is any failure reported by the payment gateway.
type GatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *GatewayError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func IsGatewayError(err error) bool {
	var target *GatewayError
	return errors.As(err, &target)
}
