package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

// CustomerRefund returns how much of total a customer gets back when cancelling
// at now for a service scheduled at scheduledAt. Without a policy the refund is full.
func CustomerRefund(policy *model.CancellationPolicy, total decimal.Decimal, scheduledAt, now time.Time) decimal.Decimal {
	if policy == nil {
		return total
	}

	hoursBefore := scheduledAt.Sub(now).Hours()
	switch {
	case hoursBefore >= float64(policy.FreeCancellationHours):
		return total
	case hoursBefore >= float64(policy.PartialRefundHours):
		return total.Mul(policy.PartialRefundPercentage).Div(hundred).Round(2)
	default:
		return decimal.Zero
	}
}

// DealerReversal is the part of the dealer's credit given back when the customer
// receives refund out of total. It is proportional and never exceeds dealerAmount.
func DealerReversal(dealerAmount, refund, total decimal.Decimal) decimal.Decimal {
	if !refund.IsPositive() || !total.IsPositive() {
		return decimal.Zero
	}
	if refund.GreaterThanOrEqual(total) {
		return dealerAmount
	}
	reversal := dealerAmount.Mul(refund).Div(total).Round(2)
	if reversal.GreaterThan(dealerAmount) {
		return dealerAmount
	}
	return reversal
}
