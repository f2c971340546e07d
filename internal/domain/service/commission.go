package service

import (
	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

var hundred = decimal.NewFromInt(100)

// CommissionSplit divides a service amount between platform and dealer.
type CommissionSplit struct {
	Rate         decimal.Decimal
	Commission   decimal.Decimal
	DealerAmount decimal.Decimal
}

// CalculateCommission splits amount for a booking of the given source at rate percent.
// DealerAmount is derived by subtraction so Commission+DealerAmount == amount exactly.
// External bookings carry no commission.
func CalculateCommission(source model.BookingSource, amount, rate decimal.Decimal) (CommissionSplit, error) {
	if err := ValidateAmount("service_amount", amount); err != nil {
		return CommissionSplit{}, err
	}
	if err := ValidateRate(rate); err != nil {
		return CommissionSplit{}, err
	}

	switch source {
	case model.BookingSourceApp:
		commission := amount.Mul(rate).Div(hundred).Round(2)
		return CommissionSplit{
			Rate:         rate,
			Commission:   commission,
			DealerAmount: amount.Sub(commission),
		}, nil
	case model.BookingSourceExternal:
		return CommissionSplit{
			Rate:         decimal.Zero,
			Commission:   decimal.Zero,
			DealerAmount: amount,
		}, nil
	default:
		return CommissionSplit{}, domainErrors.NewValidationError("source", "unknown booking source %q", source)
	}
}

// ValidateAmount requires a positive amount with at most two decimal places.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domainErrors.NewValidationError(field, "must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return domainErrors.NewValidationError(field, "must have at most two decimal places")
	}
	return nil
}

// ValidateRate requires a percentage between 0 and 100 with at most two decimals.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return domainErrors.NewValidationError("commission_percentage", "must be between 0 and 100")
	}
	if !rate.Equal(rate.Round(2)) {
		return domainErrors.NewValidationError("commission_percentage", "must have at most two decimal places")
	}
	return nil
}
