package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateCommission(t *testing.T) {
	tests := []struct {
		name       string
		source     model.BookingSource
		amount     string
		rate       string
		commission string
		dealer     string
	}{
		{"app booking at 10 percent", model.BookingSourceApp, "3500.00", "10", "350.00", "3150.00"},
		{"external booking has no commission", model.BookingSourceExternal, "2000.00", "10", "0.00", "2000.00"},
		{"rounding goes to commission", model.BookingSourceApp, "99.99", "15", "15.00", "84.99"},
		{"half cent rounds away from zero", model.BookingSourceApp, "0.05", "50", "0.03", "0.02"},
		{"zero rate", model.BookingSourceApp, "1200.00", "0", "0.00", "1200.00"},
		{"full rate", model.BookingSourceApp, "1200.00", "100", "1200.00", "0.00"},
		{"fractional rate", model.BookingSourceApp, "1234.56", "12.75", "157.41", "1077.15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := CalculateCommission(tt.source, d(tt.amount), d(tt.rate))
			require.NoError(t, err)
			assert.Equal(t, tt.commission, split.Commission.StringFixed(2))
			assert.Equal(t, tt.dealer, split.DealerAmount.StringFixed(2))
			assert.True(t, split.Commission.Add(split.DealerAmount).Equal(d(tt.amount)))
		})
	}
}

func TestCalculateCommissionSumInvariant(t *testing.T) {
	rates := []string{"0", "3.33", "7.5", "10", "12.34", "15", "33.33", "99.99"}
	for cents := int64(1); cents < 5000; cents += 37 {
		amount := decimal.New(cents, -2)
		for _, r := range rates {
			split, err := CalculateCommission(model.BookingSourceApp, amount, d(r))
			require.NoError(t, err)
			assert.True(t, split.Commission.Add(split.DealerAmount).Equal(amount), "amount %s rate %s", amount, r)
		}
	}
}

func TestCalculateCommissionValidation(t *testing.T) {
	tests := []struct {
		name   string
		source model.BookingSource
		amount string
		rate   string
	}{
		{"zero amount", model.BookingSourceApp, "0", "10"},
		{"negative amount", model.BookingSourceApp, "-5", "10"},
		{"sub-cent amount", model.BookingSourceApp, "10.001", "10"},
		{"rate above 100", model.BookingSourceApp, "100", "100.01"},
		{"negative rate", model.BookingSourceApp, "100", "-1"},
		{"unknown source", model.BookingSource("walk_in"), "100", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateCommission(tt.source, d(tt.amount), d(tt.rate))
			assert.True(t, domainErrors.IsValidation(err))
		})
	}
}
