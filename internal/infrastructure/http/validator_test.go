package http

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
)

type moneyRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"money"`
	Delta  decimal.Decimal `json:"delta" validate:"nonzero_money"`
}

func TestRequestValidator_Money(t *testing.T) {
	v := NewRequestValidator()

	tests := []struct {
		name   string
		amount string
		delta  string
		field  string
	}{
		{"valid", "3500.50", "-20", ""},
		{"zero amount", "0", "1", "amount"},
		{"negative amount", "-1", "1", "amount"},
		{"three decimals", "1.005", "1", "amount"},
		{"trailing zeros are fine", "1.500", "1", ""},
		{"zero delta", "1", "0", "delta"},
		{"precise delta", "1", "0.001", "delta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&moneyRequest{
				Amount: decimal.RequireFromString(tt.amount),
				Delta:  decimal.RequireFromString(tt.delta),
			})
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var validation *domainErrors.ValidationError
			if assert.ErrorAs(t, err, &validation) {
				assert.Equal(t, tt.field, validation.Field)
			}
		})
	}
}
