package dto

import "github.com/shopspring/decimal"

type CreateDealerRequest struct {
	UserID       string `json:"user_id" validate:"required,max=64"`
	BusinessName string `json:"business_name" validate:"required,max=200"`
	// CommissionPercentage defaults to the platform rate when omitted.
	CommissionPercentage *decimal.Decimal `json:"commission_percentage,omitempty"`
}

type UpdateCommissionRequest struct {
	Rate   decimal.Decimal `json:"rate"`
	Reason string          `json:"reason" validate:"required,max=500"`
}
