package dto

import (
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

// CreateBookingRequest books a slot. For external bookings PaymentSource is
// empty and ExternalBookingID identifies the booking in the dealer's own system.
type CreateBookingRequest struct {
	DealerID             int64               `json:"dealer_id" validate:"required,gt=0"`
	SlotID               int64               `json:"slot_id" validate:"required,gt=0"`
	VehicleID            int64               `json:"vehicle_id" validate:"required,gt=0"`
	Source               model.BookingSource `json:"source" validate:"required,oneof=app external"`
	ExternalBookingID    *string             `json:"external_booking_id,omitempty" validate:"omitempty,max=100"`
	ServiceAmount        decimal.Decimal     `json:"service_amount" validate:"money"`
	TaxAmount            decimal.Decimal     `json:"tax_amount"`
	PaymentSource        string              `json:"payment_source,omitempty" validate:"required_if=Source app,max=255"`
	CancellationPolicyID *int64              `json:"cancellation_policy_id,omitempty"`
	CustomerNotes        string              `json:"customer_notes,omitempty" validate:"max=1000"`
}

type RespondBookingRequest struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
