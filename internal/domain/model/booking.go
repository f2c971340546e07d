package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BookingSource tells where a booking originated.
type BookingSource string

const (
	BookingSourceApp      BookingSource = "app"
	BookingSourceExternal BookingSource = "external"
)

func (s BookingSource) IsValid() bool {
	return s == BookingSourceApp || s == BookingSourceExternal
}

func (s *BookingSource) Scan(value interface{}) error {
	str, err := scanString(value, "BookingSource")
	if err != nil {
		return err
	}
	*s = BookingSource(str)
	return nil
}

func (s BookingSource) Value() (driver.Value, error) {
	return string(s), nil
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// IsTerminal reports whether no further transition is defined from s.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusRejected, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

func (s *BookingStatus) Scan(value interface{}) error {
	str, err := scanString(value, "BookingStatus")
	if err != nil {
		return err
	}
	*s = BookingStatus(str)
	return nil
}

func (s BookingStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Booking is a customer's reservation of a dealer service slot.
// Amounts are fixed at creation; later commission rate changes never touch them.
type Booking struct {
	ID                int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingNumber     string        `gorm:"type:varchar(20);uniqueIndex;not null" json:"booking_number"`
	CustomerID        string        `gorm:"type:varchar(64);not null;index" json:"customer_id"`
	DealerID          int64         `gorm:"not null;index;uniqueIndex:idx_bookings_dealer_external" json:"dealer_id"`
	SlotID            int64         `gorm:"not null;index" json:"slot_id"`
	VehicleID         int64         `gorm:"not null" json:"vehicle_id"`
	Source            BookingSource `gorm:"type:varchar(20);not null" json:"source"`
	ExternalBookingID *string       `gorm:"type:varchar(100);uniqueIndex:idx_bookings_dealer_external" json:"external_booking_id,omitempty"`
	Status            BookingStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	// Version is bumped on every state change and guards transitions with compare-and-swap.
	Version int64 `gorm:"not null;default:1" json:"version"`

	ServiceAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"service_amount"`
	TaxAmount          decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"tax_amount"`
	PlatformCommission decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"platform_commission"`
	DealerAmount       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"dealer_amount"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	CommissionRate     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_rate"`
	RefundAmount       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"refund_amount"`
	Currency           string          `gorm:"type:varchar(3);not null" json:"currency"`

	PaymentTransactionID *string `gorm:"type:varchar(100)" json:"payment_transaction_id,omitempty"`
	CancellationPolicyID *int64  `json:"cancellation_policy_id,omitempty"`
	CustomerNotes        string  `gorm:"type:text" json:"customer_notes,omitempty"`

	ScheduledAt            time.Time  `gorm:"not null" json:"scheduled_at"`
	DealerResponseDeadline time.Time  `gorm:"not null;index" json:"dealer_response_deadline"`
	RespondedAt            *time.Time `json:"responded_at,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	CancelledAt            *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy            *ActorType `gorm:"type:varchar(20)" json:"cancelled_by,omitempty"`
	CancellationReason     string     `gorm:"type:text" json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// SourceRef is the ledger reference shared by every entry caused by this booking.
func (b *Booking) SourceRef() string {
	return BookingSourceRef(b.ID)
}

// IsOverdue reports whether a pending booking passed its dealer response deadline.
func (b *Booking) IsOverdue(now time.Time) bool {
	return b.Status == BookingStatusPending && now.After(b.DealerResponseDeadline)
}

// CreditedAtCreation reports whether the dealer was credited when the booking was created.
func (b *Booking) CreditedAtCreation() bool {
	return b.Source == BookingSourceApp
}

func BookingSourceRef(bookingID int64) string {
	return fmt.Sprintf("booking:%d", bookingID)
}

// BookingStatusHistory records one state change of a booking.
type BookingStatusHistory struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID  int64          `gorm:"not null;index" json:"booking_id"`
	FromStatus *BookingStatus `gorm:"type:varchar(20)" json:"from_status,omitempty"`
	ToStatus   BookingStatus  `gorm:"type:varchar(20);not null" json:"to_status"`
	ActorType  ActorType      `gorm:"type:varchar(20);not null" json:"actor_type"`
	ActorID    string         `gorm:"type:varchar(64)" json:"actor_id,omitempty"`
	Reason     string         `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (BookingStatusHistory) TableName() string {
	return "booking_status_history"
}
