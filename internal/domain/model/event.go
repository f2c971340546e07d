package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event as seen by webhook subscribers.
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingRejected  EventType = "booking.rejected"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCompleted EventType = "booking.completed"
	EventBookingNoShow    EventType = "booking.no_show"

	EventPayoutRequested EventType = "payout.requested"
	EventPayoutApproved  EventType = "payout.approved"
	EventPayoutCompleted EventType = "payout.completed"
	EventPayoutFailed    EventType = "payout.failed"
)

// EventTypes lists every event a webhook can subscribe to.
var EventTypes = []EventType{
	EventBookingCreated, EventBookingConfirmed, EventBookingRejected, EventBookingCancelled,
	EventBookingCompleted, EventBookingNoShow,
	EventPayoutRequested, EventPayoutApproved, EventPayoutCompleted, EventPayoutFailed,
}

func (t EventType) IsKnown() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DomainEvent is emitted by every booking and payout transition.
type DomainEvent struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	DealerID   int64       `json:"dealer_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func NewDomainEvent(t EventType, dealerID int64, occurredAt time.Time, payload interface{}) DomainEvent {
	return DomainEvent{
		ID:         uuid.NewString(),
		Type:       t,
		DealerID:   dealerID,
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}
}
