package service

import (
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

// BookingAction is an input to the booking state machine.
type BookingAction string

const (
	ActionAccept   BookingAction = "accept"
	ActionReject   BookingAction = "reject"
	ActionExpire   BookingAction = "expire"
	ActionCancel   BookingAction = "cancel"
	ActionComplete BookingAction = "complete"
	ActionNoShow   BookingAction = "mark_no_show"
)

type bookingEdge struct {
	to    model.BookingStatus
	event model.EventType
}

var bookingTransitions = map[model.BookingStatus]map[BookingAction]bookingEdge{
	model.BookingStatusPending: {
		ActionAccept: {model.BookingStatusConfirmed, model.EventBookingConfirmed},
		ActionReject: {model.BookingStatusRejected, model.EventBookingRejected},
		ActionExpire: {model.BookingStatusRejected, model.EventBookingRejected},
		ActionCancel: {model.BookingStatusCancelled, model.EventBookingCancelled},
	},
	model.BookingStatusConfirmed: {
		ActionComplete: {model.BookingStatusCompleted, model.EventBookingCompleted},
		ActionCancel:   {model.BookingStatusCancelled, model.EventBookingCancelled},
		ActionNoShow:   {model.BookingStatusNoShow, model.EventBookingNoShow},
	},
}

// NextBookingStatus returns the state and event for applying action in from,
// or a TransitionError when the pair is undefined.
func NextBookingStatus(from model.BookingStatus, action BookingAction) (model.BookingStatus, model.EventType, error) {
	edge, ok := bookingTransitions[from][action]
	if !ok {
		return from, "", domainErrors.NewTransitionError("booking", string(from), string(action))
	}
	return edge.to, edge.event, nil
}
