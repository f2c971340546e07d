package service

import (
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

type PayoutAction string

const (
	PayoutActionApprove  PayoutAction = "approve"
	PayoutActionComplete PayoutAction = "complete"
	PayoutActionFail     PayoutAction = "fail"
)

var payoutTransitions = map[model.PayoutStatus]map[PayoutAction]model.PayoutStatus{
	model.PayoutStatusRequested: {
		PayoutActionApprove: model.PayoutStatusProcessing,
		PayoutActionFail:    model.PayoutStatusFailed,
	},
	model.PayoutStatusProcessing: {
		PayoutActionComplete: model.PayoutStatusCompleted,
		PayoutActionFail:     model.PayoutStatusFailed,
	},
}

// NextPayoutStatus applies action to a payout in from. Terminal states accept nothing.
func NextPayoutStatus(from model.PayoutStatus, action PayoutAction) (model.PayoutStatus, error) {
	to, ok := payoutTransitions[from][action]
	if !ok {
		return from, domainErrors.NewTransitionError("payout", string(from), string(action))
	}
	return to, nil
}

// PayoutEvent returns the domain event emitted on entering status.
func PayoutEvent(status model.PayoutStatus) model.EventType {
	switch status {
	case model.PayoutStatusProcessing:
		return model.EventPayoutApproved
	case model.PayoutStatusCompleted:
		return model.EventPayoutCompleted
	case model.PayoutStatusFailed:
		return model.EventPayoutFailed
	default:
		return model.EventPayoutRequested
	}
}
