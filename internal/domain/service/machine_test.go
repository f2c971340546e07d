package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

func TestNextBookingStatus(t *testing.T) {
	statuses := []model.BookingStatus{
		model.BookingStatusPending, model.BookingStatusConfirmed, model.BookingStatusCompleted,
		model.BookingStatusRejected, model.BookingStatusCancelled, model.BookingStatusNoShow,
	}
	actions := []BookingAction{ActionAccept, ActionReject, ActionExpire, ActionCancel, ActionComplete, ActionNoShow}

	allowed := map[model.BookingStatus]map[BookingAction]model.BookingStatus{
		model.BookingStatusPending: {
			ActionAccept: model.BookingStatusConfirmed,
			ActionReject: model.BookingStatusRejected,
			ActionExpire: model.BookingStatusRejected,
			ActionCancel: model.BookingStatusCancelled,
		},
		model.BookingStatusConfirmed: {
			ActionComplete: model.BookingStatusCompleted,
			ActionCancel:   model.BookingStatusCancelled,
			ActionNoShow:   model.BookingStatusNoShow,
		},
	}

	// every (state, action) pair either moves with an event or fails
	for _, from := range statuses {
		for _, action := range actions {
			to, event, err := NextBookingStatus(from, action)
			want, ok := allowed[from][action]
			if ok {
				assert.NoError(t, err, "%s/%s", from, action)
				assert.Equal(t, want, to)
				assert.NotEmpty(t, event)
				continue
			}
			assert.True(t, domainErrors.IsInvalidTransition(err), "%s/%s", from, action)
			assert.Equal(t, from, to)
			if from.IsTerminal() {
				assert.Error(t, err)
			}
		}
	}
}

func TestNextPayoutStatusIsMonotonic(t *testing.T) {
	to, err := NextPayoutStatus(model.PayoutStatusRequested, PayoutActionApprove)
	assert.NoError(t, err)
	assert.Equal(t, model.PayoutStatusProcessing, to)
	assert.Equal(t, model.EventPayoutApproved, PayoutEvent(to))

	to, err = NextPayoutStatus(model.PayoutStatusProcessing, PayoutActionComplete)
	assert.NoError(t, err)
	assert.Equal(t, model.PayoutStatusCompleted, to)

	_, err = NextPayoutStatus(model.PayoutStatusRequested, PayoutActionComplete)
	assert.True(t, domainErrors.IsInvalidTransition(err))

	// approval never parks a payout in approved
	for _, action := range []PayoutAction{PayoutActionApprove, PayoutActionComplete, PayoutActionFail} {
		_, err := NextPayoutStatus(model.PayoutStatusApproved, action)
		assert.True(t, domainErrors.IsInvalidTransition(err), "approved/%s", action)
	}

	for _, terminal := range []model.PayoutStatus{model.PayoutStatusCompleted, model.PayoutStatusFailed} {
		for _, action := range []PayoutAction{PayoutActionApprove, PayoutActionComplete, PayoutActionFail} {
			_, err := NextPayoutStatus(terminal, action)
			assert.True(t, domainErrors.IsInvalidTransition(err), "%s/%s", terminal, action)
		}
	}
}
