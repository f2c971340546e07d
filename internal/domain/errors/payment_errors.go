package errors

import (
	"errors"
	"fmt"

	apperrors "github.com/wekeepgrowing/carservice-backend/pkg/errors"
)

// PaymentFailedError wraps a gateway failure. Nothing was persisted and the
// whole booking creation can be retried.
type PaymentFailedError struct {
	Cause error
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment failed: %v", e.Cause)
}

func (e *PaymentFailedError) Code() string  { return apperrors.ErrPaymentFailed }
func (e *PaymentFailedError) Unwrap() error { return e.Cause }

func NewPaymentFailedError(cause error) *PaymentFailedError {
	return &PaymentFailedError{Cause: cause}
}

func IsPaymentFailed(err error) bool {
	var target *PaymentFailedError
	return errors.As(err, &target)
}

// WebhookDeliveryError describes one failed delivery attempt. It is only logged
// and recorded, never returned to the request that produced the event.
type WebhookDeliveryError struct {
	EventID    string
	Attempt    int
	StatusCode int
	Cause      error
}

func (e *WebhookDeliveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("webhook %s attempt %d: %v", e.EventID, e.Attempt, e.Cause)
	}
	return fmt.Sprintf("webhook %s attempt %d: unexpected status %d", e.EventID, e.Attempt, e.StatusCode)
}

func (e *WebhookDeliveryError) Code() string  { return apperrors.ErrDeliveryFailed }
func (e *WebhookDeliveryError) Unwrap() error { return e.Cause }
