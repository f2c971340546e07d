package errors

// Common error codes shared by every layer.
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"
	ErrNotImplemented  = "NOT_IMPLEMENTED"

	// Money and lifecycle codes
	ErrInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrPaymentFailed       = "PAYMENT_FAILED"
	ErrInvalidTransition   = "INVALID_TRANSITION"
	ErrIntegrityViolation  = "INTEGRITY_VIOLATION"
	ErrDeliveryFailed      = "DELIVERY_FAILED"
)
