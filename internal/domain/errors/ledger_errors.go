package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	apperrors "github.com/wekeepgrowing/carservice-backend/pkg/errors"
)

// InsufficientBalanceError is returned when a payout exceeds the available funds
type InsufficientBalanceError struct {
	DealerID  int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s", e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Code() string  { return apperrors.ErrInsufficientBalance }
func (e *InsufficientBalanceError) Unwrap() error { return nil }

// NewInsufficientBalanceError creates a new InsufficientBalanceError
func NewInsufficientBalanceError(dealerID int64, requested, available decimal.Decimal) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		DealerID:  dealerID,
		Requested: requested,
		Available: available,
	}
}

func IsInsufficientBalance(err error) bool {
	var target *InsufficientBalanceError
	return errors.As(err, &target)
}

// IntegrityError means the cached balance disagrees with the ledger.
// It is never corrected automatically.
type IntegrityError struct {
	DealerID int64
	Cached   decimal.Decimal
	Computed decimal.Decimal
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation for dealer %d: cached balance %s, ledger sum %s",
		e.DealerID, e.Cached.StringFixed(2), e.Computed.StringFixed(2))
}

func (e *IntegrityError) Code() string  { return apperrors.ErrIntegrityViolation }
func (e *IntegrityError) Unwrap() error { return nil }

func IsIntegrity(err error) bool {
	var target *IntegrityError
	return errors.As(err, &target)
}
