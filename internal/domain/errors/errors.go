package errors

import (
	"errors"
	"fmt"

	apperrors "github.com/wekeepgrowing/carservice-backend/pkg/errors"
)

// ValidationError is returned before any state change when input is malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Code() string  { return apperrors.ErrInvalidArgument }
func (e *ValidationError) Unwrap() error { return nil }

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned when an entity does not exist.
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Code() string  { return apperrors.ErrNotFound }
func (e *NotFoundError) Unwrap() error { return nil }

func NewNotFoundError(entity string, id interface{}) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ForbiddenError is returned when the actor may not touch the entity.
type ForbiddenError struct {
	Actor   string
	Message string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s: %s", e.Actor, e.Message)
}

func (e *ForbiddenError) Code() string  { return apperrors.ErrUnauthorized }
func (e *ForbiddenError) Unwrap() error { return nil }

func NewForbiddenError(actor, message string) *ForbiddenError {
	return &ForbiddenError{Actor: actor, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
