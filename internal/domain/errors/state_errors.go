package errors

import (
	"errors"
	"fmt"

	apperrors "github.com/wekeepgrowing/carservice-backend/pkg/errors"
)

// ConflictError means another writer changed the entity first. Callers re-fetch and retry.
type ConflictError struct {
	Entity string
	ID     interface{}
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %v: %s", e.Entity, e.ID, e.Reason)
}

func (e *ConflictError) Code() string  { return apperrors.ErrConflict }
func (e *ConflictError) Unwrap() error { return nil }

func NewConflictError(entity string, id interface{}, reason string) *ConflictError {
	return &ConflictError{Entity: entity, ID: id, Reason: reason}
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// TransitionError is returned for an action that is not defined in the current state.
type TransitionError struct {
	Entity string
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: cannot %s from %s", e.Entity, e.Action, e.From)
}

func (e *TransitionError) Code() string  { return apperrors.ErrInvalidTransition }
func (e *TransitionError) Unwrap() error { return nil }

func NewTransitionError(entity, from, action string) *TransitionError {
	return &TransitionError{Entity: entity, From: from, Action: action}
}

func IsInvalidTransition(err error) bool {
	var target *TransitionError
	return errors.As(err, &target)
}
