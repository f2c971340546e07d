package model

import (
	"database/sql/driver"
	"fmt"
)

// ActorType identifies who triggered a state change.
type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorDealer   ActorType = "dealer"
	ActorAdmin    ActorType = "admin"
	ActorSystem   ActorType = "system"
)

func (a *ActorType) Scan(value interface{}) error {
	str, err := scanString(value, "ActorType")
	if err != nil {
		return err
	}
	*a = ActorType(str)
	return nil
}

func (a ActorType) Value() (driver.Value, error) {
	return string(a), nil
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	Type ActorType
	// ID is the user id from the access token, or a job name for the system actor.
	ID string
	// DealerID is set for dealer actors.
	DealerID int64
}

// SystemActor returns the actor used for automatic transitions.
func SystemActor(job string) Actor {
	return Actor{Type: ActorSystem, ID: job}
}

func (a Actor) IsAdmin() bool {
	return a.Type == ActorAdmin
}

// OwnsDealer reports whether the actor is the given dealer.
func (a Actor) OwnsDealer(dealerID int64) bool {
	return a.Type == ActorDealer && a.DealerID == dealerID
}

// CanAccessDealer is true for the dealer itself and for admins.
func (a Actor) CanAccessDealer(dealerID int64) bool {
	return a.IsAdmin() || a.OwnsDealer(dealerID)
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%s", a.Type, a.ID)
}

func scanString(value interface{}, typeName string) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("cannot scan %T into %s", value, typeName)
	}
}
