package repository

import (
	"context"
	"time"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	// UpdateIfVersion persists the booking's mutable fields only when the stored
	// version still equals booking.Version, then bumps the version. A stale
	// version yields a ConflictError.
	UpdateIfVersion(ctx context.Context, booking *model.Booking) error
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]int64, error)

	AddHistory(ctx context.Context, entry *model.BookingStatusHistory) error
	ListHistory(ctx context.Context, bookingID int64) ([]model.BookingStatusHistory, error)
}

// InventoryRepository covers the catalogue data bookings are validated against.
type InventoryRepository interface {
	GetSlot(ctx context.Context, id int64) (*model.ServiceSlot, error)
	// ReserveSlot takes one seat; it fails with a ValidationError when none is left.
	ReserveSlot(ctx context.Context, id int64) error
	ReleaseSlot(ctx context.Context, id int64) error
	GetVehicle(ctx context.Context, id int64) (*model.Vehicle, error)
	GetCancellationPolicy(ctx context.Context, id int64) (*model.CancellationPolicy, error)
}
