package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/config"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/service"
)

const expiryJob = "deadline-sweeper"

// BookingService runs the booking state machine. Every transition, its ledger
// effect and its domain event are written in one transaction guarded by the
// booking version.
type BookingService struct {
	tx        repository.TransactionManager
	bookings  repository.BookingRepository
	inventory repository.InventoryRepository
	dealers   repository.DealerRepository
	ledger    *LedgerService
	gateway   provider.PaymentGateway
	publisher EventPublisher
	notifier  EventNotifier
	cfg       config.BookingConfig
	clock     Clock
	logger    *zap.Logger
}

func NewBookingService(
	tx repository.TransactionManager,
	bookings repository.BookingRepository,
	inventory repository.InventoryRepository,
	dealers repository.DealerRepository,
	ledger *LedgerService,
	gateway provider.PaymentGateway,
	publisher EventPublisher,
	notifier EventNotifier,
	cfg config.BookingConfig,
	logger *zap.Logger,
) *BookingService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if notifier == nil {
		notifier = Notifiers{}
	}
	return &BookingService{
		tx:        tx,
		bookings:  bookings,
		inventory: inventory,
		dealers:   dealers,
		ledger:    ledger,
		gateway:   gateway,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		clock:     systemClock,
		logger:    logger,
	}
}

// WithClock replaces the time source used for deadlines.
func (s *BookingService) WithClock(clock Clock) *BookingService {
	s.clock = clock
	return s
}

// bookingSnapshot is the webhook payload of every booking event.
type bookingSnapshot struct {
	BookingID          int64               `json:"booking_id"`
	BookingNumber      string              `json:"booking_number"`
	DealerID           int64               `json:"dealer_id"`
	CustomerID         string              `json:"customer_id"`
	Source             model.BookingSource `json:"source"`
	ExternalBookingID  *string             `json:"external_booking_id,omitempty"`
	Status             model.BookingStatus `json:"status"`
	ServiceAmount      string              `json:"service_amount"`
	TaxAmount          string              `json:"tax_amount"`
	PlatformCommission string              `json:"platform_commission"`
	DealerAmount       string              `json:"dealer_amount"`
	TotalAmount        string              `json:"total_amount"`
	RefundAmount       string              `json:"refund_amount"`
	Currency           string              `json:"currency"`
	ScheduledAt        time.Time           `json:"scheduled_at"`
	Reason             string              `json:"reason,omitempty"`
}

func snapshotBooking(b *model.Booking, reason string) bookingSnapshot {
	return bookingSnapshot{
		BookingID:          b.ID,
		BookingNumber:      b.BookingNumber,
		DealerID:           b.DealerID,
		CustomerID:         b.CustomerID,
		Source:             b.Source,
		ExternalBookingID:  b.ExternalBookingID,
		Status:             b.Status,
		ServiceAmount:      b.ServiceAmount.StringFixed(2),
		TaxAmount:          b.TaxAmount.StringFixed(2),
		PlatformCommission: b.PlatformCommission.StringFixed(2),
		DealerAmount:       b.DealerAmount.StringFixed(2),
		TotalAmount:        b.TotalAmount.StringFixed(2),
		RefundAmount:       b.RefundAmount.StringFixed(2),
		Currency:           b.Currency,
		ScheduledAt:        b.ScheduledAt,
		Reason:             reason,
	}
}

// Create validates the request, charges app bookings and persists the booking as
// pending. App bookings credit the dealer immediately; external bookings are
// credited on completion.
func (s *BookingService) Create(ctx context.Context, actor model.Actor, req dto.CreateBookingRequest) (*model.Booking, error) {
	if err := s.validateCreate(actor, req); err != nil {
		return nil, err
	}

	slot, err := s.inventory.GetSlot(ctx, req.SlotID)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return nil, domainErrors.NewValidationError("slot_id", "slot %d does not exist", req.SlotID)
		}
		return nil, err
	}
	if slot.DealerID != req.DealerID || !slot.IsBookable() {
		return nil, domainErrors.NewValidationError("slot_id", "slot %d is not available", req.SlotID)
	}

	vehicle, err := s.inventory.GetVehicle(ctx, req.VehicleID)
	if err != nil {
		if domainErrors.IsNotFound(err) {
			return nil, domainErrors.NewValidationError("vehicle_id", "vehicle %d does not exist", req.VehicleID)
		}
		return nil, err
	}
	customerID := actor.ID
	if req.Source == model.BookingSourceExternal {
		customerID = vehicle.OwnerID
	} else if vehicle.OwnerID != actor.ID {
		return nil, domainErrors.NewValidationError("vehicle_id", "vehicle does not belong to the customer")
	}

	if req.CancellationPolicyID != nil {
		if _, err := s.inventory.GetCancellationPolicy(ctx, *req.CancellationPolicyID); err != nil {
			if domainErrors.IsNotFound(err) {
				return nil, domainErrors.NewValidationError("cancellation_policy_id", "policy does not exist")
			}
			return nil, err
		}
	}

	dealer, err := s.dealers.GetByID(ctx, req.DealerID)
	if err != nil {
		return nil, err
	}
	if !dealer.IsActive {
		return nil, domainErrors.NewValidationError("dealer_id", "dealer is not accepting bookings")
	}

	split, err := service.CalculateCommission(req.Source, req.ServiceAmount, dealer.CommissionPercentage)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	number, err := newBookingNumber(now)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		BookingNumber:          number,
		CustomerID:             customerID,
		DealerID:               req.DealerID,
		SlotID:                 req.SlotID,
		VehicleID:              req.VehicleID,
		Source:                 req.Source,
		ExternalBookingID:      req.ExternalBookingID,
		Status:                 model.BookingStatusPending,
		Version:                1,
		ServiceAmount:          req.ServiceAmount,
		TaxAmount:              req.TaxAmount,
		PlatformCommission:     split.Commission,
		DealerAmount:           split.DealerAmount,
		TotalAmount:            req.ServiceAmount.Add(req.TaxAmount),
		CommissionRate:         split.Rate,
		RefundAmount:           decimal.Zero,
		Currency:               s.cfg.Currency,
		CancellationPolicyID:   req.CancellationPolicyID,
		CustomerNotes:          req.CustomerNotes,
		ScheduledAt:            slot.ScheduledAt,
		DealerResponseDeadline: now.Add(s.cfg.ResponseWindow),
	}

	// The seat is reserved before the card is charged. A charge whose booking
	// does not commit is refunded.
	var event model.DomainEvent
	var charged *provider.ChargeResult
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.inventory.ReserveSlot(ctx, booking.SlotID); err != nil {
			return err
		}
		if booking.Source == model.BookingSourceApp {
			result, err := s.charge(ctx, booking, req.PaymentSource)
			if err != nil {
				return err
			}
			charged = result
			booking.PaymentTransactionID = &result.TransactionID
		}
		if err := s.bookings.Create(ctx, booking); err != nil {
			return err
		}
		if err := s.bookings.AddHistory(ctx, &model.BookingStatusHistory{
			BookingID: booking.ID,
			ToStatus:  model.BookingStatusPending,
			ActorType: actor.Type,
			ActorID:   actor.ID,
		}); err != nil {
			return err
		}
		if booking.CreditedAtCreation() {
			if err := s.credit(ctx, booking); err != nil {
				return err
			}
		}

		event = model.NewDomainEvent(model.EventBookingCreated, booking.DealerID, now, snapshotBooking(booking, ""))
		s.publisher.Publish(ctx, event)
		return nil
	})
	if err != nil {
		if charged != nil {
			s.refundCharge(ctx, booking, charged.TransactionID, err)
		}
		return nil, err
	}
	s.notifier.Notify(ctx, event)

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.String("booking_number", booking.BookingNumber),
		zap.Int64("dealer_id", booking.DealerID),
		zap.String("source", string(booking.Source)),
		zap.Stringer("platform_commission", booking.PlatformCommission),
		zap.Stringer("dealer_amount", booking.DealerAmount))
	return booking, nil
}

func (s *BookingService) charge(ctx context.Context, booking *model.Booking, paymentSource string) (*provider.ChargeResult, error) {
	result, err := s.gateway.Charge(ctx, &provider.ChargeRequest{
		Amount:         booking.TotalAmount,
		Currency:       booking.Currency,
		PaymentSource:  paymentSource,
		Description:    "Car service booking " + booking.BookingNumber,
		IdempotencyKey: booking.BookingNumber,
		Metadata: map[string]string{
			"booking_number": booking.BookingNumber,
			"customer_id":    booking.CustomerID,
		},
	})
	if err != nil {
		s.logger.Warn("Booking payment failed",
			zap.String("booking_number", booking.BookingNumber),
			zap.String("customer_id", booking.CustomerID),
			zap.Error(err))
		if provider.IsGatewayError(err) {
			return nil, domainErrors.NewPaymentFailedError(err)
		}
		return nil, err
	}
	return result, nil
}

// refundCharge gives back the payment of a booking that was rolled back.
func (s *BookingService) refundCharge(ctx context.Context, booking *model.Booking, transactionID string, cause error) {
	logger := s.logger.With(
		zap.String("booking_number", booking.BookingNumber),
		zap.String("payment_transaction_id", transactionID),
		zap.NamedError("cause", cause))

	if err := s.gateway.Refund(context.WithoutCancel(ctx), transactionID); err != nil {
		logger.Error("Failed to refund charge of unsaved booking", zap.Error(err))
		return
	}
	logger.Warn("Refunded charge of unsaved booking")
}

func (s *BookingService) validateCreate(actor model.Actor, req dto.CreateBookingRequest) error {
	switch req.Source {
	case model.BookingSourceApp:
		if actor.Type != model.ActorCustomer {
			return domainErrors.NewForbiddenError(actor.String(), "only customers can book in the app")
		}
		if req.ExternalBookingID != nil {
			return domainErrors.NewValidationError("external_booking_id", "only allowed for external bookings")
		}
		if req.PaymentSource == "" {
			return domainErrors.NewValidationError("payment_source", "is required")
		}
	case model.BookingSourceExternal:
		if !actor.CanAccessDealer(req.DealerID) {
			return domainErrors.NewForbiddenError(actor.String(), "only the dealer can sync external bookings")
		}
		if req.ExternalBookingID == nil || *req.ExternalBookingID == "" {
			return domainErrors.NewValidationError("external_booking_id", "is required for external bookings")
		}
	default:
		return domainErrors.NewValidationError("source", "unknown booking source %q", req.Source)
	}

	if err := service.ValidateAmount("service_amount", req.ServiceAmount); err != nil {
		return err
	}
	if req.TaxAmount.IsNegative() || !req.TaxAmount.Equal(req.TaxAmount.Round(2)) {
		return domainErrors.NewValidationError("tax_amount", "must be a non-negative amount with at most two decimal places")
	}
	return nil
}

// Get returns the booking, applying an overdue deadline first.
func (s *BookingService) Get(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeBooking(actor, booking) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot access this booking")
	}
	return booking, nil
}

func (s *BookingService) History(ctx context.Context, actor model.Actor, id int64) ([]model.BookingStatusHistory, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.bookings.ListHistory(ctx, id)
}

// Respond accepts or rejects a pending booking. Past the response deadline the
// booking is rejected on behalf of the system and the dealer gets a Conflict.
func (s *BookingService) Respond(ctx context.Context, actor model.Actor, id int64, req dto.RespondBookingRequest) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.OwnsDealer(booking.DealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "only the booked dealer can respond")
	}

	if booking.IsOverdue(s.clock()) {
		if _, err := s.expire(ctx, booking); err != nil && !domainErrors.IsConflict(err) {
			return nil, err
		}
		return nil, domainErrors.NewConflictError("booking", id, "dealer response deadline has passed")
	}
	if booking.Status != model.BookingStatusPending {
		return nil, domainErrors.NewConflictError("booking", id, "booking is no longer pending")
	}

	action := service.ActionReject
	if req.Accept {
		action = service.ActionAccept
	}
	return s.transition(ctx, booking, action, actor, req.Reason)
}

// Cancel cancels a pending or confirmed booking. Customers are refunded per the
// booking's cancellation policy; dealer and admin cancellations refund in full.
func (s *BookingService) Cancel(ctx context.Context, actor model.Actor, id int64, req dto.CancelBookingRequest) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeBooking(actor, booking) || actor.Type == model.ActorSystem {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot cancel this booking")
	}
	return s.transition(ctx, booking, service.ActionCancel, actor, req.Reason)
}

// Complete marks a confirmed booking done and makes sure the dealer is credited.
func (s *BookingService) Complete(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessDealer(booking.DealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "only the dealer can complete a booking")
	}
	return s.transition(ctx, booking, service.ActionComplete, actor, "")
}

func (s *BookingService) MarkNoShow(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessDealer(booking.DealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "only the dealer can report a no-show")
	}
	return s.transition(ctx, booking, service.ActionNoShow, actor, "")
}

// ExpireBooking rejects one overdue booking as the system actor. It returns a
// Conflict when the booking was answered or expired by someone else first.
func (s *BookingService) ExpireBooking(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expire(ctx, booking)
}

// ExpireOverdue sweeps pending bookings past their deadline and returns how many it rejected.
func (s *BookingService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	ids, err := s.bookings.ListOverdue(ctx, s.clock(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if _, err := s.ExpireBooking(ctx, id); err != nil {
			if domainErrors.IsConflict(err) {
				continue
			}
			s.logger.Error("Failed to expire booking", zap.Int64("booking_id", id), zap.Error(err))
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("Expired overdue bookings", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *BookingService) expire(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	if !booking.IsOverdue(s.clock()) {
		return nil, domainErrors.NewConflictError("booking", booking.ID, "booking is no longer awaiting a response")
	}
	return s.transition(ctx, booking, service.ActionExpire, model.SystemActor(expiryJob), "dealer response deadline passed")
}

// load reads a booking and applies a passed deadline lazily.
func (s *BookingService) load(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsOverdue(s.clock()) {
		return booking, nil
	}

	expired, err := s.expire(ctx, booking)
	if err == nil {
		return expired, nil
	}
	if !domainErrors.IsConflict(err) {
		return nil, err
	}
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) transition(ctx context.Context, current *model.Booking, action service.BookingAction, actor model.Actor, reason string) (*model.Booking, error) {
	to, eventType, err := service.NextBookingStatus(current.Status, action)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	next := *current
	next.Status = to
	switch action {
	case service.ActionAccept, service.ActionReject, service.ActionExpire:
		next.RespondedAt = &now
	case service.ActionComplete:
		next.CompletedAt = &now
	case service.ActionCancel:
		next.CancelledAt = &now
		cancelledBy := actor.Type
		next.CancelledBy = &cancelledBy
		next.CancellationReason = reason
		next.RefundAmount = s.refundFor(ctx, current, actor, now)
	}

	var event model.DomainEvent
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.bookings.UpdateIfVersion(ctx, &next); err != nil {
			return err
		}
		from := current.Status
		if err := s.bookings.AddHistory(ctx, &model.BookingStatusHistory{
			BookingID:  next.ID,
			FromStatus: &from,
			ToStatus:   to,
			ActorType:  actor.Type,
			ActorID:    actor.ID,
			Reason:     reason,
		}); err != nil {
			return err
		}
		if err := s.applyLedgerEffect(ctx, &next, action, actor); err != nil {
			return err
		}
		if to == model.BookingStatusRejected || to == model.BookingStatusCancelled {
			if err := s.inventory.ReleaseSlot(ctx, next.SlotID); err != nil {
				return err
			}
		}

		event = model.NewDomainEvent(eventType, next.DealerID, now, snapshotBooking(&next, reason))
		s.publisher.Publish(ctx, event)
		return nil
	})
	if err != nil {
		if domainErrors.IsConflict(err) {
			s.logger.Info("Booking transition lost the race",
				zap.Int64("booking_id", current.ID),
				zap.String("action", string(action)),
				zap.String("actor", actor.String()))
		}
		return nil, err
	}
	s.notifier.Notify(ctx, event)

	s.logger.Info("Booking transitioned",
		zap.Int64("booking_id", next.ID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)),
		zap.String("actor", actor.String()))
	return &next, nil
}

// refundFor is what the customer gets back on cancellation.
func (s *BookingService) refundFor(ctx context.Context, booking *model.Booking, actor model.Actor, now time.Time) decimal.Decimal {
	if actor.Type != model.ActorCustomer {
		return booking.TotalAmount
	}

	var policy *model.CancellationPolicy
	if booking.CancellationPolicyID != nil {
		loaded, err := s.inventory.GetCancellationPolicy(ctx, *booking.CancellationPolicyID)
		if err != nil {
			s.logger.Warn("Cancellation policy unavailable, refunding in full",
				zap.Int64("booking_id", booking.ID),
				zap.Error(err))
		} else {
			policy = loaded
		}
	}
	return service.CustomerRefund(policy, booking.TotalAmount, booking.ScheduledAt, now)
}

// applyLedgerEffect posts what a transition means for the dealer balance.
func (s *BookingService) applyLedgerEffect(ctx context.Context, booking *model.Booking, action service.BookingAction, actor model.Actor) error {
	switch action {
	case service.ActionComplete:
		return s.credit(ctx, booking)
	case service.ActionReject, service.ActionExpire:
		if booking.CreditedAtCreation() {
			return s.reverse(ctx, booking, booking.DealerAmount, "Booking rejected")
		}
	case service.ActionCancel:
		if !booking.CreditedAtCreation() {
			return nil
		}
		reversal := booking.DealerAmount
		if actor.Type == model.ActorCustomer {
			reversal = service.DealerReversal(booking.DealerAmount, booking.RefundAmount, booking.TotalAmount)
		}
		return s.reverse(ctx, booking, reversal, "Booking cancelled")
	}
	return nil
}

// credit posts the dealer's share. It is keyed by the booking, so calling it
// again for an app booking credited at creation changes nothing.
func (s *BookingService) credit(ctx context.Context, booking *model.Booking) error {
	if !booking.DealerAmount.IsPositive() {
		return nil
	}
	bookingID := booking.ID
	_, err := s.ledger.Post(ctx, PostEntry{
		DealerID:    booking.DealerID,
		Amount:      booking.DealerAmount,
		Type:        model.TransactionTypeBookingCredit,
		SourceRef:   booking.SourceRef(),
		BookingID:   &bookingID,
		Description: "Booking " + booking.BookingNumber,
	})
	return err
}

func (s *BookingService) reverse(ctx context.Context, booking *model.Booking, amount decimal.Decimal, description string) error {
	if !amount.IsPositive() {
		return nil
	}
	bookingID := booking.ID
	_, err := s.ledger.Post(ctx, PostEntry{
		DealerID:    booking.DealerID,
		Amount:      amount.Neg(),
		Type:        model.TransactionTypeRefund,
		SourceRef:   booking.SourceRef(),
		BookingID:   &bookingID,
		Description: description + " " + booking.BookingNumber,
	})
	return err
}

func canSeeBooking(actor model.Actor, booking *model.Booking) bool {
	switch actor.Type {
	case model.ActorAdmin, model.ActorSystem:
		return true
	case model.ActorDealer:
		return actor.DealerID == booking.DealerID
	case model.ActorCustomer:
		return actor.ID == booking.CustomerID
	}
	return false
}
