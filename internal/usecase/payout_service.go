package usecase

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/wekeepgrowing/carservice-backend/internal/config"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/service"
)

// PayoutService gates withdrawals against the ledger. Approval debits
// amount+fee, a failure after approval credits it back.
type PayoutService struct {
	tx        repository.TransactionManager
	payouts   repository.PayoutRepository
	dealers   repository.DealerRepository
	ledger    *LedgerService
	publisher EventPublisher
	notifier  EventNotifier
	cfg       config.PayoutConfig
	validate  *validator.Validate
	clock     Clock
	logger    *zap.Logger
}

func NewPayoutService(
	tx repository.TransactionManager,
	payouts repository.PayoutRepository,
	dealers repository.DealerRepository,
	ledger *LedgerService,
	publisher EventPublisher,
	notifier EventNotifier,
	cfg config.PayoutConfig,
	logger *zap.Logger,
) *PayoutService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if notifier == nil {
		notifier = Notifiers{}
	}
	return &PayoutService{
		tx:        tx,
		payouts:   payouts,
		dealers:   dealers,
		ledger:    ledger,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		validate:  validator.New(),
		clock:     systemClock,
		logger:    logger,
	}
}

func (s *PayoutService) WithClock(clock Clock) *PayoutService {
	s.clock = clock
	return s
}

// Fee returns the configured processing fee for amount.
func (s *PayoutService) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.cfg.FeePercentage).Div(decimal.NewFromInt(100)).Round(2)
}

// Request creates a payout in requested. It fails with InsufficientBalance when
// amount+fee exceeds the balance minus what pending payouts already reserve.
func (s *PayoutService) Request(ctx context.Context, actor model.Actor, req dto.CreatePayoutRequest) (*model.PayoutRequest, error) {
	if !actor.CanAccessDealer(req.DealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot request a payout for this dealer")
	}
	if err := service.ValidateAmount("amount", req.Amount); err != nil {
		return nil, err
	}
	if req.Amount.LessThan(s.cfg.MinimumAmount) {
		return nil, domainErrors.NewValidationError("amount", "must be at least %s", s.cfg.MinimumAmount.StringFixed(2))
	}
	if err := s.validate.Struct(req.BankDetails); err != nil {
		return nil, domainErrors.NewValidationError("bank_details", "%v", err)
	}

	fee := s.Fee(req.Amount)
	if req.ProcessingFee != nil {
		if !actor.IsAdmin() {
			return nil, domainErrors.NewForbiddenError(actor.String(), "only admins can override the processing fee")
		}
		fee = *req.ProcessingFee
	}
	if fee.IsNegative() || !fee.Equal(fee.Round(2)) {
		return nil, domainErrors.NewValidationError("processing_fee", "must be a non-negative amount with at most two decimal places")
	}

	now := s.clock()
	reference, err := newPayoutReference(now)
	if err != nil {
		return nil, err
	}
	payout := &model.PayoutRequest{
		DealerID:             req.DealerID,
		Amount:               req.Amount,
		ProcessingFee:        fee,
		NetAmount:            req.Amount,
		BankDetails:          datatypes.NewJSONType(req.BankDetails),
		Status:               model.PayoutStatusRequested,
		TransactionReference: reference,
		RequestedBy:          actor.ID,
	}

	var event model.DomainEvent
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		dealer, err := s.dealers.GetForUpdate(ctx, req.DealerID)
		if err != nil {
			return err
		}
		pending, err := s.payouts.SumPending(ctx, req.DealerID)
		if err != nil {
			return err
		}
		available := dealer.CurrentBalance.Sub(pending)
		if payout.DebitAmount().GreaterThan(available) {
			return domainErrors.NewInsufficientBalanceError(req.DealerID, payout.DebitAmount(), available)
		}

		if err := s.payouts.Create(ctx, payout); err != nil {
			return err
		}
		event = model.NewDomainEvent(model.EventPayoutRequested, payout.DealerID, now, dto.NewPayoutDTO(payout))
		s.publisher.Publish(ctx, event)
		return nil
	})
	if err != nil {
		if domainErrors.IsInsufficientBalance(err) {
			s.logger.Info("Payout rejected for insufficient balance",
				zap.Int64("dealer_id", req.DealerID),
				zap.Stringer("amount", req.Amount),
				zap.Error(err))
		}
		return nil, err
	}
	s.notifier.Notify(ctx, event)

	s.logger.Info("Payout requested",
		zap.Int64("payout_id", payout.ID),
		zap.Int64("dealer_id", payout.DealerID),
		zap.String("reference", payout.TransactionReference),
		zap.Stringer("amount", payout.Amount),
		zap.Stringer("processing_fee", payout.ProcessingFee))
	return payout, nil
}

// Approve re-checks the balance under the dealer lock, posts the single
// payout_debit of amount+fee and moves the payout to processing.
func (s *PayoutService) Approve(ctx context.Context, actor model.Actor, id int64) (*model.PayoutRequest, error) {
	return s.advance(ctx, actor, id, service.PayoutActionApprove, func(ctx context.Context, payout *model.PayoutRequest, from model.PayoutStatus) error {
		dealer, err := s.dealers.GetForUpdate(ctx, payout.DealerID)
		if err != nil {
			return err
		}
		pending, err := s.payouts.SumPending(ctx, payout.DealerID)
		if err != nil {
			return err
		}
		if from.IsPending() {
			pending = pending.Sub(payout.DebitAmount())
		}
		available := dealer.CurrentBalance.Sub(pending)
		if payout.DebitAmount().GreaterThan(available) {
			return domainErrors.NewInsufficientBalanceError(payout.DealerID, payout.DebitAmount(), available)
		}

		payoutID := payout.ID
		_, err = s.ledger.Post(ctx, PostEntry{
			DealerID:    payout.DealerID,
			Amount:      payout.DebitAmount().Neg(),
			Type:        model.TransactionTypePayoutDebit,
			SourceRef:   payout.SourceRef(),
			PayoutID:    &payoutID,
			Description: "Payout " + payout.TransactionReference,
		})
		return err
	})
}

// Complete records the external settlement of a processing payout.
func (s *PayoutService) Complete(ctx context.Context, actor model.Actor, id int64, req dto.CompletePayoutRequest) (*model.PayoutRequest, error) {
	if req.SettlementReference == "" {
		return nil, domainErrors.NewValidationError("settlement_reference", "is required")
	}
	return s.advance(ctx, actor, id, service.PayoutActionComplete, func(ctx context.Context, payout *model.PayoutRequest, _ model.PayoutStatus) error {
		payout.SettlementReference = &req.SettlementReference
		return nil
	})
}

// Fail ends a payout. When the debit was already posted it is compensated by an adjustment.
func (s *PayoutService) Fail(ctx context.Context, actor model.Actor, id int64, req dto.FailPayoutRequest) (*model.PayoutRequest, error) {
	if req.Reason == "" {
		return nil, domainErrors.NewValidationError("reason", "is required")
	}
	return s.advance(ctx, actor, id, service.PayoutActionFail, func(ctx context.Context, payout *model.PayoutRequest, from model.PayoutStatus) error {
		payout.FailureReason = req.Reason
		if from != model.PayoutStatusProcessing {
			return nil
		}
		payoutID := payout.ID
		_, err := s.ledger.Post(ctx, PostEntry{
			DealerID:    payout.DealerID,
			Amount:      payout.DebitAmount(),
			Type:        model.TransactionTypeAdjustment,
			SourceRef:   payout.SourceRef(),
			PayoutID:    &payoutID,
			Description: "Reversal of failed payout " + payout.TransactionReference,
			Reason:      req.Reason,
			CreatedBy:   actor.ID,
		})
		return err
	})
}

type payoutEffect func(ctx context.Context, payout *model.PayoutRequest, from model.PayoutStatus) error

func (s *PayoutService) advance(ctx context.Context, actor model.Actor, id int64, action service.PayoutAction, effect payoutEffect) (*model.PayoutRequest, error) {
	if !actor.IsAdmin() {
		return nil, domainErrors.NewForbiddenError(actor.String(), "only admins can process payouts")
	}

	var (
		payout *model.PayoutRequest
		event  model.DomainEvent
	)
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.payouts.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		to, err := service.NextPayoutStatus(current.Status, action)
		if err != nil {
			return err
		}

		from := current.Status
		now := s.clock()
		current.Status = to
		current.ProcessedBy = actor.ID
		switch to {
		case model.PayoutStatusProcessing:
			current.ApprovedAt = &now
		case model.PayoutStatusCompleted:
			current.CompletedAt = &now
		case model.PayoutStatusFailed:
			current.FailedAt = &now
		}

		if err := effect(ctx, current, from); err != nil {
			return err
		}
		if err := s.payouts.UpdateIfStatus(ctx, current, from); err != nil {
			return err
		}

		payout = current
		event = model.NewDomainEvent(service.PayoutEvent(to), current.DealerID, now, dto.NewPayoutDTO(current))
		s.publisher.Publish(ctx, event)
		return nil
	})
	if err != nil {
		s.logger.Warn("Payout transition failed",
			zap.Int64("payout_id", id),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil, err
	}
	s.notifier.Notify(ctx, event)

	s.logger.Info("Payout transitioned",
		zap.Int64("payout_id", payout.ID),
		zap.String("status", string(payout.Status)),
		zap.String("processed_by", actor.ID))
	return payout, nil
}

func (s *PayoutService) Get(ctx context.Context, actor model.Actor, id int64) (*model.PayoutRequest, error) {
	payout, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessDealer(payout.DealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot access this payout")
	}
	return payout, nil
}

func (s *PayoutService) List(ctx context.Context, actor model.Actor, dealerID int64, page dto.PageRequest) (*dto.PayoutListResponse, error) {
	if !actor.CanAccessDealer(dealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot list this dealer's payouts")
	}
	page.SetDefaults()

	payouts, total, err := s.payouts.ListByDealer(ctx, dealerID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PayoutDTO, len(payouts))
	for i := range payouts {
		items[i] = dto.NewPayoutDTO(&payouts[i])
	}
	return &dto.PayoutListResponse{
		Payouts:    items,
		Pagination: dto.NewPaginationInfo(page, len(items), total),
	}, nil
}
