package usecase

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/service"
)

// DealerService onboards dealers and manages their commission terms.
type DealerService struct {
	tx          repository.TransactionManager
	dealers     repository.DealerRepository
	gateway     provider.PaymentGateway
	defaultRate decimal.Decimal
	clock       Clock
	logger      *zap.Logger
}

func NewDealerService(
	tx repository.TransactionManager,
	dealers repository.DealerRepository,
	gateway provider.PaymentGateway,
	defaultRate decimal.Decimal,
	logger *zap.Logger,
) *DealerService {
	return &DealerService{
		tx:          tx,
		dealers:     dealers,
		gateway:     gateway,
		defaultRate: defaultRate,
		clock:       systemClock,
		logger:      logger,
	}
}

// CreateProfile is called by the registration workflow once a dealer user exists.
func (s *DealerService) CreateProfile(ctx context.Context, actor model.Actor, req dto.CreateDealerRequest) (*model.DealerProfile, error) {
	if !actor.IsAdmin() && actor.ID != req.UserID {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot onboard another user")
	}

	rate := s.defaultRate
	if req.CommissionPercentage != nil {
		if !actor.IsAdmin() {
			return nil, domainErrors.NewForbiddenError(actor.String(), "only admins can set a commission rate")
		}
		rate = *req.CommissionPercentage
	}
	if err := service.ValidateRate(rate); err != nil {
		return nil, err
	}

	dealer := &model.DealerProfile{
		UserID:               req.UserID,
		BusinessName:         req.BusinessName,
		CommissionPercentage: rate,
		CurrentBalance:       decimal.Zero,
		IsActive:             true,
	}
	if err := s.dealers.Create(ctx, dealer); err != nil {
		return nil, err
	}

	s.logger.Info("Dealer profile created",
		zap.Int64("dealer_id", dealer.ID),
		zap.String("user_id", dealer.UserID),
		zap.Stringer("commission_percentage", rate))
	return dealer, nil
}

func (s *DealerService) Get(ctx context.Context, actor model.Actor, dealerID int64) (*model.DealerProfile, error) {
	if !actor.CanAccessDealer(dealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot read this dealer")
	}
	return s.dealers.GetByID(ctx, dealerID)
}

// UpdateCommissionRate changes the rate used for new bookings and records the change.
// Existing bookings keep the split they were created with.
func (s *DealerService) UpdateCommissionRate(ctx context.Context, actor model.Actor, dealerID int64, req dto.UpdateCommissionRequest) (*model.CommissionHistory, error) {
	if !actor.IsAdmin() {
		return nil, domainErrors.NewForbiddenError(actor.String(), "only admins can change commission rates")
	}
	if err := service.ValidateRate(req.Rate); err != nil {
		return nil, err
	}
	if req.Reason == "" {
		return nil, domainErrors.NewValidationError("reason", "is required")
	}

	var entry *model.CommissionHistory
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		dealer, err := s.dealers.GetForUpdate(ctx, dealerID)
		if err != nil {
			return err
		}
		if err := s.dealers.UpdateCommissionRate(ctx, dealerID, req.Rate); err != nil {
			return err
		}
		entry = &model.CommissionHistory{
			DealerID:    dealerID,
			OldRate:     dealer.CommissionPercentage,
			NewRate:     req.Rate,
			Reason:      req.Reason,
			ChangedBy:   actor.ID,
			EffectiveAt: s.clock(),
		}
		return s.dealers.CreateCommissionHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Commission rate changed",
		zap.Int64("dealer_id", dealerID),
		zap.Stringer("old_rate", entry.OldRate),
		zap.Stringer("new_rate", entry.NewRate),
		zap.String("changed_by", actor.ID))
	return entry, nil
}

func (s *DealerService) CommissionHistory(ctx context.Context, actor model.Actor, dealerID int64) ([]model.CommissionHistory, error) {
	if !actor.IsAdmin() {
		return nil, domainErrors.NewForbiddenError(actor.String(), "only admins can read commission history")
	}
	if _, err := s.dealers.GetByID(ctx, dealerID); err != nil {
		return nil, err
	}
	return s.dealers.ListCommissionHistory(ctx, dealerID)
}

// IssueVirtualCard asks the gateway for a card and stores its reference on the profile.
func (s *DealerService) IssueVirtualCard(ctx context.Context, actor model.Actor, dealerID int64) (*provider.VirtualCard, error) {
	if !actor.CanAccessDealer(dealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot issue a card for this dealer")
	}
	dealer, err := s.dealers.GetByID(ctx, dealerID)
	if err != nil {
		return nil, err
	}
	if dealer.VirtualCardReference != nil {
		return nil, domainErrors.NewConflictError("dealer", dealerID, "a virtual card was already issued")
	}

	card, err := s.gateway.IssueVirtualCard(ctx, dealerID)
	if err != nil {
		s.logger.Error("Virtual card issuance failed", zap.Int64("dealer_id", dealerID), zap.Error(err))
		if provider.IsGatewayError(err) {
			return nil, domainErrors.NewPaymentFailedError(err)
		}
		return nil, err
	}
	if err := s.dealers.SetVirtualCard(ctx, dealerID, card.CardReference); err != nil {
		return nil, err
	}

	s.logger.Info("Virtual card issued",
		zap.Int64("dealer_id", dealerID),
		zap.String("card_reference", card.CardReference))
	return card, nil
}
