package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/service"
)

// PostEntry is a request to append one ledger entry.
type PostEntry struct {
	DealerID    int64
	Amount      decimal.Decimal
	Type        model.TransactionType
	SourceRef   string
	BookingID   *int64
	PayoutID    *int64
	Description string
	Reason      string
	CreatedBy   string
}

// LedgerService is the only writer of dealer balances.
type LedgerService struct {
	tx       repository.TransactionManager
	ledger   repository.LedgerRepository
	dealers  repository.DealerRepository
	payouts  repository.PayoutRepository
	currency string
	logger   *zap.Logger
}

func NewLedgerService(
	tx repository.TransactionManager,
	ledger repository.LedgerRepository,
	dealers repository.DealerRepository,
	payouts repository.PayoutRepository,
	currency string,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		tx:       tx,
		ledger:   ledger,
		dealers:  dealers,
		payouts:  payouts,
		currency: currency,
		logger:   logger,
	}
}

// Post appends entry and moves the cached balance in one transaction. Posting
// the same (SourceRef, Type) again returns the stored entry and changes nothing.
func (s *LedgerService) Post(ctx context.Context, entry PostEntry) (*model.BalanceTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	var posted *model.BalanceTransaction
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		dealer, err := s.dealers.GetForUpdate(ctx, entry.DealerID)
		if err != nil {
			return err
		}

		existing, err := s.ledger.FindBySource(ctx, entry.SourceRef, entry.Type)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.DealerID != entry.DealerID {
				return domainErrors.NewConflictError("balance_transaction", entry.SourceRef, "source already posted for another dealer")
			}
			s.logger.Info("Ledger entry already posted (idempotency)",
				zap.String("source_ref", entry.SourceRef),
				zap.String("type", string(entry.Type)),
				zap.Int64("dealer_id", entry.DealerID))
			posted = existing
			return nil
		}

		before := dealer.CurrentBalance
		after := before.Add(entry.Amount)
		record := &model.BalanceTransaction{
			DealerID:      entry.DealerID,
			Amount:        entry.Amount,
			Type:          entry.Type,
			SourceRef:     entry.SourceRef,
			BookingID:     entry.BookingID,
			PayoutID:      entry.PayoutID,
			BalanceBefore: before,
			BalanceAfter:  after,
			Description:   entry.Description,
			Reason:        entry.Reason,
			CreatedBy:     entry.CreatedBy,
		}
		if err := s.ledger.Create(ctx, record); err != nil {
			return err
		}
		if err := s.dealers.UpdateBalance(ctx, entry.DealerID, after); err != nil {
			return err
		}

		posted = record
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to post ledger entry",
			zap.Int64("dealer_id", entry.DealerID),
			zap.String("type", string(entry.Type)),
			zap.String("source_ref", entry.SourceRef),
			zap.Stringer("amount", entry.Amount),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Ledger entry posted",
		zap.Int64("dealer_id", posted.DealerID),
		zap.Int64("entry_id", posted.ID),
		zap.String("type", string(posted.Type)),
		zap.String("source_ref", posted.SourceRef),
		zap.Stringer("amount", posted.Amount),
		zap.Stringer("balance_after", posted.BalanceAfter))
	return posted, nil
}

func validateEntry(entry PostEntry) error {
	if !entry.Type.IsValid() {
		return domainErrors.NewValidationError("type", "unknown transaction type %q", entry.Type)
	}
	if entry.SourceRef == "" {
		return domainErrors.NewValidationError("source_ref", "is required")
	}
	if !entry.Amount.Equal(entry.Amount.Round(2)) {
		return domainErrors.NewValidationError("amount", "must have at most two decimal places")
	}

	switch entry.Type {
	case model.TransactionTypeBookingCredit:
		if !entry.Amount.IsPositive() {
			return domainErrors.NewValidationError("amount", "booking credit must be positive")
		}
	case model.TransactionTypePayoutDebit, model.TransactionTypeRefund:
		if !entry.Amount.IsNegative() {
			return domainErrors.NewValidationError("amount", "%s must be negative", entry.Type)
		}
	case model.TransactionTypeAdjustment:
		if entry.Amount.IsZero() {
			return domainErrors.NewValidationError("amount", "adjustment must not be zero")
		}
		if entry.Reason == "" {
			return domainErrors.NewValidationError("reason", "is required for adjustments")
		}
		if entry.CreatedBy == "" {
			return domainErrors.NewValidationError("created_by", "is required for adjustments")
		}
	}
	return nil
}

// BalanceOf recomputes the balance from the ledger.
func (s *LedgerService) BalanceOf(ctx context.Context, dealerID int64) (decimal.Decimal, error) {
	if _, err := s.dealers.GetByID(ctx, dealerID); err != nil {
		return decimal.Zero, err
	}
	return s.ledger.Sum(ctx, dealerID)
}

// GetBalance returns the cached balance with the amount still free to withdraw.
func (s *LedgerService) GetBalance(ctx context.Context, actor model.Actor, dealerID int64) (*dto.BalanceResponse, error) {
	if !actor.CanAccessDealer(dealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot read this dealer's balance")
	}
	dealer, err := s.dealers.GetByID(ctx, dealerID)
	if err != nil {
		return nil, err
	}
	pending, err := s.payouts.SumPending(ctx, dealerID)
	if err != nil {
		return nil, err
	}
	return &dto.BalanceResponse{
		DealerID:       dealerID,
		CurrentBalance: dealer.CurrentBalance,
		PendingPayouts: pending,
		Available:      dealer.CurrentBalance.Sub(pending),
		Currency:       s.currency,
	}, nil
}

func (s *LedgerService) History(ctx context.Context, actor model.Actor, dealerID int64, filters dto.TransactionFilters) (*dto.TransactionListResponse, error) {
	if !actor.CanAccessDealer(dealerID) {
		return nil, domainErrors.NewForbiddenError(actor.String(), "cannot read this dealer's transactions")
	}
	if filters.Type != nil && !filters.Type.IsValid() {
		return nil, domainErrors.NewValidationError("type", "unknown transaction type %q", *filters.Type)
	}
	filters.SetDefaults()

	entries, total, err := s.ledger.List(ctx, repository.LedgerFilter{
		DealerID: dealerID,
		Type:     filters.Type,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	})
	if err != nil {
		s.logger.Error("failed to get transactions",
			zap.Int64("dealer_id", dealerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}

	items := make([]dto.TransactionDTO, len(entries))
	for i := range entries {
		items[i] = dto.NewTransactionDTO(&entries[i])
	}
	return &dto.TransactionListResponse{
		Transactions: items,
		Pagination:   dto.NewPaginationInfo(filters.PageRequest, len(items), total),
	}, nil
}

// Adjust posts a manual correction. Only admins may adjust and a reason is mandatory.
func (s *LedgerService) Adjust(ctx context.Context, actor model.Actor, dealerID int64, req dto.AdjustmentRequest) (*model.BalanceTransaction, error) {
	if !actor.IsAdmin() {
		return nil, domainErrors.NewForbiddenError(actor.String(), "only admins can adjust balances")
	}
	if err := service.ValidateAmount("amount", req.Amount.Abs()); err != nil {
		return nil, err
	}
	return s.Post(ctx, PostEntry{
		DealerID:    dealerID,
		Amount:      req.Amount,
		Type:        model.TransactionTypeAdjustment,
		SourceRef:   "adjustment:" + uuid.NewString(),
		Description: "Manual adjustment",
		Reason:      req.Reason,
		CreatedBy:   actor.ID,
	})
}

// VerifyBalance compares the cached balance with the ledger sum. Both are read
// under the dealer row lock Post takes, so a concurrent posting is seen by both
// or by neither. A mismatch is reported as an IntegrityError and left untouched
// for an operator.
func (s *LedgerService) VerifyBalance(ctx context.Context, dealerID int64) (*dto.VerifyBalanceResponse, error) {
	var dealer *model.DealerProfile
	var computed decimal.Decimal
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if dealer, err = s.dealers.GetForUpdate(ctx, dealerID); err != nil {
			return err
		}
		computed, err = s.ledger.Sum(ctx, dealerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &dto.VerifyBalanceResponse{
		DealerID:   dealerID,
		Cached:     dealer.CurrentBalance,
		Computed:   computed,
		Consistent: dealer.CurrentBalance.Equal(computed),
	}
	if !result.Consistent {
		s.logger.Error("Ledger integrity violation",
			zap.Int64("dealer_id", dealerID),
			zap.Stringer("cached", dealer.CurrentBalance),
			zap.Stringer("computed", computed))
		return result, &domainErrors.IntegrityError{DealerID: dealerID, Cached: dealer.CurrentBalance, Computed: computed}
	}
	return result, nil
}

// VerifyAll checks every dealer and returns how many are inconsistent.
func (s *LedgerService) VerifyAll(ctx context.Context) (int, error) {
	ids, err := s.dealers.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	violations := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return violations, err
		}
		if _, err := s.VerifyBalance(ctx, id); err != nil {
			if domainErrors.IsIntegrity(err) {
				violations++
				continue
			}
			return violations, err
		}
	}

	s.logger.Info("Ledger consistency check finished",
		zap.Int("dealers", len(ids)),
		zap.Int("violations", violations))
	return violations, nil
}
