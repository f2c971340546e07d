package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

type PayoutRepository interface {
	Create(ctx context.Context, payout *model.PayoutRequest) error
	GetByID(ctx context.Context, id int64) (*model.PayoutRequest, error)
	GetForUpdate(ctx context.Context, id int64) (*model.PayoutRequest, error)
	// UpdateIfStatus persists the payout only while the stored status equals from.
	UpdateIfStatus(ctx context.Context, payout *model.PayoutRequest, from model.PayoutStatus) error
	// SumPending totals amount+fee of payouts that reserve balance but have not debited it.
	SumPending(ctx context.Context, dealerID int64) (decimal.Decimal, error)
	ListByDealer(ctx context.Context, dealerID int64, limit, offset int) ([]model.PayoutRequest, int64, error)
}
