package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

type DealerRepository interface {
	Create(ctx context.Context, dealer *model.DealerProfile) error
	GetByID(ctx context.Context, id int64) (*model.DealerProfile, error)
	GetByUserID(ctx context.Context, userID string) (*model.DealerProfile, error)
	// GetForUpdate locks the dealer row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*model.DealerProfile, error)
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	UpdateCommissionRate(ctx context.Context, id int64, rate decimal.Decimal) error
	SetVirtualCard(ctx context.Context, id int64, reference string) error
	ListIDs(ctx context.Context) ([]int64, error)

	CreateCommissionHistory(ctx context.Context, entry *model.CommissionHistory) error
	ListCommissionHistory(ctx context.Context, dealerID int64) ([]model.CommissionHistory, error)
}
