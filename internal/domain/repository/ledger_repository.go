package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

// LedgerFilter selects a page of a dealer's ledger.
type LedgerFilter struct {
	DealerID int64
	Type     *model.TransactionType
	Limit    int
	Offset   int
}

// LedgerRepository stores balance transactions. It has no update or delete.
type LedgerRepository interface {
	Create(ctx context.Context, entry *model.BalanceTransaction) error
	FindBySource(ctx context.Context, sourceRef string, txType model.TransactionType) (*model.BalanceTransaction, error)
	List(ctx context.Context, filter LedgerFilter) ([]model.BalanceTransaction, int64, error)
	// Sum returns the exact sum of all entry amounts of a dealer.
	Sum(ctx context.Context, dealerID int64) (decimal.Decimal, error)
}
