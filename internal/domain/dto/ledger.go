package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

// BalanceResponse reports the cached balance and what is free to withdraw.
type BalanceResponse struct {
	DealerID       int64           `json:"dealer_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	PendingPayouts decimal.Decimal `json:"pending_payouts"`
	Available      decimal.Decimal `json:"available"`
	Currency       string          `json:"currency"`
}

// TransactionDTO represents a ledger entry for API responses
type TransactionDTO struct {
	ID            int64                 `json:"id"`
	Type          model.TransactionType `json:"type"`
	Amount        string                `json:"amount"`
	BalanceBefore string                `json:"balance_before"`
	BalanceAfter  string                `json:"balance_after"`
	SourceRef     string                `json:"source_ref"`
	Description   string                `json:"description,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// TransactionListResponse represents the paginated transaction list response
type TransactionListResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
	Pagination   PaginationInfo   `json:"pagination"`
}

type TransactionFilters struct {
	PageRequest
	Type *model.TransactionType `query:"type"`
}

// AdjustmentRequest is a manual signed correction by an admin.
type AdjustmentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"nonzero_money"`
	Reason string          `json:"reason" validate:"required,max=500"`
}

type VerifyBalanceResponse struct {
	DealerID   int64           `json:"dealer_id"`
	Cached     decimal.Decimal `json:"cached"`
	Computed   decimal.Decimal `json:"computed"`
	Consistent bool            `json:"consistent"`
}

func NewTransactionDTO(tx *model.BalanceTransaction) TransactionDTO {
	return TransactionDTO{
		ID:            tx.ID,
		Type:          tx.Type,
		Amount:        tx.Amount.StringFixed(2),
		BalanceBefore: tx.BalanceBefore.StringFixed(2),
		BalanceAfter:  tx.BalanceAfter.StringFixed(2),
		SourceRef:     tx.SourceRef,
		Description:   tx.Description,
		CreatedAt:     tx.CreatedAt,
	}
}
