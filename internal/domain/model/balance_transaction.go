package model

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeBookingCredit TransactionType = "booking_credit"
	TransactionTypePayoutDebit   TransactionType = "payout_debit"
	TransactionTypeAdjustment    TransactionType = "adjustment"
	TransactionTypeRefund        TransactionType = "refund"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeBookingCredit, TransactionTypePayoutDebit, TransactionTypeAdjustment, TransactionTypeRefund:
		return true
	}
	return false
}

func (t *TransactionType) Scan(value interface{}) error {
	str, err := scanString(value, "TransactionType")
	if err != nil {
		return err
	}
	*t = TransactionType(str)
	return nil
}

func (t TransactionType) Value() (driver.Value, error) {
	return string(t), nil
}

// BalanceTransaction is an append-only ledger entry. Amount is signed.
// (SourceRef, Type) is unique so a retried post cannot create a second entry.
type BalanceTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	DealerID      int64           `gorm:"not null;index:idx_balance_tx_dealer_created" json:"dealer_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Type          TransactionType `gorm:"type:varchar(20);not null;uniqueIndex:idx_balance_tx_source" json:"type"`
	SourceRef     string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_balance_tx_source" json:"source_ref"`
	BookingID     *int64          `gorm:"index" json:"booking_id,omitempty"`
	PayoutID      *int64          `gorm:"index" json:"payout_id,omitempty"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance_after"`
	Description   string          `gorm:"type:text" json:"description,omitempty"`
	// Reason and CreatedBy are mandatory for adjustments.
	Reason    string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedBy string    `gorm:"type:varchar(64)" json:"created_by,omitempty"`
	CreatedAt time.Time `gorm:"not null;index:idx_balance_tx_dealer_created" json:"created_at"`
}

func (BalanceTransaction) TableName() string {
	return "balance_transactions"
}
