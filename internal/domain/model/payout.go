package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PayoutStatus is the lifecycle state of a payout request.
type PayoutStatus string

// Approval posts the debit and moves a payout straight to processing, so
// PayoutStatusApproved is never stored.
const (
	PayoutStatusRequested  PayoutStatus = "requested"
	PayoutStatusApproved   PayoutStatus = "approved"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusFailed
}

// IsPending reports whether the payout still reserves balance without having debited it.
func (s PayoutStatus) IsPending() bool {
	return s == PayoutStatusRequested
}

func (s *PayoutStatus) Scan(value interface{}) error {
	str, err := scanString(value, "PayoutStatus")
	if err != nil {
		return err
	}
	*s = PayoutStatus(str)
	return nil
}

func (s PayoutStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// BankDetails is the bank account snapshot taken when a payout is requested.
type BankDetails struct {
	AccountName   string `json:"account_name" validate:"required,max=200"`
	AccountNumber string `json:"account_number" validate:"required,max=50"`
	BankName      string `json:"bank_name" validate:"required,max=200"`
	BranchName    string `json:"branch_name,omitempty" validate:"max=200"`
	RoutingNumber string `json:"routing_number,omitempty" validate:"max=50"`
}

// MaskedAccountNumber keeps only the last four digits.
func (b BankDetails) MaskedAccountNumber() string {
	if len(b.AccountNumber) <= 4 {
		return b.AccountNumber
	}
	return fmt.Sprintf("****%s", b.AccountNumber[len(b.AccountNumber)-4:])
}

// PayoutRequest moves money from a dealer balance to a bank account.
// The ledger is debited Amount+ProcessingFee on approval; NetAmount reaches the bank.
type PayoutRequest struct {
	ID                   int64                           `gorm:"primaryKey;autoIncrement" json:"id"`
	DealerID             int64                           `gorm:"not null;index" json:"dealer_id"`
	Amount               decimal.Decimal                 `gorm:"type:decimal(15,2);not null" json:"amount"`
	ProcessingFee        decimal.Decimal                 `gorm:"type:decimal(15,2);not null;default:0" json:"processing_fee"`
	NetAmount            decimal.Decimal                 `gorm:"type:decimal(15,2);not null" json:"net_amount"`
	BankDetails          datatypes.JSONType[BankDetails] `json:"bank_details"`
	Status               PayoutStatus                    `gorm:"type:varchar(20);not null;index" json:"status"`
	TransactionReference string                          `gorm:"type:varchar(30);uniqueIndex;not null" json:"transaction_reference"`
	SettlementReference  *string                         `gorm:"type:varchar(100)" json:"settlement_reference,omitempty"`
	FailureReason        string                          `gorm:"type:text" json:"failure_reason,omitempty"`
	RequestedBy          string                          `gorm:"type:varchar(64);not null" json:"requested_by"`
	ProcessedBy          string                          `gorm:"type:varchar(64)" json:"processed_by,omitempty"`
	ApprovedAt           *time.Time                      `json:"approved_at,omitempty"`
	CompletedAt          *time.Time                      `json:"completed_at,omitempty"`
	FailedAt             *time.Time                      `json:"failed_at,omitempty"`
	CreatedAt            time.Time                       `json:"created_at"`
	UpdatedAt            time.Time                       `json:"updated_at"`
}

func (PayoutRequest) TableName() string {
	return "payout_requests"
}

// DebitAmount is what the ledger loses when the payout is approved.
func (p *PayoutRequest) DebitAmount() decimal.Decimal {
	return p.Amount.Add(p.ProcessingFee)
}

func (p *PayoutRequest) SourceRef() string {
	return PayoutSourceRef(p.ID)
}

func PayoutSourceRef(payoutID int64) string {
	return fmt.Sprintf("payout:%d", payoutID)
}
