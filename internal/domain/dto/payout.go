package dto

import (
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

type CreatePayoutRequest struct {
	DealerID int64           `json:"dealer_id" validate:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount" validate:"money"`
	// ProcessingFee overrides the configured fee; admins only.
	ProcessingFee *decimal.Decimal  `json:"processing_fee,omitempty"`
	BankDetails   model.BankDetails `json:"bank_details"`
}

type CompletePayoutRequest struct {
	SettlementReference string `json:"settlement_reference" validate:"required,max=100"`
}

type FailPayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// PayoutDTO hides the full account number.
type PayoutDTO struct {
	ID                   int64              `json:"id"`
	DealerID             int64              `json:"dealer_id"`
	Amount               string             `json:"amount"`
	ProcessingFee        string             `json:"processing_fee"`
	NetAmount            string             `json:"net_amount"`
	Status               model.PayoutStatus `json:"status"`
	TransactionReference string             `json:"transaction_reference"`
	BankName             string             `json:"bank_name"`
	AccountNumber        string             `json:"account_number"`
	SettlementReference  *string            `json:"settlement_reference,omitempty"`
	FailureReason        string             `json:"failure_reason,omitempty"`
}

type PayoutListResponse struct {
	Payouts    []PayoutDTO    `json:"payouts"`
	Pagination PaginationInfo `json:"pagination"`
}

func NewPayoutDTO(p *model.PayoutRequest) PayoutDTO {
	bank := p.BankDetails.Data()
	return PayoutDTO{
		ID:                   p.ID,
		DealerID:             p.DealerID,
		Amount:               p.Amount.StringFixed(2),
		ProcessingFee:        p.ProcessingFee.StringFixed(2),
		NetAmount:            p.NetAmount.StringFixed(2),
		Status:               p.Status,
		TransactionReference: p.TransactionReference,
		BankName:             bank.BankName,
		AccountNumber:        bank.MaskedAccountNumber(),
		SettlementReference:  p.SettlementReference,
		FailureReason:        p.FailureReason,
	}
}
