package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealerProfile is a service provider on the marketplace.
// CurrentBalance is a cache of the sum of the dealer's balance transactions and is
// written only by the ledger.
type DealerProfile struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`
	BusinessName         string          `gorm:"type:varchar(200);not null" json:"business_name"`
	CommissionPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_percentage"`
	CurrentBalance       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"current_balance"`
	Rating               decimal.Decimal `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`
	VirtualCardReference *string         `gorm:"type:varchar(100)" json:"virtual_card_reference,omitempty"`
	IsActive             bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (DealerProfile) TableName() string {
	return "dealer_profiles"
}

// CommissionHistory is the audit trail of commission rate changes.
type CommissionHistory struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	DealerID    int64           `gorm:"not null;index" json:"dealer_id"`
	OldRate     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"old_rate"`
	NewRate     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"new_rate"`
	Reason      string          `gorm:"type:text;not null" json:"reason"`
	ChangedBy   string          `gorm:"type:varchar(64);not null" json:"changed_by"`
	EffectiveAt time.Time       `gorm:"not null" json:"effective_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (CommissionHistory) TableName() string {
	return "commission_history"
}
