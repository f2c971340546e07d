package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceSlot is a bookable appointment window offered by a dealer.
type ServiceSlot struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	DealerID          int64           `gorm:"not null;index" json:"dealer_id"`
	ServiceName       string          `gorm:"type:varchar(200);not null" json:"service_name"`
	Price             decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
	ScheduledAt       time.Time       `gorm:"not null" json:"scheduled_at"`
	TotalCapacity     int             `gorm:"not null;default:1" json:"total_capacity"`
	AvailableCapacity int             `gorm:"not null;default:1" json:"available_capacity"`
	IsActive          bool            `gorm:"not null;default:true" json:"is_active"`
	IsBlocked         bool            `gorm:"not null;default:false" json:"is_blocked"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (ServiceSlot) TableName() string {
	return "service_slots"
}

// IsBookable reports whether the slot can take one more booking right now.
func (s *ServiceSlot) IsBookable() bool {
	return s.IsActive && !s.IsBlocked && s.AvailableCapacity > 0
}

// Vehicle is a customer's registered vehicle.
type Vehicle struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID      string    `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	Make         string    `gorm:"type:varchar(100)" json:"make"`
	Model        string    `gorm:"type:varchar(100)" json:"model"`
	LicensePlate string    `gorm:"type:varchar(30)" json:"license_plate"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// CancellationPolicy decides how much a customer gets back when cancelling.
type CancellationPolicy struct {
	ID                      int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                    string          `gorm:"type:varchar(100);not null" json:"name"`
	FreeCancellationHours   int             `gorm:"not null;default:24" json:"free_cancellation_hours"`
	PartialRefundHours      int             `gorm:"not null;default:12" json:"partial_refund_hours"`
	PartialRefundPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:50" json:"partial_refund_percentage"`
	CreatedAt               time.Time       `json:"created_at"`
}

func (CancellationPolicy) TableName() string {
	return "cancellation_policies"
}
