package model

import (
	"database/sql/driver"
	"slices"
	"time"

	"gorm.io/datatypes"
)

// WebhookConfiguration is a dealer endpoint subscribed to a set of event types.
// The signing secret is stored encrypted.
type WebhookConfiguration struct {
	ID               int64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	DealerID         int64                       `gorm:"not null;index" json:"dealer_id"`
	URL              string                      `gorm:"type:varchar(500);not null" json:"url"`
	SecretCiphertext string                      `gorm:"type:text;not null" json:"-"`
	SecretIV         string                      `gorm:"type:varchar(64);not null" json:"-"`
	EventTypes       datatypes.JSONSlice[string] `json:"event_types"`
	IsActive         bool                        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

func (WebhookConfiguration) TableName() string {
	return "webhook_configurations"
}

// Subscribes reports whether the configuration wants events of type t.
func (c *WebhookConfiguration) Subscribes(t EventType) bool {
	return c.IsActive && slices.Contains([]string(c.EventTypes), string(t))
}

// WebhookStatus is the delivery state of a webhook event.
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusDelivering WebhookStatus = "delivering"
	WebhookStatusDelivered  WebhookStatus = "delivered"
	WebhookStatusFailed     WebhookStatus = "failed"
)

func (s WebhookStatus) IsTerminal() bool {
	return s == WebhookStatusDelivered || s == WebhookStatusFailed
}

func (s *WebhookStatus) Scan(value interface{}) error {
	str, err := scanString(value, "WebhookStatus")
	if err != nil {
		return err
	}
	*s = WebhookStatus(str)
	return nil
}

func (s WebhookStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// WebhookEvent is one domain event queued for one webhook configuration.
type WebhookEvent struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConfigurationID int64          `gorm:"not null;index" json:"configuration_id"`
	DealerID        int64          `gorm:"not null;index" json:"dealer_id"`
	DomainEventID   string         `gorm:"type:varchar(36);not null;index" json:"domain_event_id"`
	EventType       EventType      `gorm:"type:varchar(50);not null" json:"event_type"`
	Payload         datatypes.JSON `json:"payload"`
	Status          WebhookStatus  `gorm:"type:varchar(20);not null;index:idx_webhook_events_due" json:"status"`
	Attempts        int            `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts     int            `gorm:"not null;default:3" json:"max_attempts"`
	NextAttemptAt   time.Time      `gorm:"not null;index:idx_webhook_events_due" json:"next_attempt_at"`
	LockedAt        *time.Time     `json:"-"`
	LastError       string         `gorm:"type:text" json:"last_error,omitempty"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	FailedAt        *time.Time     `json:"failed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Logs []WebhookLog `gorm:"foreignKey:EventID" json:"logs,omitempty"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// WebhookLog is the audit row of a single delivery attempt.
type WebhookLog struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID         string    `gorm:"type:varchar(36);not null;index" json:"event_id"`
	Attempt         int       `gorm:"not null" json:"attempt"`
	URL             string    `gorm:"type:varchar(500);not null" json:"url"`
	StatusCode      *int      `json:"status_code,omitempty"`
	Error           string    `gorm:"type:text" json:"error,omitempty"`
	ResponseSnippet string    `gorm:"type:text" json:"response_snippet,omitempty"`
	DurationMs      int64     `gorm:"not null" json:"duration_ms"`
	Succeeded       bool      `gorm:"not null" json:"succeeded"`
	CreatedAt       time.Time `json:"created_at"`
}

func (WebhookLog) TableName() string {
	return "webhook_logs"
}
