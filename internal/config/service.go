package config

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type BookingConfig struct {
	// ResponseWindow is how long a dealer has to accept or reject a new booking.
	ResponseWindow        time.Duration   `yaml:"response_window"`
	Currency              string          `yaml:"currency"`
	DefaultCommissionRate decimal.Decimal `yaml:"default_commission_rate"`
}

func (c *BookingConfig) applyDefaults() {
	if c.ResponseWindow == 0 {
		c.ResponseWindow = 2 * time.Hour
	}
	if c.Currency == "" {
		c.Currency = "BDT"
	}
	if c.DefaultCommissionRate.IsZero() {
		c.DefaultCommissionRate = decimal.NewFromInt(15)
	}
}

type PayoutConfig struct {
	// FeePercentage of the requested amount charged on top of it.
	FeePercentage decimal.Decimal `yaml:"fee_percentage"`
	MinimumAmount decimal.Decimal `yaml:"minimum_amount"`
}

func (c *PayoutConfig) applyDefaults() {
	if c.MinimumAmount.IsZero() {
		c.MinimumAmount = decimal.NewFromInt(100)
	}
}

type WebhookConfig struct {
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
	Timeout       time.Duration `yaml:"timeout"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     int           `yaml:"batch_size"`
	EncryptionKey string        `yaml:"encryption_key"`
}

func (c *WebhookConfig) applyDefaults() {
	if c.Workers == 0 {
		c.Workers = 8
	}
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff == 0 {
		c.BaseBackoff = 30 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
}

type GatewayConfig struct {
	// Provider is "stripe" or "offline". Offline approves every charge and is meant for local runs.
	Provider        string `yaml:"provider"`
	StripeSecretKey string `yaml:"stripe_secret_key"`
	// StripeAPIURL overrides the Stripe API base URL, e.g. for stripe-mock.
	StripeAPIURL string `yaml:"stripe_api_url"`
	Currency     string `yaml:"currency"`
	// CardholderID is the Issuing cardholder that owns dealer virtual cards.
	CardholderID string `yaml:"cardholder_id"`
}

type SchedulerConfig struct {
	DeadlineSweepInterval    time.Duration `yaml:"deadline_sweep_interval"`
	ConsistencyCheckInterval time.Duration `yaml:"consistency_check_interval"`
}

func (c *SchedulerConfig) applyDefaults() {
	if c.DeadlineSweepInterval == 0 {
		c.DeadlineSweepInterval = time.Minute
	}
	if c.ConsistencyCheckInterval == 0 {
		c.ConsistencyCheckInterval = time.Hour
	}
}
