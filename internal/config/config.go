package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/wekeepgrowing/carservice-backend/pkg/config"
	"github.com/wekeepgrowing/carservice-backend/pkg/logger"
	"gopkg.in/yaml.v3"
)

const serviceName = "booking"

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	JWT       JWTConfig       `yaml:"jwt"`
	Redis     RedisConfig     `yaml:"redis"`
	Booking   BookingConfig   `yaml:"booking"`
	Payout    PayoutConfig    `yaml:"payout"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type LogConfig struct {
	logger.Config `yaml:",inline"`
	// SQLLevel is the gorm log level: silent, error, warn or info.
	SQLLevel      string        `yaml:"sql_level"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// LoadConfig loads booking.yaml through viper so BOOKING_* environment variables
// override file values, then decodes the merged settings into Config.
func LoadConfig() (*Config, error) {
	src, err := pkgconfig.Load(serviceName)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(src.GetAll())
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", src.File(), err)
	}

	return cfg, nil
}

func decode(settings map[string]interface{}) (*Config, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = serviceName
	}
	if c.Log.SlowThreshold == 0 {
		c.Log.SlowThreshold = 200 * time.Millisecond
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "booking-events"
	}
	c.Booking.applyDefaults()
	c.Payout.applyDefaults()
	c.Webhook.applyDefaults()
	c.Scheduler.applyDefaults()
	if c.Gateway.Currency == "" {
		c.Gateway.Currency = c.Booking.Currency
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if len(c.Webhook.EncryptionKey) != 64 {
		return fmt.Errorf("webhook.encryption_key must be 64 hex characters")
	}
	if c.Booking.DefaultCommissionRate.IsNegative() || c.Booking.DefaultCommissionRate.GreaterThan(hundred) {
		return fmt.Errorf("booking.default_commission_rate must be between 0 and 100")
	}
	if c.Payout.FeePercentage.IsNegative() || c.Payout.FeePercentage.GreaterThan(hundred) {
		return fmt.Errorf("payout.fee_percentage must be between 0 and 100")
	}
	return nil
}
