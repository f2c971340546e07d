package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "booking.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadConfig(t *testing.T) {
	writeConfig(t, `
database:
  host: localhost
  port: 5432
  conn_max_lifetime: 1h
jwt:
  secret: s3cret
booking:
  response_window: 30m
  default_commission_rate: 12.5
payout:
  fee_percentage: 2
webhook:
  encryption_key: `+testKey+`
  base_backoff: 1s
`)
	t.Setenv("BOOKING_DATABASE_HOST", "postgres.internal")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres.internal", cfg.Database.Host)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 30*time.Minute, cfg.Booking.ResponseWindow)
	assert.True(t, decimal.RequireFromString("12.5").Equal(cfg.Booking.DefaultCommissionRate))
	assert.True(t, decimal.NewFromInt(2).Equal(cfg.Payout.FeePercentage))
	assert.Equal(t, time.Second, cfg.Webhook.BaseBackoff)

	// defaults
	assert.Equal(t, "booking", cfg.Service.Name)
	assert.Equal(t, 3, cfg.Webhook.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, "BDT", cfg.Booking.Currency)
	assert.Equal(t, "BDT", cfg.Gateway.Currency)
	assert.Equal(t, "booking-events", cfg.Redis.Channel)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing jwt secret", "webhook:\n  encryption_key: " + testKey + "\n"},
		{"short encryption key", "jwt:\n  secret: x\nwebhook:\n  encryption_key: abcd\n"},
		{"commission rate out of range", "jwt:\n  secret: x\nwebhook:\n  encryption_key: " + testKey + "\nbooking:\n  default_commission_rate: 120\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.body)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", db.DSN())
}
