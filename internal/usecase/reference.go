package usecase

import (
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	digits    = "0123456789"
	hexDigits = "0123456789abcdef"
	alnum     = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// newBookingNumber returns CS + yymmdd + 6 random digits, e.g. CS250301482913.
func newBookingNumber(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(digits, 6)
	if err != nil {
		return "", fmt.Errorf("failed to generate booking number: %w", err)
	}
	return "CS" + now.Format("060102") + suffix, nil
}

// newPayoutReference returns PAY + yymmdd + 8 upper-case hex characters.
func newPayoutReference(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(hexDigits, 8)
	if err != nil {
		return "", fmt.Errorf("failed to generate payout reference: %w", err)
	}
	return "PAY" + now.Format("060102") + strings.ToUpper(suffix), nil
}

// newWebhookSecret returns a 40 character signing secret prefixed with whsec_.
func newWebhookSecret() (string, error) {
	secret, err := gonanoid.Generate(alnum, 40)
	if err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return "whsec_" + secret, nil
}
