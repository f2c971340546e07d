package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	EventTypeHeader = "X-Webhook-Event"
	EventIDHeader   = "X-Webhook-ID"

	signaturePrefix = "sha256="
	snippetLimit    = 1024
)

// Sign returns the signature header value for body: sha256=<hex HMAC-SHA256>.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header the way a receiver would.
func Verify(secret string, body []byte, header string) bool {
	sig := strings.TrimSpace(header)
	if secret == "" || !strings.HasPrefix(sig, signaturePrefix) {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(sig, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sender posts signed webhook bodies. The per-attempt deadline comes from ctx.
type Sender struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

func NewSender(client *http.Client, userAgent string, logger *zap.Logger) *Sender {
	if client == nil {
		client = &http.Client{}
	}
	return &Sender{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
	}
}

func (s *Sender) Send(ctx context.Context, req *provider.WebhookRequest) (*provider.WebhookResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(SignatureHeader, Sign(req.Secret, req.Body))
	httpReq.Header.Set(EventTypeHeader, req.EventType)
	httpReq.Header.Set(EventIDHeader, req.EventID)
	if s.userAgent != "" {
		httpReq.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.Debug("Webhook request failed",
			zap.String("event_id", req.EventID),
			zap.String("url", req.URL),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	return &provider.WebhookResponse{
		StatusCode: resp.StatusCode,
		Snippet:    string(snippet),
	}, nil
}
