package provider

import "context"

// WebhookRequest is one signed delivery attempt.
type WebhookRequest struct {
	URL       string
	Secret    string
	EventID   string
	EventType string
	Body      []byte
}

// WebhookResponse is whatever the receiver answered, successful or not.
type WebhookResponse struct {
	StatusCode int
	// Snippet holds the beginning of the response body.
	Snippet string
}

func (r *WebhookResponse) Succeeded() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// WebhookSender posts a webhook. A transport failure or timeout is returned as
// an error; any HTTP answer, including 5xx, is returned as a response.
type WebhookSender interface {
	Send(ctx context.Context, req *WebhookRequest) (*WebhookResponse, error)
}

// SecretCipher seals webhook secrets at rest. The associated data binds a
// ciphertext to its owner so it cannot be moved to another row.
type SecretCipher interface {
	Seal(plaintext, associatedData string) (ciphertext, nonce string, err error)
	Open(ciphertext, nonce, associatedData string) (string, error)
}
