package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
)

var _ provider.SecretCipher = (*AESCipher)(nil)

// AESCipher is AES-256-GCM with base64 encoded output.
type AESCipher struct {
	aead cipher.AEAD
}

func NewAESCipher(hexKey string) (*AESCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.New("invalid encryption key format")
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes (64 hex chars)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESCipher{aead: aead}, nil
}

func (c *AESCipher) Seal(plaintext, associatedData string) (string, string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("failed to read nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), []byte(associatedData))
	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(nonce), nil
}

func (c *AESCipher) Open(ciphertext, nonce, associatedData string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	rawNonce, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", fmt.Errorf("invalid nonce encoding: %w", err)
	}
	if len(rawNonce) != c.aead.NonceSize() {
		return "", errors.New("invalid nonce length")
	}

	plaintext, err := c.aead.Open(nil, rawNonce, sealed, []byte(associatedData))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plaintext), nil
}
