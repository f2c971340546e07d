package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNewAESCipher_RejectsBadKeys(t *testing.T) {
	for name, key := range map[string]string{
		"not hex":   strings.Repeat("zz", 32),
		"too short": "0011",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewAESCipher(key)
			assert.Error(t, err)
		})
	}
}

func TestAESCipher_SealOpen(t *testing.T) {
	c, err := NewAESCipher(testKey)
	require.NoError(t, err)

	sealed, nonce, err := c.Seal("whsec_abc", "dealer:7")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "whsec_abc")

	plain, err := c.Open(sealed, nonce, "dealer:7")
	require.NoError(t, err)
	assert.Equal(t, "whsec_abc", plain)

	_, err = c.Open(sealed, nonce, "dealer:8")
	assert.Error(t, err, "ciphertext must not open for another owner")
}
