package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

// Test key generated with: openssl rand -base64 32
const testKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM=" // "test-key-for-unit-tests-32-bytes"

func TestNewSecretCipher(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "valid 32-byte base64 key", key: testKey},
		{name: "empty key", key: "", wantErr: true},
		{name: "passphrase hashed to 32 bytes", key: "my-simple-passphrase"},
		{name: "short base64 hashed to 32 bytes", key: base64.StdEncoding.EncodeToString([]byte("sixteen-byte-key"))},
		{name: "long base64 hashed to 32 bytes", key: base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 64)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewSecretCipher(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := NewSecretCipher(testKey)
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "empty string", plaintext: ""},
		{name: "simple password", plaintext: "hunter2"},
		{name: "password with DSN-breaking characters", plaintext: "p@ss/w0rd#with?specials&chars"},
		{name: "unicode", plaintext: "пароль-密码"},
		{name: "long secret", plaintext: strings.Repeat("s", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := c.Encrypt(tt.plaintext)
			require.NoError(t, err)

			if tt.plaintext != "" {
				assert.NotEqual(t, tt.plaintext, encrypted)
			}

			decrypted, err := c.Decrypt(encrypted)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestEncrypt_NonceUniqueness(t *testing.T) {
	c, err := NewSecretCipher(testKey)
	require.NoError(t, err)

	first, err := c.Encrypt("same-secret")
	require.NoError(t, err)
	second, err := c.Encrypt("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "each encryption must use a fresh nonce")
}

func TestDecrypt_WrongKey(t *testing.T) {
	c1, err := NewSecretCipher("key-one")
	require.NoError(t, err)
	c2, err := NewSecretCipher("key-two")
	require.NoError(t, err)

	encrypted, err := c1.Encrypt("secret")
	require.NoError(t, err)

	_, err = c2.Decrypt(encrypted)
	assert.ErrorIs(t, err, apperrors.ErrDecryptionFailed)
}

func TestDecrypt_CorruptedCiphertext(t *testing.T) {
	c, err := NewSecretCipher(testKey)
	require.NoError(t, err)

	encrypted, err := c.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = c.Decrypt(tampered)
	assert.ErrorIs(t, err, apperrors.ErrDecryptionFailed)
}

func TestDecrypt_GarbageInputs(t *testing.T) {
	c, err := NewSecretCipher(testKey)
	require.NoError(t, err)

	for _, input := range []string{"not-base64!!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := c.Decrypt(input)
		assert.ErrorIs(t, err, apperrors.ErrDecryptionFailed, "input %q", input)
	}
}
