// Package crypto encrypts stored connection secrets with AES-256-GCM.
// Authenticated encryption means tampered or wrongly keyed ciphertext is
// rejected rather than silently decrypted to garbage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

// ErrInvalidKey is returned when the encryption key is empty.
var ErrInvalidKey = errors.New("invalid encryption key: must not be empty")

// SecretCipher encrypts and decrypts database passwords and other per
// connection secrets before they touch the metadata store.
type SecretCipher struct {
	gcm cipher.AEAD
}

// NewSecretCipher creates a cipher from a key string. A base64 value decoding
// to exactly 32 bytes (openssl rand -base64 32) is used directly; anything
// else is treated as a passphrase and hashed with SHA-256.
func NewSecretCipher(keyInput string) (*SecretCipher, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	var key []byte
	decoded, err := base64.StdEncoding.DecodeString(keyInput)
	if err == nil && len(decoded) == 32 {
		key = decoded
	} else {
		hash := sha256.Sum256([]byte(keyInput))
		key = hash[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &SecretCipher{gcm: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext || tag). Empty input is returned
// as-is so optional secrets stay optional in storage.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any failure (bad base64, short input, failed
// authentication) is reported as apperrors.ErrDecryptionFailed and is fatal to
// the request; decryption is never retried.
func (c *SecretCipher) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", apperrors.ErrDecryptionFailed)
	}

	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize+c.gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", apperrors.ErrDecryptionFailed)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", apperrors.ErrDecryptionFailed)
	}

	return string(plaintext), nil
}
