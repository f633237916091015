// Package crypto provides at-rest encryption for integration credentials and
// small token helpers shared by the connector and integration services.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// MinKeyLength is the minimum operator key length accepted by NewVault.
	MinKeyLength = 32

	maxKeyMaterial = 64
	nonceSize      = 16
	tagSize        = 16
)

var (
	// ErrConfiguration is returned when the operator key is absent or too short.
	ErrConfiguration = errors.New("encryption key missing or shorter than 32 characters")
	// ErrDecryption is returned when a blob is malformed, truncated or fails authentication.
	ErrDecryption = errors.New("decryption failed")
)

// Vault encrypts and decrypts integration credentials with AES-256-GCM.
//
// Blobs are base64(nonce || tag || ciphertext). The key is the SHA-256 digest of
// the operator key, which only normalizes its length: the operator key itself
// must carry enough entropy.
type Vault struct {
	gcm cipher.AEAD
}

// NewVault creates a vault from the operator-supplied key.
func NewVault(operatorKey string) (*Vault, error) {
	if len(operatorKey) < MinKeyLength {
		return nil, ErrConfiguration
	}
	material := operatorKey
	if len(material) > maxKeyMaterial {
		material = material[:maxKeyMaterial]
	}
	key := sha256.Sum256([]byte(material))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{gcm: gcm}, nil
}

// Encrypt encrypts plaintext with a fresh random nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if v == nil {
		return "", ErrConfiguration
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal returns ciphertext || tag; the stored layout puts the tag first.
	sealed := v.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt authenticates and decrypts a blob produced by Encrypt.
func (v *Vault) Decrypt(blob string) (string, error) {
	if v == nil {
		return "", ErrConfiguration
	}

	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: malformed encoding", ErrDecryption)
	}
	if len(data) < nonceSize+tagSize {
		return "", fmt.Errorf("%w: blob too short", ErrDecryption)
	}

	nonce := data[:nonceSize]
	tag := data[nonceSize : nonceSize+tagSize]
	ct := data[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := v.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}

	return string(plaintext), nil
}

// GenerateSecret returns 32 random bytes, hex encoded. Used for HMAC shared
// secrets and connector tokens.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the SHA-256 hex digest of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
