package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Returned when a stored token cannot be decrypted: wrong segment count,
// bad hex, or failed authentication. Indicates stored-data corruption
// rather than caller misuse.
var ErrCorruptCiphertext = errors.New("corrupt ciphertext")

const tokenDelimiter = ":"

// Codec encrypts provider credentials for at-rest storage. The AEAD key
// is the SHA-256 digest of the configured secret, derived once.
type Codec struct {
	aead cipher.AEAD
}

func NewCodec(secret string) (*Codec, error) {
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the
// token as hex(nonce):hex(ciphertext).
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return hex.EncodeToString(nonce) + tokenDelimiter + hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any malformed or tampered token fails with
// ErrCorruptCiphertext.
func (c *Codec) Decrypt(token string) (string, error) {
	parts := strings.Split(token, tokenDelimiter)
	if len(parts) != 2 {
		return "", ErrCorruptCiphertext
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrCorruptCiphertext
	}

	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrCorruptCiphertext
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrCorruptCiphertext
	}

	return string(plaintext), nil
}
