package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrEmptyKey indicates no encryption key was configured
	ErrEmptyKey = errors.New("encryption key is required")
	// ErrMalformedCiphertext indicates the stored value was not produced by this service
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// Service encrypts credentials with AES-256-GCM.
// Ciphertexts are base64(nonce || sealed).
type Service struct {
	aead cipher.AEAD
}

// NewService creates an encryption service.
// A 64 character hex key is used as is; any other key is hashed to 32 bytes.
func NewService(key string) (*Service, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != 32 {
		sum := sha256.Sum256([]byte(key))
		raw = sum[:]
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &Service{aead: aead}, nil
}

// Encrypt seals plaintext with a random nonce
func (s *Service) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt
func (s *Service) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return "", ErrMalformedCiphertext
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}
