// Package crypto seals credentials kept in env files and settings so they
// are not stored in plain text.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealedPrefix marks a value produced by Seal.
const SealedPrefix = "ENC[v1]:"

// MasterKeyEnv names the env var holding the base64 master key.
const MasterKeyEnv = "MASTER_ENCRYPTION_KEY"

var (
	ErrInvalidKey       = errors.New("invalid master key: must be 32 bytes")
	ErrKeyNotFound      = errors.New("master key not set")
	ErrInvalidSealed    = errors.New("invalid sealed value")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Sealer encrypts with XChaCha20-Poly1305 under one master key.
type Sealer struct {
	key []byte
}

// NewSealer validates the key length.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return &Sealer{key: append([]byte(nil), key...)}, nil
}

// SealerFromEnv builds a sealer from MASTER_ENCRYPTION_KEY.
func SealerFromEnv() (*Sealer, error) {
	raw := os.Getenv(MasterKeyEnv)
	if raw == "" {
		return nil, ErrKeyNotFound
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", MasterKeyEnv, err)
	}
	return NewSealer(key)
}

// Seal returns SealedPrefix + base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("create aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a sealed value. Plain values are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSealed, err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("create aead: %w", err)
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidSealed
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// GenerateKey returns a fresh base64 master key.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
