// Package credentials decrypts per-user exchange API keys.
package credentials

import (
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/models"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/chacha20poly1305"
)

var ErrInvalidKey = errors.New("credentials: key must be 32 bytes hex")

// Source resolves a user's decrypted exchange credentials.
type Source interface {
	Credentials(ctx context.Context, user *models.User) (exchange.Credentials, error)
}

// Store decrypts API pairs sealed with XChaCha20-Poly1305 and caches the
// plaintext for a short TTL.
type Store struct {
	key   []byte
	cache *cache.Cache
}

func NewStore(hexKey string, ttl time.Duration) (*Store, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return &Store{key: key, cache: cache.New(ttl, 2*ttl)}, nil
}

func (s *Store) Credentials(_ context.Context, user *models.User) (exchange.Credentials, error) {
	if user == nil || !user.HasCredentials() {
		return exchange.Credentials{}, exchange.ErrNoCredentials
	}
	cacheKey := fmt.Sprintf("%d:%s", user.ID, user.APIKeyEnc)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(exchange.Credentials), nil
	}

	apiKey, err := s.Decrypt(user.APIKeyEnc)
	if err != nil {
		return exchange.Credentials{}, fmt.Errorf("decrypt api key for user %d: %w", user.ID, err)
	}
	secret, err := s.Decrypt(user.APISecretEnc)
	if err != nil {
		return exchange.Credentials{}, fmt.Errorf("decrypt api secret for user %d: %w", user.ID, err)
	}
	creds := exchange.Credentials{APIKey: apiKey, APISecret: secret}
	s.cache.Set(cacheKey, creds, cache.DefaultExpiration)
	return creds, nil
}

// Forget drops a cached pair, e.g. after the user rotates keys.
func (s *Store) Forget(user *models.User) {
	s.cache.Delete(fmt.Sprintf("%d:%s", user.ID, user.APIKeyEnc))
}

// Encrypt seals plaintext as base64(nonce || ciphertext).
func (s *Store) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Store) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
