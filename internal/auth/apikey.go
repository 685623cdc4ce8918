// Package auth verifies the API keys accepted by the alicorn API server.
// Configured keys are either plaintext or bcrypt hashes produced by HashAPIKey,
// so operators can keep only the hash in the configuration file.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

// API key generation and validation constants
const (
	// APIKeyLength is the length of the random part of an API key
	APIKeyLength = 32
	// APIKeyPrefix is the standard prefix for generated API keys
	APIKeyPrefix = "ak"

	// BcryptCost is the bcrypt cost for hashing API keys
	BcryptCost = 12
	// BcryptMaxInputLength is the maximum input length for bcrypt (72 bytes)
	BcryptMaxInputLength = 72

	// verifiedTTL bounds how long a key that matched a hash skips bcrypt.
	verifiedTTL = 5 * time.Minute
)

// KeySet holds the configured API keys and answers whether a presented key
// matches one of them.
type KeySet struct {
	plain  [][]byte
	hashed [][]byte

	// verified maps the SHA-256 of keys that matched a hash.
	verified *cache.Cache
}

// NewKeySet builds a KeySet from configured entries. Empty entries are
// ignored and entries that look like bcrypt hashes are compared as hashes.
func NewKeySet(keys []string) *KeySet {
	s := &KeySet{verified: cache.New(verifiedTTL, 2*verifiedTTL)}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		switch {
		case key == "":
		case IsHash(key):
			s.hashed = append(s.hashed, []byte(key))
		default:
			s.plain = append(s.plain, []byte(key))
		}
	}
	return s
}

// Len returns the number of usable configured keys.
func (s *KeySet) Len() int {
	return len(s.plain) + len(s.hashed)
}

// Valid reports whether key matches a configured key.
func (s *KeySet) Valid(key string) bool {
	if key == "" {
		return false
	}

	presented := []byte(key)
	match := false
	for _, k := range s.plain {
		if subtle.ConstantTimeCompare(presented, k) == 1 {
			match = true
		}
	}
	if match || len(s.hashed) == 0 {
		return match
	}

	digest := sha256.Sum256(presented)
	fingerprint := hex.EncodeToString(digest[:])
	if _, ok := s.verified.Get(fingerprint); ok {
		return true
	}

	for _, h := range s.hashed {
		if ValidateAPIKey(key, string(h)) {
			s.verified.SetDefault(fingerprint, struct{}{})
			return true
		}
	}
	return false
}

// IsHash reports whether s is a bcrypt hash rather than a plaintext key.
func IsHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// GenerateAPIKey creates a new random API key.
func GenerateAPIKey() (string, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	// base32 keeps keys free of ambiguous characters
	randomPart := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes))
	if len(randomPart) > APIKeyLength {
		randomPart = randomPart[:APIKeyLength]
	}

	return fmt.Sprintf("%s_%s", APIKeyPrefix, randomPart), nil
}

// HashAPIKey creates a bcrypt hash of an API key for the configuration file.
func HashAPIKey(apiKey string) (string, error) {
	return hashAPIKey(apiKey, BcryptCost)
}

func hashAPIKey(apiKey string, cost int) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(apiKey), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return string(hash), nil
}

// ValidateAPIKey checks if a provided API key matches the stored hash.
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(storedHash), bcryptInput(apiKey)) == nil
}

// bcryptInput pre-hashes keys longer than bcrypt's 72 byte limit.
func bcryptInput(apiKey string) []byte {
	keyBytes := []byte(apiKey)
	if len(keyBytes) > BcryptMaxInputLength {
		sum := sha256.Sum256(keyBytes)
		keyBytes = sum[:]
	}
	return keyBytes
}

// IsValidAPIKeyFormat checks if an API key looks like one GenerateAPIKey made.
func IsValidAPIKeyFormat(apiKey string) bool {
	if !strings.HasPrefix(apiKey, APIKeyPrefix+"_") {
		return false
	}
	if len(apiKey) < 15 || len(apiKey) > 50 {
		return false
	}

	for _, char := range apiKey {
		if (char < 'a' || char > 'z') &&
			(char < 'A' || char > 'Z') &&
			(char < '0' || char > '9') &&
			char != '_' {
			return false
		}
	}

	return true
}

// CreateDisplayPrefix creates a safe-to-display prefix from a full API key
func CreateDisplayPrefix(apiKey string) string {
	if !IsValidAPIKeyFormat(apiKey) {
		return "invalid_key"
	}

	random := strings.TrimPrefix(apiKey, APIKeyPrefix+"_")
	if len(random) >= 8 {
		random = random[:8]
	}
	return fmt.Sprintf("%s_%s...", APIKeyPrefix, random)
}
