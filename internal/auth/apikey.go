// Package auth issues and verifies API keys for the LEGION API server.
// Keys never appear in configuration; only their bcrypt hashes do.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyLength is the length of the random part of an API key.
	APIKeyLength = 32
	// APIKeyPrefix is the standard prefix for all API keys.
	APIKeyPrefix = "lg"
	// BcryptMaxInputLength is the maximum input length for bcrypt.
	BcryptMaxInputLength = 72

	displayChars = 8
)

// bcryptCost is a variable so tests can hash quickly.
var bcryptCost = 12

// GeneratedKey is a new API key together with the hash to put in the
// configuration. Key is shown once and never stored.
type GeneratedKey struct {
	Key       string    `json:"key"`
	Hash      string    `json:"hash"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateAPIKey creates a random key and its bcrypt hash.
func GenerateAPIKey() (*GeneratedKey, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	// base32 avoids ambiguous characters
	randomPart := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes))
	randomPart = randomPart[:APIKeyLength]
	key := APIKeyPrefix + "_" + randomPart

	hash, err := HashAPIKey(key)
	if err != nil {
		return nil, err
	}

	return &GeneratedKey{
		Key:       key,
		Hash:      hash,
		Prefix:    DisplayPrefix(key),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// HashAPIKey creates a bcrypt hash of an API key.
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(apiKey), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// ValidateAPIKey checks a key against one stored hash.
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), bcryptInput(apiKey)) == nil
}

// bcrypt truncates at 72 bytes, so longer keys are pre-hashed.
func bcryptInput(apiKey string) []byte {
	keyBytes := []byte(apiKey)
	if len(keyBytes) > BcryptMaxInputLength {
		sum := sha256.Sum256(keyBytes)
		keyBytes = sum[:]
	}
	return keyBytes
}

// IsValidAPIKeyFormat checks the prefix, length and alphabet of a key.
func IsValidAPIKeyFormat(apiKey string) bool {
	if !strings.HasPrefix(apiKey, APIKeyPrefix+"_") {
		return false
	}
	if len(apiKey) < 15 || len(apiKey) > 50 {
		return false
	}
	for _, c := range apiKey {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// DisplayPrefix returns a safe-to-log prefix of a key, such as "lg_abcdefgh...".
func DisplayPrefix(apiKey string) string {
	if !IsValidAPIKeyFormat(apiKey) {
		return "invalid_key"
	}
	random := strings.TrimPrefix(apiKey, APIKeyPrefix+"_")
	if len(random) > displayChars {
		random = random[:displayChars]
	}
	return APIKeyPrefix + "_" + random + "..."
}

// KeyRing verifies presented keys against a fixed set of hashes. Accepted
// keys are remembered by digest so bcrypt runs once per key and process.
type KeyRing struct {
	hashes []string

	mu       sync.RWMutex
	accepted map[[sha256.Size]byte]struct{}
}

// NewKeyRing creates a key ring over the configured hashes.
func NewKeyRing(hashes []string) *KeyRing {
	return &KeyRing{
		hashes:   append([]string(nil), hashes...),
		accepted: make(map[[sha256.Size]byte]struct{}),
	}
}

// Verify reports whether apiKey matches any configured hash.
func (k *KeyRing) Verify(apiKey string) bool {
	if apiKey == "" {
		return false
	}
	digest := sha256.Sum256([]byte(apiKey))

	k.mu.RLock()
	_, ok := k.accepted[digest]
	k.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range k.hashes {
		if ValidateAPIKey(apiKey, h) {
			k.mu.Lock()
			k.accepted[digest] = struct{}{}
			k.mu.Unlock()
			return true
		}
	}
	return false
}

// Len returns the number of configured hashes.
func (k *KeyRing) Len() int {
	return len(k.hashes)
}
