package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	m.Run()
}

func TestGenerateAPIKey(t *testing.T) {
	generated, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(generated.Key, "lg_"))
	assert.Len(t, generated.Key, len("lg_")+APIKeyLength)
	assert.True(t, IsValidAPIKeyFormat(generated.Key))
	assert.True(t, ValidateAPIKey(generated.Key, generated.Hash))
	assert.Equal(t, generated.Key[:11]+"...", generated.Prefix)
	assert.False(t, generated.CreatedAt.IsZero())
}

func TestGenerateAPIKeyUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		generated, err := GenerateAPIKey()
		require.NoError(t, err)
		assert.False(t, seen[generated.Key], "duplicate key %s", generated.Key)
		seen[generated.Key] = true
	}
}

func TestHashAndValidate(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		check  string
		expect bool
	}{
		{name: "matching key", key: "lg_abc123def456ghi789", check: "lg_abc123def456ghi789", expect: true},
		{name: "different key", key: "lg_abc123def456ghi789", check: "lg_abc123def456ghi780", expect: false},
		{name: "long key", key: strings.Repeat("k", 100), check: strings.Repeat("k", 100), expect: true},
		{name: "long keys differing after 72 bytes", key: strings.Repeat("k", 100), check: strings.Repeat("k", 99) + "j", expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashAPIKey(tt.key)
			require.NoError(t, err)
			assert.NotEqual(t, tt.key, hash)
			assert.Equal(t, tt.expect, ValidateAPIKey(tt.check, hash))
		})
	}

	_, err := HashAPIKey("")
	assert.Error(t, err)
	assert.False(t, ValidateAPIKey("", "hash"))
	assert.False(t, ValidateAPIKey("key", ""))
}

func TestIsValidAPIKeyFormat(t *testing.T) {
	tests := []struct {
		key    string
		expect bool
	}{
		{"lg_abcdefghijklmnopqrstuvwxyz234567", true},
		{"sk_abcdefghijklmnopqrstuvwxyz234567", false},
		{"lg_short", false},
		{"lg_" + strings.Repeat("a", 60), false},
		{"lg_abcdefghij-klmnopqrst", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, IsValidAPIKeyFormat(tt.key), tt.key)
	}
}

func TestDisplayPrefix(t *testing.T) {
	assert.Equal(t, "lg_abcdefgh...", DisplayPrefix("lg_abcdefghijklmnopqrstuvwxyz234567"))
	assert.Equal(t, "invalid_key", DisplayPrefix("nope"))
}

func TestKeyRing(t *testing.T) {
	first, err := GenerateAPIKey()
	require.NoError(t, err)
	second, err := GenerateAPIKey()
	require.NoError(t, err)

	ring := NewKeyRing([]string{first.Hash, second.Hash})
	assert.Equal(t, 2, ring.Len())

	assert.True(t, ring.Verify(first.Key))
	assert.True(t, ring.Verify(second.Key))
	// cached path
	assert.True(t, ring.Verify(first.Key))

	assert.False(t, ring.Verify("lg_notakeyatallnotakeyatallnotakey"))
	assert.False(t, ring.Verify(""))
	assert.False(t, NewKeyRing(nil).Verify(first.Key))
}
