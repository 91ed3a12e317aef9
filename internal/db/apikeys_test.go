package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyFormat(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "sk_"))
	assert.Len(t, key, 3+64)

	hexPart := key[3:]
	for _, c := range hexPart {
		assert.Contains(t, "0123456789abcdef", string(c))
	}
}

func TestGenerateKeyUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.False(t, seen[key], "duplicate key generated")
		seen[key] = true
	}
}

func TestHashKeyDeterministic(t *testing.T) {
	key := "sk_0000000000000000000000000000000000000000000000000000000000000000"

	h1 := HashKey(key)
	h2 := HashKey(key)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	assert.NotEqual(t, h1, HashKey(key+"x"))
}

func TestKeyPrefix(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	prefix := key[:KeyPrefixLen]
	assert.True(t, strings.HasPrefix(prefix, "sk_"))
	assert.Len(t, prefix, 12)
}
