package code

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := map[string]bool{}
	for range 200 {
		c, err := Generate()
		require.NoError(t, err)
		require.True(t, Valid(c), c)
		seen[c] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("000123"))
	assert.False(t, Valid("12345"))
	assert.False(t, Valid("1234567"))
	assert.False(t, Valid("12a456"))
	assert.False(t, Valid(""))
}

func TestHasher(t *testing.T) {
	h, err := NewHasher(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	d := h.Digest("ada@x.edu", "123456")
	assert.Len(t, d, 64)
	assert.NotContains(t, d, "123456")
	assert.Equal(t, d, h.Digest("ada@x.edu", "123456"))
	assert.NotEqual(t, d, h.Digest("bob@x.edu", "123456"))
	assert.NotEqual(t, d, h.Digest("ada@x.edu", "123457"))

	other, err := NewHasher(bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	assert.NotEqual(t, d, other.Digest("ada@x.edu", "123456"))

	_, err = NewHasher([]byte("short"))
	require.Error(t, err)
}
