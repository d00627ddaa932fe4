package utils

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(DeriveKey("test-secret"))
	require.NoError(t, err)

	sealed, err := s.Encrypt("access-token-123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access-token-123")

	opened, err := s.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-token-123", opened)
}

func TestSealer_EmptyPassesThrough(t *testing.T) {
	s, err := NewSealer(DeriveKey("k"))
	require.NoError(t, err)

	sealed, err := s.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := s.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestSealer_WrongKeyFails(t *testing.T) {
	a, err := NewSealer(DeriveKey("one"))
	require.NoError(t, err)
	b, err := NewSealer(DeriveKey("two"))
	require.NoError(t, err)

	sealed, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.Error(t, err)

	_, err = a.Decrypt("AAAA")
	assert.Error(t, err)
}

func TestParseEncryptionKey(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	got, err := ParseEncryptionKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = ParseEncryptionKey("")
	assert.Error(t, err)
	_, err = ParseEncryptionKey("not base64!")
	assert.Error(t, err)
	_, err = ParseEncryptionKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
