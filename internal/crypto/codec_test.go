package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	require.NoError(t, err)

	plaintexts := []string{
		"",
		"sk_live_4242424242424242",
		"key with spaces and :colons:",
		"ünïcödé-日本語-🔑",
		strings.Repeat("a", 4096),
	}

	for _, plaintext := range plaintexts {
		token, err := codec.Encrypt(plaintext)
		require.NoError(t, err)

		decrypted, err := codec.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestCodecTokenFormat(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	require.NoError(t, err)

	token, err := codec.Encrypt("payload")
	require.NoError(t, err)

	parts := strings.Split(token, ":")
	require.Len(t, parts, 2)
	// 12-byte GCM nonce, hex encoded
	assert.Len(t, parts[0], 24)
}

func TestCodecFreshNoncePerEncryption(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	require.NoError(t, err)

	first, err := codec.Encrypt("payload")
	require.NoError(t, err)
	second, err := codec.Encrypt("payload")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCodecRejectsTamperedToken(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	require.NoError(t, err)

	token, err := codec.Encrypt("payload")
	require.NoError(t, err)

	// Flip one hex digit in the ciphertext segment
	tampered := []byte(token)
	last := len(tampered) - 1
	if tampered[last] == '0' {
		tampered[last] = '1'
	} else {
		tampered[last] = '0'
	}

	_, err = codec.Decrypt(string(tampered))
	assert.ErrorIs(t, err, ErrCorruptCiphertext)
}

func TestCodecRejectsMalformedTokens(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	require.NoError(t, err)

	malformed := []string{
		"",
		"nodelimiter",
		"one:two:three",
		"zzzz:abcd",
		"abc:abcd", // odd-length hex nonce
		"0123456789abcdef01234567:zz",
	}

	for _, token := range malformed {
		_, err := codec.Decrypt(token)
		assert.ErrorIs(t, err, ErrCorruptCiphertext, "token %q", token)
	}
}

func TestCodecKeyedBySecret(t *testing.T) {
	first, err := NewCodec("secret-one")
	require.NoError(t, err)
	second, err := NewCodec("secret-two")
	require.NoError(t, err)

	token, err := first.Encrypt("payload")
	require.NoError(t, err)

	_, err = second.Decrypt(token)
	assert.ErrorIs(t, err, ErrCorruptCiphertext)
}
