package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := NewBox("server-secret")
	require.NoError(t, err)

	sealed, err := box.Encrypt("sk-abc123")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-abc123", sealed, "ciphertext should not equal plaintext")

	plain, err := box.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc123", plain)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	box, err := NewBox("server-secret")
	require.NoError(t, err)

	first, err := box.Encrypt("sk-abc123")
	require.NoError(t, err)
	second, err := box.Encrypt("sk-abc123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "nonce should vary between calls")
}

func TestDecryptWithWrongSecretFails(t *testing.T) {
	a, err := NewBox("secret-a")
	require.NoError(t, err)
	b, err := NewBox("secret-b")
	require.NoError(t, err)

	sealed, err := a.Encrypt("sk-abc123")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecryptGarbageFails(t *testing.T) {
	box, err := NewBox("secret")
	require.NoError(t, err)

	for _, input := range []string{"", "!!!", "AAAA"} {
		_, err := box.Decrypt(input)
		assert.ErrorIs(t, err, ErrInvalidCiphertext, "input %q", input)
	}
}
