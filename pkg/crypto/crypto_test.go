package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = hex.EncodeToString(make([]byte, 32))

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ciphertext, err := Encrypt("imap-app-password", testKey)
	require.NoError(t, err)
	assert.NotEqual(t, "imap-app-password", ciphertext)

	plaintext, err := Decrypt(ciphertext, testKey)
	require.NoError(t, err)
	assert.Equal(t, "imap-app-password", plaintext)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	ciphertext, err := Encrypt("secret", testKey)
	require.NoError(t, err)

	other := make([]byte, 32)
	other[0] = 1
	_, err = Decrypt(ciphertext, hex.EncodeToString(other))
	assert.Error(t, err)
}

func TestKeyValidation(t *testing.T) {
	_, err := Encrypt("x", "not-hex")
	assert.Error(t, err)

	_, err = Encrypt("x", hex.EncodeToString(make([]byte, 16)))
	assert.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	_, err := Decrypt("!!!", testKey)
	assert.Error(t, err)

	_, err = Decrypt("aGk=", testKey) // valid base64, too short
	assert.Error(t, err)
}
