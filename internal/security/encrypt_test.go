package security_test

import (
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhtam3704/joynet/internal/security"
)

func TestEncryptRoundTrip(t *testing.T) {
	enc, err := security.NewEncryptor([]byte("unit-test-secret"), nil)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("hello world")
	require.NoError(t, err)
	assert.NotEqual(t, "hello world", ciphertext)

	plain, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hello world", plain)
}

func TestEncryptEmptyKeyRejected(t *testing.T) {
	_, err := security.NewEncryptor(nil, nil)
	assert.Error(t, err)
}

func TestDecryptGarbageFails(t *testing.T) {
	enc, err := security.NewEncryptor([]byte("unit-test-secret"), nil)
	require.NoError(t, err)

	_, err = enc.Decrypt("not-valid-ciphertext")
	assert.Error(t, err)
}

func TestDecryptLegacyFernetPayload(t *testing.T) {
	var key fernet.Key
	require.NoError(t, key.Generate())
	legacy := key.Encode()

	token, err := fernet.EncryptAndSign([]byte("old message"), &key)
	require.NoError(t, err)

	enc, err := security.NewEncryptor([]byte("unit-test-secret"), []string{legacy})
	require.NoError(t, err)

	plain, err := enc.Decrypt(string(token))
	require.NoError(t, err)
	assert.Equal(t, "old message", plain)
}
