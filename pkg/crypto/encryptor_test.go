package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptor_GenerateNewKey(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)
	assert.NotNil(t, enc.identity)
	assert.NotNil(t, enc.recipient)
}

func TestNewEncryptor_InvalidKey(t *testing.T) {
	_, err := NewEncryptor("invalid-key-format")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing identity")
}

func TestEncryptor_KeyReuse(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	enc1, err := NewEncryptor(key)
	require.NoError(t, err)
	enc2, err := NewEncryptor(key)
	require.NoError(t, err)

	ciphertext, err := enc1.EncryptString("cus_P4nZ8kq2")
	require.NoError(t, err)

	plaintext, err := enc2.DecryptString(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "cus_P4nZ8kq2", plaintext)
	assert.Contains(t, enc1.PublicKey(), "age1")
}

func TestEncrypt_DifferentOutputEachTime(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	c1, err := enc.EncryptString("same")
	require.NoError(t, err)
	c2, err := enc.EncryptString("same")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, err := NewEncryptor("")
	require.NoError(t, err)
	enc2, err := NewEncryptor("")
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt([]byte("billing reference"))
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestDecryptString_InvalidBase64(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	_, err = enc.DecryptString("not valid base64!!!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decoding base64")
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
