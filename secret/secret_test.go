package secret

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte { return bytes.Repeat([]byte{7}, KeySize) }

func TestSealOpen(t *testing.T) {
	sealed, err := Seal("hunter2", testKey())
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "hunter2")

	plain, err := Open(sealed, testKey())
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestOpenPassesPlainValues(t *testing.T) {
	plain, err := Open("not-sealed", nil)
	require.NoError(t, err)
	assert.Equal(t, "not-sealed", plain)
}

func TestOpenWrongKey(t *testing.T) {
	sealed, err := Seal("hunter2", testKey())
	require.NoError(t, err)
	_, err = Open(sealed, bytes.Repeat([]byte{8}, KeySize))
	assert.Error(t, err)
}

func TestDecodeKey(t *testing.T) {
	key, err := DecodeKey(base64.StdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)
	assert.Equal(t, testKey(), key)

	_, err = DecodeKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrKeySize)

	_, err = Seal("x", []byte("short"))
	assert.ErrorIs(t, err, ErrKeySize)
}
