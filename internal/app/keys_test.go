package app

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeKeyHex(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")
	decoded, err := DecodeKey(hex.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, decoded)
}

func TestDecodeKeyBase64(t *testing.T) {
	raw := []byte("another-master-key-value!")
	decoded, err := DecodeKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, decoded)

	decoded, err = DecodeKey(base64.RawStdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, decoded)
}

func TestDecodeKeyRawFallback(t *testing.T) {
	decoded, err := DecodeKey("not~valid~encoding")
	require.NoError(t, err)
	require.Equal(t, []byte("not~valid~encoding"), decoded)
}

func TestDecodeKeyEmpty(t *testing.T) {
	_, err := DecodeKey("   ")
	require.Error(t, err)
}
