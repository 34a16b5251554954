package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	sealer, err := NewSealer(key)
	require.NoError(t, err)
	return sealer
}

func TestSealOpen(t *testing.T) {
	sealer := newTestSealer(t)

	sealed, err := sealer.Seal("elastic-password")
	require.NoError(t, err)
	require.NotContains(t, sealed, "elastic-password")

	again, err := sealer.Seal("elastic-password")
	require.NoError(t, err)
	require.NotEqual(t, sealed, again, "nonce must differ per seal")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "elastic-password", opened)
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	sealed, err := newTestSealer(t).Seal("secret")
	require.NoError(t, err)

	_, err = newTestSealer(t).Open(sealed)
	require.Error(t, err)
}

func TestOpenMalformed(t *testing.T) {
	sealer := newTestSealer(t)

	_, err := sealer.Open("%%%")
	require.ErrorIs(t, err, ErrMalformed)

	_, err = sealer.Open(base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNewSealerRejectsShortKey(t *testing.T) {
	_, err := NewSealer(base64.StdEncoding.EncodeToString([]byte("too-short")))
	require.Error(t, err)
}

func TestSealOptional(t *testing.T) {
	sealer := newTestSealer(t)

	out, err := sealer.SealOptional(nil)
	require.NoError(t, err)
	require.Nil(t, out)

	empty := ""
	out, err = sealer.SealOptional(&empty)
	require.NoError(t, err)
	require.Nil(t, out)

	value := "api-key"
	out, err = sealer.SealOptional(&value)
	require.NoError(t, err)
	require.NotNil(t, out)
	opened, err := sealer.Open(*out)
	require.NoError(t, err)
	require.Equal(t, value, opened)
}
