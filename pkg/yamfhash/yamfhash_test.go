package yamfhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateIsSizeBytes(t *testing.T) {
	digest, err := Create([]byte("hello, bamboo"))
	require.NoError(t, err)
	require.Len(t, digest, Size)
}

func TestVerifyRoundTrip(t *testing.T) {
	msg := []byte("entry preamble bytes go here")
	digest, err := Create(msg)
	require.NoError(t, err)
	require.NoError(t, Verify(digest, msg))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	digest, err := Create([]byte("original"))
	require.NoError(t, err)
	require.Error(t, Verify(digest, []byte("tampered")))
}

func TestVerifyRejectsShortDigest(t *testing.T) {
	require.Error(t, Verify([]byte{0x00, 0x01}, []byte("x")))
}
