package identity

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/base62"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "identity.dets"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateGeneratesRandomSecretByDefault(t *testing.T) {
	s := openTestStore(t)
	pub1, err := s.Create("alice", "")
	require.NoError(t, err)
	pub2, err := s.Create("bob", "")
	require.NoError(t, err)
	assert.NotEqual(t, pub1, pub2)
	assert.Len(t, pub1, base62.EncodedPublicKeyLen)
}

func TestCreateWithExplicitSecretIsDeterministic(t *testing.T) {
	s := openTestStore(t)
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	pub1, err := s.Create("alice", string(secret))
	require.NoError(t, err)
	pub2, err := s.Create("alice-again", string(secret))
	require.NoError(t, err)
	assert.Equal(t, pub1, pub2)
}

func TestCreateOverwritesDuplicateAlias(t *testing.T) {
	s := openTestStore(t)
	first, err := s.Create("alice", "")
	require.NoError(t, err)
	second, err := s.Create("alice", "")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	refs, err := s.List()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, second, refs[0].PublicB62)
}

func TestRenamePreservesKeys(t *testing.T) {
	s := openTestStore(t)
	pub, err := s.Create("alice", "")
	require.NoError(t, err)

	renamed, err := s.Rename("alice", "alicia")
	require.NoError(t, err)
	assert.Equal(t, pub, renamed)

	_, err = s.Key("alice", Public)
	require.Error(t, err)
	assert.True(t, bambooerr.Is(err, bambooerr.KindNoSuchIdentity))

	got, err := s.Key("alicia", Public)
	require.NoError(t, err)
	assert.Equal(t, base62.Encode(got), pub)
}

func TestRenameMissingAliasFails(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Rename("nobody", "somebody")
	require.Error(t, err)
	assert.True(t, bambooerr.Is(err, bambooerr.KindNoSuchIdentity))
}

func TestDropMissingAliasFails(t *testing.T) {
	s := openTestStore(t)
	err := s.Drop("nobody")
	require.Error(t, err)
	assert.True(t, bambooerr.Is(err, bambooerr.KindNoSuchIdentity))
}

func TestKeySigningReturnsSecretPublicConcatenation(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create("alice", "")
	require.NoError(t, err)

	secret, err := s.Key("alice", Secret)
	require.NoError(t, err)
	public, err := s.Key("alice", Public)
	require.NoError(t, err)
	signingKey, err := s.Key("alice", Signing)
	require.NoError(t, err)

	assert.Equal(t, append(append([]byte(nil), secret...), public...), signingKey)
}

func TestListIsOrderedByAlias(t *testing.T) {
	s := openTestStore(t)
	for _, alias := range []string{"zeta", "alpha", "mu"} {
		_, err := s.Create(alias, "")
		require.NoError(t, err)
	}
	refs, err := s.List()
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, []string{refs[0].Alias, refs[1].Alias, refs[2].Alias})
}

func TestAsBase62Resolution(t *testing.T) {
	s := openTestStore(t)
	pub, err := s.Create("alice", "")
	require.NoError(t, err)

	t.Run("already base62", func(t *testing.T) {
		got, err := s.AsBase62(pub, nil)
		require.NoError(t, err)
		assert.Equal(t, pub, got)
	})

	t.Run("alias lookup", func(t *testing.T) {
		got, err := s.AsBase62("alice", nil)
		require.NoError(t, err)
		assert.Equal(t, pub, got)
	})

	t.Run("raw public key bytes", func(t *testing.T) {
		raw, err := base62.Decode(pub, base62.PublicKeyLen)
		require.NoError(t, err)
		got, err := s.AsBase62(string(raw), nil)
		require.NoError(t, err)
		assert.Equal(t, pub, got)
	})

	t.Run("unique prefix", func(t *testing.T) {
		got, err := s.AsBase62("~"+pub[:6], []string{pub})
		require.NoError(t, err)
		assert.Equal(t, pub, got)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		other := pub[:4] + strings.Repeat("0", len(pub)-4)
		_, err := s.AsBase62("~"+pub[:4], []string{pub, other})
		require.Error(t, err)
		assert.True(t, bambooerr.Is(err, bambooerr.KindUnknownIdentity))
	})

	t.Run("unresolvable alias", func(t *testing.T) {
		_, err := s.AsBase62("nobody", nil)
		require.Error(t, err)
		assert.True(t, bambooerr.Is(err, bambooerr.KindNoSuchIdentity))
	})
}
