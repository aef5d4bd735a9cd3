package statushash

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "status.dets"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCurrentHashIsStableWithoutMutation(t *testing.T) {
	st := openTestStore(t)
	source := func() ([][]byte, error) { return [][]byte{[]byte("a"), []byte("b")}, nil }

	h1, err := st.CurrentHash(Content, source)
	require.NoError(t, err)
	h2, err := st.CurrentHash(Content, source)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestCurrentHashChangesAfterInvalidate(t *testing.T) {
	st := openTestStore(t)
	calls := 0
	data := [][]byte{[]byte("a")}
	source := func() ([][]byte, error) {
		calls++
		return data, nil
	}

	h1, err := st.CurrentHash(Content, source)
	require.NoError(t, err)

	data = [][]byte{[]byte("a"), []byte("new")}
	st.Invalidate(Content)
	h2, err := st.CurrentHash(Content, source)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, calls)
}

func TestCurrentHashIsOrderIndependent(t *testing.T) {
	st := openTestStore(t)
	forward := func() ([][]byte, error) { return [][]byte{[]byte("x"), []byte("y")}, nil }
	backward := func() ([][]byte, error) { return [][]byte{[]byte("y"), []byte("x")}, nil }

	h1, err := st.CurrentHash(Content, forward)
	require.NoError(t, err)

	st.Invalidate(Content)
	h2, err := st.CurrentHash(Content, backward)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestKindsAreIndependentTokens(t *testing.T) {
	st := openTestStore(t)
	contentSrc := func() ([][]byte, error) { return [][]byte{[]byte("content")}, nil }
	identitySrc := func() ([][]byte, error) { return [][]byte{[]byte("identity")}, nil }

	hc, err := st.CurrentHash(Content, contentSrc)
	require.NoError(t, err)
	hi, err := st.CurrentHash(Identity, identitySrc)
	require.NoError(t, err)
	assert.NotEqual(t, hc, hi)
}
