package content

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "content.dets"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }
func u64Ptr(n uint64) *uint64 { return &n }

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	k := Key{AuthorB62: "alice", LogID: 0, Seqnum: 1}
	v := Value{Entry: []byte("entry-bytes"), Payload: []byte("payload-bytes")}
	require.NoError(t, s.Put(k, v))

	got, err := s.Get(k)
	require.NoError(t, err)
	assert.Equal(t, v.Entry, got.Entry)
	assert.Equal(t, v.Payload, got.Payload)
}

func TestGetAbsentReturnsEmptyValue(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Get(Key{AuthorB62: "nobody", LogID: 0, Seqnum: 1})
	require.NoError(t, err)
	assert.Nil(t, got.Entry)
	assert.Nil(t, got.Payload)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	k := Key{AuthorB62: "alice", LogID: 0, Seqnum: 1}
	require.NoError(t, s.Put(k, Value{Entry: []byte("x")}))
	require.NoError(t, s.Delete(k))
	require.NoError(t, s.Delete(k))
	got, err := s.Get(k)
	require.NoError(t, err)
	assert.Nil(t, got.Entry)
}

func TestExistsPart(t *testing.T) {
	s := openTestStore(t)
	k := Key{AuthorB62: "alice", LogID: 0, Seqnum: 1}
	require.NoError(t, s.Put(k, Value{Entry: []byte("entry-only")}))

	has, err := s.ExistsPart(k, PartEntry)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.ExistsPart(k, PartPayload)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMatchByAuthorOnly(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Key{AuthorB62: "alice", LogID: 0, Seqnum: 1}, Value{Entry: []byte("a")}))
	require.NoError(t, s.Put(Key{AuthorB62: "alice", LogID: 1, Seqnum: 1}, Value{Entry: []byte("b")}))
	require.NoError(t, s.Put(Key{AuthorB62: "bob", LogID: 0, Seqnum: 1}, Value{Entry: []byte("c")}))

	keys, err := s.Match(Pattern{AuthorB62: strPtr("alice")})
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestMatchByLogIDOnlyScansAllAuthors(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Key{AuthorB62: "alice", LogID: 5, Seqnum: 1}, Value{Entry: []byte("a")}))
	require.NoError(t, s.Put(Key{AuthorB62: "bob", LogID: 5, Seqnum: 1}, Value{Entry: []byte("b")}))
	require.NoError(t, s.Put(Key{AuthorB62: "bob", LogID: 6, Seqnum: 1}, Value{Entry: []byte("c")}))

	keys, err := s.Match(Pattern{LogID: u64Ptr(5)})
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestMatchDeleteRemovesBothHalves(t *testing.T) {
	s := openTestStore(t)
	k := Key{AuthorB62: "alice", LogID: 0, Seqnum: 1}
	require.NoError(t, s.Put(k, Value{Entry: []byte("e"), Payload: []byte("p")}))
	require.NoError(t, s.Put(Key{AuthorB62: "bob", LogID: 0, Seqnum: 1}, Value{Entry: []byte("e2")}))

	require.NoError(t, s.MatchDelete(Pattern{AuthorB62: strPtr("alice")}))

	got, err := s.Get(k)
	require.NoError(t, err)
	assert.Nil(t, got.Entry)
	assert.Nil(t, got.Payload)

	got, err = s.Get(Key{AuthorB62: "bob", LogID: 0, Seqnum: 1})
	require.NoError(t, err)
	assert.NotNil(t, got.Entry)
}

func TestTruncateRemovesEverything(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Key{AuthorB62: "alice", LogID: 0, Seqnum: 1}, Value{Entry: []byte("e")}))
	require.NoError(t, s.Truncate())

	keys, err := s.Match(Pattern{})
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFoldlVisitsEveryRecordOnce(t *testing.T) {
	s := openTestStore(t)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, s.Put(Key{AuthorB62: "alice", LogID: 0, Seqnum: i}, Value{Entry: []byte("e")}))
	}

	count, err := s.Foldl(0, func(acc interface{}, _ Key, _ Value) (interface{}, error) {
		return acc.(int) + 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStoredInfoSummarizesMaxSeqnum(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Key{AuthorB62: "alice", LogID: 0, Seqnum: 1}, Value{Entry: []byte("e")}))
	require.NoError(t, s.Put(Key{AuthorB62: "alice", LogID: 0, Seqnum: 2}, Value{Entry: []byte("e")}))
	require.NoError(t, s.Put(Key{AuthorB62: "bob", LogID: 0, Seqnum: 1}, Value{Entry: []byte("e")}))

	infos, err := s.StoredInfo()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "alice", infos[0].AuthorB62)
	assert.Equal(t, uint64(2), infos[0].MaxSeqnum)
	assert.Equal(t, "bob", infos[1].AuthorB62)
	assert.Equal(t, uint64(1), infos[1].MaxSeqnum)
}

func TestGetSelfHealsCorruptEntry(t *testing.T) {
	s := openTestStore(t)
	k := Key{AuthorB62: "alice", LogID: 0, Seqnum: 1}
	require.NoError(t, s.Put(k, Value{Entry: []byte("not a valid bamboo entry at all"), Payload: []byte("p")}))

	_, err := s.Get(k)
	require.Error(t, err)
	assert.True(t, bambooerr.Is(err, bambooerr.KindMissing))

	has, err := s.ExistsPart(k, PartEntry)
	require.NoError(t, err)
	assert.False(t, has)
}
