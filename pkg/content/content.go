// Package content implements the Content Store (spec §4.3): a
// per-clump mapping from (author, log_id, seqnum) to the raw entry
// and payload halves of a Bamboo record. It is backed by bbolt, the
// same embedded KV the identity store uses, keeping the whole engine
// on one storage dependency. Every public method except Get is a
// single bbolt transaction, which gives the "atomic per call,
// crash-safe" contract spec §4.3 asks for without any extra
// bookkeeping; Get reads in one transaction and, only when it finds a
// corrupt entry, deletes it in a second one.
package content

import (
	"bytes"
	"encoding/binary"
	"sort"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/codec"
)

var (
	entriesBucket  = []byte("entries")
	payloadsBucket = []byte("payloads")
)

// Part names one half of a stored record, for ExistsPart.
type Part int

const (
	PartEntry Part = iota
	PartPayload
)

// Key identifies one record. LogID and Seqnum are fixed-width in the
// on-disk key so that bbolt's lexicographic ordering groups every key
// by author, then log_id, then seqnum, which is what lets Match use a
// prefix scan instead of a full table walk whenever Author is pinned.
type Key struct {
	AuthorB62 string
	LogID     uint64
	Seqnum    uint64
}

// Value is the pair of byte strings the store actually holds. Either
// half may be absent (nil), matching spec §4.3's "partial records"
// note; Entry, when present, is encode_full_sans_payload (preamble
// plus sig, no payload bytes).
type Value struct {
	Entry   []byte
	Payload []byte
}

// Pattern selects a subset of records by binding zero or more of
// Author/LogID; an unbound field is a wildcard. Seqnum is never
// bound, matching spec §4.3's "(author, log_id, *)" pattern shape.
type Pattern struct {
	AuthorB62 *string
	LogID     *uint64
}

// Store is one clump's content store.
type Store struct {
	db  *bbolt.DB
	log *zap.Logger
}

// Open opens (creating if absent) the content store at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "content: open %s: %v", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(entriesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(payloadsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, bambooerr.New(bambooerr.KindBadArgs, "content: init buckets: %v", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get fetches the full record at k. Both halves of the returned Value
// may be nil, meaning the record is wholly absent. If the stored
// entry bytes fail to decode, the corrupt entry half is deleted in the
// same call (the payload half is left in place) and a Missing error is
// returned (spec §9's self-healing
// rule); this is idempotent under concurrent callers since a second
// caller simply finds nothing to delete.
func (s *Store) Get(k Key) (Value, error) {
	kb := encodeKey(k)
	var v Value
	var corrupt bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		if eb := tx.Bucket(entriesBucket).Get(kb); eb != nil {
			if _, _, err := codec.Decode(eb); err != nil {
				corrupt = true
				return nil
			}
			v.Entry = append([]byte(nil), eb...)
		}
		if pb := tx.Bucket(payloadsBucket).Get(kb); pb != nil {
			v.Payload = append([]byte(nil), pb...)
		}
		return nil
	})
	if err != nil {
		return Value{}, err
	}
	if corrupt {
		// Escalate to a write transaction only now: the common case
		// (nothing corrupt) never takes the write lock.
		if err := s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(entriesBucket).Delete(kb)
		}); err != nil {
			return Value{}, err
		}
		s.log.Warn("dropped corrupt entry on retrieval", zap.String("author", k.AuthorB62), zap.Uint64("log_id", k.LogID), zap.Uint64("seqnum", k.Seqnum))
		return Value{}, bambooerr.New(bambooerr.KindMissing, "content: %s/%d/%d corrupt, discarded", k.AuthorB62, k.LogID, k.Seqnum)
	}
	return v, nil
}

// Put inserts or replaces the record at k.
func (s *Store) Put(k Key, v Value) error {
	kb := encodeKey(k)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if v.Entry != nil {
			if err := tx.Bucket(entriesBucket).Put(kb, v.Entry); err != nil {
				return err
			}
		}
		if v.Payload != nil {
			if err := tx.Bucket(payloadsBucket).Put(kb, v.Payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes both halves of the record at k. Idempotent.
func (s *Store) Delete(k Key) error {
	kb := encodeKey(k)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(entriesBucket).Delete(kb); err != nil {
			return err
		}
		return tx.Bucket(payloadsBucket).Delete(kb)
	})
}

// ExistsPart cheaply checks whether one half of a record is present.
func (s *Store) ExistsPart(k Key, part Part) (bool, error) {
	kb := encodeKey(k)
	bucket := entriesBucket
	if part == PartPayload {
		bucket = payloadsBucket
	}
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucket).Get(kb) != nil
		return nil
	})
	return found, err
}

// Match returns every key matching pattern, in unspecified order
// (bbolt's own key order, in practice).
func (s *Store) Match(pattern Pattern) ([]Key, error) {
	var keys []Key
	err := s.db.View(func(tx *bbolt.Tx) error {
		return scan(tx.Bucket(entriesBucket), pattern, func(k Key, _ []byte) error {
			keys = append(keys, k)
			return nil
		})
	})
	return keys, err
}

// MatchDelete removes every record matching pattern from both
// buckets, atomically.
func (s *Store) MatchDelete(pattern Pattern) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var victims [][]byte
		eb := tx.Bucket(entriesBucket)
		// Collect keys first: bbolt forbids mutating a bucket mid-cursor.
		c := eb.Cursor()
		for k, _ := firstMatch(c, pattern); k != nil; k, _ = nextMatch(c, pattern) {
			victims = append(victims, append([]byte(nil), k...))
		}
		for _, kb := range victims {
			if err := eb.Delete(kb); err != nil {
				return err
			}
			if err := tx.Bucket(payloadsBucket).Delete(kb); err != nil {
				return err
			}
		}
		return nil
	})
}

// Foldl iterates every (key, value) pair once, in unspecified order,
// threading acc through f.
func (s *Store) Foldl(acc interface{}, f func(acc interface{}, k Key, v Value) (interface{}, error)) (interface{}, error) {
	err := s.db.View(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(entriesBucket)
		pb := tx.Bucket(payloadsBucket)
		return eb.ForEach(func(kb, entry []byte) error {
			k, err := decodeKey(kb)
			if err != nil {
				return nil // corrupt key shape; skip rather than abort the fold
			}
			v := Value{Entry: append([]byte(nil), entry...)}
			if payload := pb.Get(kb); payload != nil {
				v.Payload = append([]byte(nil), payload...)
			}
			var ferr error
			acc, ferr = f(acc, k, v)
			return ferr
		})
	})
	return acc, err
}

// Truncate removes every record.
func (s *Store) Truncate() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(entriesBucket); err != nil {
			return err
		}
		if err := tx.DeleteBucket(payloadsBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(entriesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(payloadsBucket)
		return err
	})
}

// StoredInfo summarizes max_seqnum per (author, log_id), sorted by
// author then log_id.
func (s *Store) StoredInfo() ([]StoredInfo, error) {
	maxByLog := map[Key]uint64{}
	_, err := s.Foldl(nil, func(_ interface{}, k Key, _ Value) (interface{}, error) {
		idx := Key{AuthorB62: k.AuthorB62, LogID: k.LogID}
		if k.Seqnum > maxByLog[idx] {
			maxByLog[idx] = k.Seqnum
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]StoredInfo, 0, len(maxByLog))
	for idx, max := range maxByLog {
		out = append(out, StoredInfo{AuthorB62: idx.AuthorB62, LogID: idx.LogID, MaxSeqnum: max})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AuthorB62 != out[j].AuthorB62 {
			return out[i].AuthorB62 < out[j].AuthorB62
		}
		return out[i].LogID < out[j].LogID
	})
	return out, nil
}

// StoredInfo is one summarized (author, log_id) pair (spec §3).
type StoredInfo struct {
	AuthorB62 string
	LogID     uint64
	MaxSeqnum uint64
}

func encodeKey(k Key) []byte {
	buf := make([]byte, 0, len(k.AuthorB62)+1+8+8)
	buf = append(buf, []byte(k.AuthorB62)...)
	buf = append(buf, 0)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], k.LogID)
	buf = append(buf, n[:]...)
	binary.BigEndian.PutUint64(n[:], k.Seqnum)
	buf = append(buf, n[:]...)
	return buf
}

func decodeKey(kb []byte) (Key, error) {
	sep := bytes.IndexByte(kb, 0)
	if sep < 0 || len(kb)-sep-1 != 16 {
		return Key{}, bambooerr.New(bambooerr.KindBadBinary, "content: malformed stored key")
	}
	return Key{
		AuthorB62: string(kb[:sep]),
		LogID:     binary.BigEndian.Uint64(kb[sep+1 : sep+9]),
		Seqnum:    binary.BigEndian.Uint64(kb[sep+9 : sep+17]),
	}, nil
}

func keyPrefix(pattern Pattern) []byte {
	if pattern.AuthorB62 == nil {
		return nil
	}
	buf := append([]byte(*pattern.AuthorB62), 0)
	if pattern.LogID != nil {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], *pattern.LogID)
		buf = append(buf, n[:]...)
	}
	return buf
}

func matches(k Key, pattern Pattern) bool {
	if pattern.AuthorB62 != nil && k.AuthorB62 != *pattern.AuthorB62 {
		return false
	}
	if pattern.LogID != nil && k.LogID != *pattern.LogID {
		return false
	}
	return true
}

// scan walks bucket for every key matching pattern, calling f(k, v)
// for each. When pattern pins Author, a prefix seek avoids visiting
// unrelated authors; otherwise it's a full bucket walk.
func scan(bucket *bbolt.Bucket, pattern Pattern, f func(Key, []byte) error) error {
	c := bucket.Cursor()
	prefix := keyPrefix(pattern)
	var kb, v []byte
	if prefix != nil {
		kb, v = c.Seek(prefix)
	} else {
		kb, v = c.First()
	}
	for ; kb != nil; kb, v = c.Next() {
		if prefix != nil && !bytes.HasPrefix(kb, prefix) {
			break
		}
		k, err := decodeKey(kb)
		if err != nil {
			continue
		}
		if !matches(k, pattern) {
			continue
		}
		if err := f(k, v); err != nil {
			return err
		}
	}
	return nil
}

func firstMatch(c *bbolt.Cursor, pattern Pattern) ([]byte, []byte) {
	prefix := keyPrefix(pattern)
	var kb, v []byte
	if prefix != nil {
		kb, v = c.Seek(prefix)
	} else {
		kb, v = c.First()
	}
	return advanceToMatch(c, kb, v, pattern, prefix)
}

func nextMatch(c *bbolt.Cursor, pattern Pattern) ([]byte, []byte) {
	kb, v := c.Next()
	return advanceToMatch(c, kb, v, pattern, keyPrefix(pattern))
}

func advanceToMatch(c *bbolt.Cursor, kb, v []byte, pattern Pattern, prefix []byte) ([]byte, []byte) {
	for kb != nil {
		if prefix != nil && !bytes.HasPrefix(kb, prefix) {
			return nil, nil
		}
		k, err := decodeKey(kb)
		if err == nil && matches(k, pattern) {
			return kb, v
		}
		kb, v = c.Next()
	}
	return nil, nil
}
