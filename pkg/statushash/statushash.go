// Package statushash implements the Store Hash (spec §4.7): a cheap,
// opaque change token per clump table, recomputed lazily whenever the
// table it tracks is touched. It is not a content identifier — just
// something that reliably changes when the underlying table does —
// so it's built directly on a truncated BLAKE2b digest rather than
// anything collision-resistant at full length.
package statushash

import (
	"encoding/binary"
	"sync"

	"go.etcd.io/bbolt"
	"golang.org/x/crypto/blake2b"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/base62"
)

// DigestBytes is the truncated digest length this package hashes
// down to before base62-rendering it. Spec §9 notes the source used
// 7 bytes and flags that as below birthday-attack safety; this is
// only ever used as a change token, never as a content identifier, so
// the implementer is free to widen it — this module does, modestly,
// to reduce accidental same-token collisions across unrelated states
// without pretending to be cryptographically binding.
const DigestBytes = 12

// Kind names which table a digest tracks.
type Kind string

const (
	Content  Kind = "content"
	Identity Kind = "identity"
)

var bucketName = []byte("status")

// Store persists one clump's status table and recomputes digests on
// demand. Identity's digest is process-global (identities aren't
// per-clump) even though it's recorded in each clump's own table,
// matching spec §4.7.
type Store struct {
	db *bbolt.DB

	mu      sync.Mutex
	pending map[Kind]bool
}

// Open opens (creating if absent) the status store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "statushash: open %s: %v", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, bambooerr.New(bambooerr.KindBadArgs, "statushash: init bucket: %v", err)
	}
	return &Store{db: db, pending: map[Kind]bool{Content: true, Identity: true}}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Invalidate marks kind's digest stale; the next CurrentHash call for
// kind recomputes it from source().
func (s *Store) Invalidate(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[kind] = true
}

// CurrentHash returns kind's digest, recomputing from source (an
// enumeration of every key and value in the table kind tracks) if a
// mutation invalidated the cached value since the last call.
func (s *Store) CurrentHash(kind Kind, source func() ([][]byte, error)) (string, error) {
	s.mu.Lock()
	stale := s.pending[kind]
	s.mu.Unlock()

	if !stale {
		cached, err := s.readCached(kind)
		if err == nil && cached != "" {
			return cached, nil
		}
	}

	chunks, err := source()
	if err != nil {
		return "", err
	}
	digest, err := hashChunks(chunks)
	if err != nil {
		return "", err
	}
	encoded := base62.Encode(digest)

	if err := s.writeCached(kind, encoded); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.pending[kind] = false
	s.mu.Unlock()
	return encoded, nil
}

func (s *Store) readCached(kind Kind) (string, error) {
	var v string
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(kind))
		if raw != nil {
			v = string(raw)
		}
		return nil
	})
	return v, err
}

func (s *Store) writeCached(kind Kind, encoded string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(kind), []byte(encoded))
	})
}

// hashChunks folds every chunk into one BLAKE2b digest, independent
// of enumeration order, then truncates to DigestBytes. Order
// independence matters because the tables this hashes (bbolt
// buckets, maps) don't promise iteration order, and the spec only
// requires the token to change when content changes, not that it be
// stable across different orderings of the same content.
func hashChunks(chunks [][]byte) ([]byte, error) {
	acc := make([]byte, blake2b.Size)
	for _, c := range chunks {
		h, err := blake2b.New512(nil)
		if err != nil {
			return nil, bambooerr.New(bambooerr.KindBadArgs, "statushash: %v", err)
		}
		h.Write(c)
		sum := h.Sum(nil)
		for i := range acc {
			acc[i] ^= sum[i]
		}
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(chunks)))
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "statushash: %v", err)
	}
	h.Write(acc)
	h.Write(lenBuf[:])
	return h.Sum(nil)[:DigestBytes], nil
}
