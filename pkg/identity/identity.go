// Package identity manages the engine's keypairs: the global mapping
// from a caller-chosen alias to an Ed25519 secret/public pair (spec
// §4.2). It is backed by a single bbolt database, the same embedded
// KV the other stores use for their `.dets` files, so the whole
// engine depends on exactly one storage primitive.
package identity

import (
	"crypto/rand"
	"sort"
	"strings"
	"sync"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/base62"
	"github.com/baobab-engine/baobab/pkg/signing"
)

var bucketName = []byte("identities")

// KeyKind selects which half of a keypair Key returns.
type KeyKind int

const (
	Secret KeyKind = iota
	Public
	Signing
)

// Ref is one entry of List: an alias paired with its base62 public key.
type Ref struct {
	Alias     string
	PublicB62 string
}

// Store is the identity store for one engine instance; identities are
// global, so there is exactly one Store regardless of how many clumps
// the engine serves.
type Store struct {
	db  *bbolt.DB
	log *zap.Logger

	// mu serializes every mutation, matching the "serialized keyed
	// container" contract of spec §5: a bbolt write transaction
	// already serializes at the database level, but Rename and Drop
	// check that the alias exists before writing and must not
	// interleave with a concurrent write to the same alias.
	mu sync.Mutex
}

// Open opens (creating if absent) the identity store at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "identity: open %s: %v", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, bambooerr.New(bambooerr.KindBadArgs, "identity: init bucket: %v", err)
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

// Create assigns alias a keypair and returns its base62 public key.
// secretSpec may be empty (generate fresh randomness), exactly 32
// bytes (a raw secret seed), or a 43-character base62 string. An
// existing alias is silently overwritten, per spec §4.2.
func (s *Store) Create(alias string, secretSpec string) (string, error) {
	if alias == "" {
		return "", bambooerr.New(bambooerr.KindBadArgs, "identity: alias must not be empty")
	}
	seed, err := decodeSecretSpec(secretSpec)
	if err != nil {
		return "", err
	}
	public, err := signing.DerivePublic(seed)
	if err != nil {
		return "", bambooerr.New(bambooerr.KindBadArgs, "identity: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value := append(append([]byte(nil), seed...), public...)
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(alias), value)
	})
	if err != nil {
		return "", bambooerr.New(bambooerr.KindBadArgs, "identity: store %s: %v", alias, err)
	}
	s.log.Debug("identity created", zap.String("alias", alias))
	return base62.Encode(public), nil
}

// Rename moves alias old to new, preserving its keys. Fails with
// NoSuchIdentity if old does not exist.
func (s *Store) Rename(oldAlias, newAlias string) (string, error) {
	if newAlias == "" {
		return "", bambooerr.New(bambooerr.KindBadArgs, "identity: new alias must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var public []byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		value := b.Get([]byte(oldAlias))
		if value == nil {
			return bambooerr.New(bambooerr.KindNoSuchIdentity, "identity: %s not found", oldAlias)
		}
		cp := append([]byte(nil), value...)
		if err := b.Put([]byte(newAlias), cp); err != nil {
			return err
		}
		public = cp[signing.SecretSize:]
		return b.Delete([]byte(oldAlias))
	})
	if err != nil {
		return "", err
	}
	return base62.Encode(public), nil
}

// Drop removes alias and destroys its secret key.
func (s *Store) Drop(alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(alias)) == nil {
			return bambooerr.New(bambooerr.KindNoSuchIdentity, "identity: %s not found", alias)
		}
		return b.Delete([]byte(alias))
	})
}

// List returns every identity, ordered by alias.
func (s *Store) List() ([]Ref, error) {
	var refs []Ref
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.ForEach(func(k, v []byte) error {
			refs = append(refs, Ref{
				Alias:     string(k),
				PublicB62: base62.Encode(v[signing.SecretSize:]),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Alias < refs[j].Alias })
	return refs, nil
}

// Key returns one half of alias's keypair. Signing returns the
// 64-byte secret‖public concatenation the external signing primitive
// expects (spec §6).
func (s *Store) Key(alias string, which KeyKind) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(alias))
		if v == nil {
			return bambooerr.New(bambooerr.KindNoSuchIdentity, "identity: %s not found", alias)
		}
		switch which {
		case Secret:
			out = append([]byte(nil), v[:signing.SecretSize]...)
		case Public:
			out = append([]byte(nil), v[signing.SecretSize:]...)
		case Signing:
			out = append([]byte(nil), v...)
		default:
			return bambooerr.New(bambooerr.KindBadArgs, "identity: unknown key kind %d", which)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AsBase62 resolves ref to a base62 public key following spec §4.2's
// fixed resolution order. knownAuthors is the set of base62 authors
// currently present in the Content Store, needed for the "~prefix"
// form; the caller (the engine) supplies it so this package stays
// independent of the content store.
func (s *Store) AsBase62(ref string, knownAuthors []string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "~"):
		return resolvePrefix(ref[1:], knownAuthors)
	case len(ref) == base62.EncodedPublicKeyLen:
		return ref, nil
	case len(ref) == base62.PublicKeyLen:
		return base62.Encode([]byte(ref)), nil
	default:
		public, err := s.Key(ref, Public)
		if err != nil {
			return "", err
		}
		return base62.Encode(public), nil
	}
}

func resolvePrefix(prefix string, knownAuthors []string) (string, error) {
	seen := map[string]bool{}
	var matches []string
	for _, a := range knownAuthors {
		if strings.HasPrefix(a, prefix) && !seen[a] {
			seen[a] = true
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", bambooerr.New(bambooerr.KindUnknownIdentity, "identity: no author matches prefix ~%s", prefix)
	default:
		return "", bambooerr.New(bambooerr.KindUnknownIdentity, "identity: prefix ~%s is ambiguous (%d matches)", prefix, len(matches))
	}
}

func decodeSecretSpec(secretSpec string) ([]byte, error) {
	switch len(secretSpec) {
	case 0:
		seed := make([]byte, signing.SecretSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, bambooerr.New(bambooerr.KindBadArgs, "identity: generating random secret: %v", err)
		}
		return seed, nil
	case signing.SecretSize:
		return []byte(secretSpec), nil
	case base62.EncodedPublicKeyLen:
		return base62.Decode(secretSpec, signing.SecretSize)
	default:
		return nil, bambooerr.New(bambooerr.KindBadArgs,
			"identity: secret must be omitted, %d raw bytes, or a %d-char base62 string, got %d bytes",
			signing.SecretSize, base62.EncodedPublicKeyLen, len(secretSpec))
	}
}
