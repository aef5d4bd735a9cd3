// Package metadata implements the Clump Metadata block set (spec
// §4.6): a per-clump set of block specifiers — an author, a log_id,
// or an (author, log_id) pair — checked against every incoming entry.
// Like the identity and content stores it is backed by bbolt.
package metadata

import (
	"encoding/binary"
	"sort"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
)

var bucketName = []byte("blocks")

// Spec names a block specifier. Exactly one of AuthorB62/LogID is set
// for an author-only or log_id-only block; both set means the
// (author, log_id) pair form.
type Spec struct {
	AuthorB62 *string
	LogID     *uint64
}

// Triple is a fully-qualified entry coordinate, the shape
// blocked?/filter_blocked check against a Spec's rules.
type Triple struct {
	AuthorB62 string
	LogID     uint64
	Seqnum    uint64
}

// Store is one clump's block set.
type Store struct {
	db  *bbolt.DB
	log *zap.Logger
}

// Open opens (creating if absent) the metadata store at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "metadata: open %s: %v", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, bambooerr.New(bambooerr.KindBadArgs, "metadata: init bucket: %v", err)
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

// Block inserts spec into the block set, idempotently, and returns
// the full updated list. Rejecting a spec naming a locally-owned
// author (BlockedLocalIdentity) and purging matching content are the
// engine's responsibility, since both require knowledge — the
// Identity Store and the Content Store — this package deliberately
// doesn't have (spec §4.6 keeps the stores loosely coupled).
func (s *Store) Block(spec Spec) ([]Spec, error) {
	if spec.AuthorB62 == nil && spec.LogID == nil {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "metadata: block spec must name an author, a log_id, or both")
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(encodeSpec(spec), []byte{1})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("block added", specFields(spec)...)
	return s.BlocksList()
}

// Unblock removes spec if present (a no-op otherwise) and returns the
// full updated list. Removing a general block (author or log_id
// alone) never removes a more specific (author, log_id) block.
func (s *Store) Unblock(spec Spec) ([]Spec, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(encodeSpec(spec))
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("block removed", specFields(spec)...)
	return s.BlocksList()
}

// BlocksList returns every active block specifier.
func (s *Store) BlocksList() ([]Spec, error) {
	var specs []Spec
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			spec, err := decodeSpec(k)
			if err != nil {
				return nil
			}
			specs = append(specs, spec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(specs, func(i, j int) bool { return specKey(specs[i]) < specKey(specs[j]) })
	return specs, nil
}

// Blocked reports whether triple matches any active block: its
// author alone, its log_id alone, or the (author, log_id) pair.
func (s *Store) Blocked(triple Triple) (bool, error) {
	author := triple.AuthorB62
	logID := triple.LogID
	var blocked bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, spec := range []Spec{
			{AuthorB62: &author},
			{LogID: &logID},
			{AuthorB62: &author, LogID: &logID},
		} {
			if b.Get(encodeSpec(spec)) != nil {
				blocked = true
				return nil
			}
		}
		return nil
	})
	return blocked, err
}

// FilterBlocked returns the sub-sequence of triples that are NOT
// blocked, preserving input order.
func (s *Store) FilterBlocked(triples []Triple) ([]Triple, error) {
	var out []Triple
	for _, t := range triples {
		blocked, err := s.Blocked(t)
		if err != nil {
			return nil, err
		}
		if !blocked {
			out = append(out, t)
		}
	}
	return out, nil
}

// PatternFor derives the content-store match pattern a caller should
// use to purge content matching spec (the "narrow purge" of spec
// §4.6's block operation).
func PatternFor(spec Spec) (authorB62 *string, logID *uint64) {
	return spec.AuthorB62, spec.LogID
}

const (
	hasAuthorFlag = 1
	hasLogIDFlag  = 1
)

func encodeSpec(spec Spec) []byte {
	var flags [2]byte
	buf := make([]byte, 0, 2+64+8)
	if spec.AuthorB62 != nil {
		flags[0] = hasAuthorFlag
	}
	if spec.LogID != nil {
		flags[1] = hasLogIDFlag
	}
	buf = append(buf, flags[:]...)
	if spec.AuthorB62 != nil {
		buf = append(buf, []byte(*spec.AuthorB62)...)
	}
	buf = append(buf, 0xFF) // separator, disambiguating variable-length author from fixed logid suffix
	if spec.LogID != nil {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], *spec.LogID)
		buf = append(buf, n[:]...)
	}
	return buf
}

func decodeSpec(k []byte) (Spec, error) {
	if len(k) < 2 {
		return Spec{}, bambooerr.New(bambooerr.KindBadBinary, "metadata: malformed stored key")
	}
	hasAuthor := k[0] == hasAuthorFlag
	hasLogID := k[1] == hasLogIDFlag
	rest := k[2:]
	sep := len(rest) - 1
	if hasLogID {
		sep -= 8
	}
	if sep < 0 || rest[sep] != 0xFF {
		return Spec{}, bambooerr.New(bambooerr.KindBadBinary, "metadata: malformed stored key")
	}
	var spec Spec
	if hasAuthor {
		author := string(rest[:sep])
		spec.AuthorB62 = &author
	}
	if hasLogID {
		logID := binary.BigEndian.Uint64(rest[sep+1:])
		spec.LogID = &logID
	}
	return spec, nil
}

func specKey(s Spec) string {
	k := encodeSpec(s)
	return string(k)
}

// specFields renders spec as zap fields for Block/Unblock's log
// lines, omitting whichever half is unset rather than logging a zero
// value that would read as a real author or log_id.
func specFields(spec Spec) []zap.Field {
	var fields []zap.Field
	if spec.AuthorB62 != nil {
		fields = append(fields, zap.String("author", *spec.AuthorB62))
	}
	if spec.LogID != nil {
		fields = append(fields, zap.Uint64("log_id", *spec.LogID))
	}
	return fields
}
