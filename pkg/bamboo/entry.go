// Package bamboo holds the data model shared by every component of
// the engine: the Entry record (spec §3) and the small value types
// built around it. Nullable link fields are modeled as a sum type
// (spec §9) rather than nil-or-bytes, so that "this link is absent"
// is a fact checkable at construction time instead of something every
// caller has to remember to test for.
package bamboo

import (
	"fmt"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/base62"
	"github.com/baobab-engine/baobab/pkg/yamfhash"
)

// Link is either Absent or a yamf-hash pointing at an earlier entry.
type Link struct {
	hash []byte // nil means Absent
}

// AbsentLink is the zero value; it's also the default Link{}.
func AbsentLink() Link { return Link{} }

// NewLink wraps a yamf-hash as a present Link.
func NewLink(hash []byte) (Link, error) {
	if len(hash) != yamfhash.Size {
		return Link{}, bambooerr.New(bambooerr.KindBadBinary, "link hash must be %d bytes, got %d", yamfhash.Size, len(hash))
	}
	cp := make([]byte, len(hash))
	copy(cp, hash)
	return Link{hash: cp}, nil
}

// Present reports whether the link carries a hash.
func (l Link) Present() bool { return l.hash != nil }

// Hash returns the link's yamf-hash, or nil if absent.
func (l Link) Hash() []byte { return l.hash }

// Entry is the canonical Bamboo record (spec §3).
type Entry struct {
	Tag         byte
	Author      [32]byte
	LogID       uint64
	Seqnum      uint64
	Lipmaalink  Link
	Backlink    Link
	Size        uint64
	PayloadHash []byte // always present, yamfhash.Size bytes
	Sig         []byte // always present once signed, signing.SigSize bytes
	Payload     []byte // nil if not carried/loaded; see HasPayload
}

// HasPayload reports whether the payload half of the record is
// present. A nil zero-length payload is indistinguishable from an
// absent one by design: spec §4.3 treats "payload == None" and a
// zero-size payload identically only when Size == 0, which is handled
// by callers checking Size alongside HasPayload.
func (e *Entry) HasPayload() bool { return e.Payload != nil }

// RequiresBacklink reports whether this entry's seqnum requires a
// backlink field to be present (spec invariant 1).
func (e *Entry) RequiresBacklink() bool { return e.Seqnum > 1 }

// Key identifies a stored record by its full coordinate.
type Key struct {
	AuthorB62 string
	LogID     uint64
	Seqnum    uint64
}

// StoredInfo summarizes one log within a clump (spec §3).
type StoredInfo struct {
	AuthorB62 string
	LogID     uint64
	MaxSeqnum uint64
}

// String renders e's coordinate for log lines and error messages.
func (e *Entry) String() string {
	return fmt.Sprintf("%s/%d/%d", base62.Encode(e.Author[:]), e.LogID, e.Seqnum)
}

// DebugString renders every field of e, including link presence, for
// diagnostics; it never prints payload bytes, only their length.
func (e *Entry) DebugString() string {
	return fmt.Sprintf(
		"Entry{author=%s log_id=%d seqnum=%d backlink=%s lipmaalink=%s payload_hash=%x size=%d}",
		base62.Encode(e.Author[:]), e.LogID, e.Seqnum,
		linkDebugString(e.Backlink), linkDebugString(e.Lipmaalink),
		e.PayloadHash, e.Size,
	)
}

func linkDebugString(l Link) string {
	if !l.Present() {
		return "absent"
	}
	return fmt.Sprintf("%x", l.Hash())
}
