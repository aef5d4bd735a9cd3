// Package validate implements the Validator (spec §4.4): the fixed
// sequence of checks — signature, payload hash, backlink, lipmaalink,
// then certificate-pool chain — that every entry must pass before (or
// after) it lands in the Content Store.
package validate

import (
	"github.com/baobab-engine/baobab/pkg/bamboo"
	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/base62"
	"github.com/baobab-engine/baobab/pkg/codec"
	"github.com/baobab-engine/baobab/pkg/content"
	"github.com/baobab-engine/baobab/pkg/lipmaa"
	"github.com/baobab-engine/baobab/pkg/signing"
	"github.com/baobab-engine/baobab/pkg/yamfhash"
)

// ContentReader is the read-only slice of the Content Store the
// Validator needs. It is satisfied by *content.Store; tests supply a
// generated mock (internal/mock) instead of a real bbolt database.
type ContentReader interface {
	Get(k content.Key) (content.Value, error)
}

// Validate runs spec §4.4's fixed-order checks against e within
// clumpID, re-entering reader read-only to resolve link targets. It
// returns e unchanged on success.
func Validate(reader ContentReader, clumpID string, e *bamboo.Entry) (*bamboo.Entry, error) {
	if err := checkSignature(e); err != nil {
		return nil, err
	}
	if err := checkPayloadHash(e); err != nil {
		return nil, err
	}
	if err := checkBacklink(reader, e); err != nil {
		return nil, err
	}
	if err := checkLipmaalink(reader, e); err != nil {
		return nil, err
	}
	if err := checkCertificatePool(reader, e); err != nil {
		return nil, err
	}
	return e, nil
}

func checkSignature(e *bamboo.Entry) error {
	preamble, err := codec.EncodePreamble(e)
	if err != nil {
		return err
	}
	if !signing.Verify(e.Sig, preamble, e.Author[:]) {
		return bambooerr.New(bambooerr.KindInvalidSig, "validate: signature check failed for %x/%d/%d", e.Author, e.LogID, e.Seqnum)
	}
	return nil
}

func checkPayloadHash(e *bamboo.Entry) error {
	if !e.HasPayload() {
		// Nothing to check yet; the payload may arrive later.
		return nil
	}
	if err := yamfhash.Verify(e.PayloadHash, e.Payload); err != nil {
		return bambooerr.New(bambooerr.KindInvalidPayloadHash, "validate: payload hash mismatch for %x/%d/%d: %v", e.Author, e.LogID, e.Seqnum, err)
	}
	return nil
}

func checkBacklink(reader ContentReader, e *bamboo.Entry) error {
	if e.Seqnum == 1 {
		if e.Backlink.Present() {
			return bambooerr.New(bambooerr.KindInvalidBacklink, "validate: seqnum 1 must not carry a backlink")
		}
		return nil
	}
	if !e.Backlink.Present() {
		return bambooerr.New(bambooerr.KindMissingBacklink, "validate: seqnum %d requires a backlink", e.Seqnum)
	}
	return checkLinkAgainstStore(reader, authorKey(e, e.Seqnum-1), e.Backlink, bambooerr.KindInvalidBacklink, true)
}

func checkLipmaalink(reader ContentReader, e *bamboo.Entry) error {
	if e.Seqnum <= 1 {
		if e.Lipmaalink.Present() {
			return bambooerr.New(bambooerr.KindInvalidLipmaa, "validate: seqnum %d must not carry a lipmaalink", e.Seqnum)
		}
		return nil
	}
	n := lipmaa.Linkseq(e.Seqnum)
	if n == e.Seqnum-1 {
		if e.Lipmaalink.Present() {
			return bambooerr.New(bambooerr.KindInvalidLipmaa, "validate: lipmaalink must be absent when lipmaa(seqnum) == seqnum-1")
		}
		return nil
	}
	if !e.Lipmaalink.Present() {
		return bambooerr.New(bambooerr.KindMissingLipmaa, "validate: seqnum %d requires a lipmaalink at %d", e.Seqnum, n)
	}
	return checkLinkAgainstStore(reader, authorKey(e, n), e.Lipmaalink, bambooerr.KindInvalidLipmaa, false)
}

// checkLinkAgainstStore resolves the stored entry at target and
// verifies link hashes it; tolerateAbsent controls spec §4.4's
// partial-replication rule, which only applies to backlinks — with
// tolerateAbsent false (the lipmaalink case), an absent target is a
// hard MissingLipmaa failure raised here.
func checkLinkAgainstStore(reader ContentReader, target content.Key, link bamboo.Link, badKind bambooerr.Kind, tolerateAbsent bool) error {
	stored, err := reader.Get(target)
	if err != nil && !bambooerr.Is(err, bambooerr.KindMissing) {
		return err
	}
	if stored.Entry == nil {
		if tolerateAbsent {
			return nil
		}
		return bambooerr.New(bambooerr.KindMissingLipmaa, "validate: link target %d/%d not in store", target.LogID, target.Seqnum)
	}
	if err := yamfhash.Verify(link.Hash(), stored.Entry); err != nil {
		return bambooerr.New(badKind, "validate: link hash mismatch against target %d/%d: %v", target.LogID, target.Seqnum, err)
	}
	return nil
}

func checkCertificatePool(reader ContentReader, e *bamboo.Entry) error {
	// Only pool members at or below the log's current max_seqnum are
	// checked. A reader that cannot enumerate keys (no Match method) gets
	// every pool member checked.
	pool := lipmaa.CertPool(e.Seqnum)
	authorB62 := base62.Encode(e.Author[:])
	max := e.Seqnum
	if m, ok := reader.(interface {
		Match(content.Pattern) ([]content.Key, error)
	}); ok {
		keys, err := m.Match(content.Pattern{AuthorB62: &authorB62, LogID: &e.LogID})
		if err != nil {
			return err
		}
		max = 0
		for _, k := range keys {
			if k.Seqnum > max {
				max = k.Seqnum
			}
		}
	}
	for _, s := range pool {
		if s > max {
			continue
		}
		key := content.Key{AuthorB62: authorB62, LogID: e.LogID, Seqnum: s}
		v, err := reader.Get(key)
		if err != nil && !bambooerr.Is(err, bambooerr.KindMissing) {
			return err
		}
		if v.Entry == nil {
			return bambooerr.New(bambooerr.KindChainBroken, "validate: certificate pool entry %d unretrievable", s)
		}
		linked, rest, err := codec.Decode(v.Entry)
		if err != nil {
			return bambooerr.New(bambooerr.KindChainBroken, "validate: certificate pool entry %d malformed: %v", s, err)
		}
		_ = rest
		if v.Payload != nil {
			linked.Payload = v.Payload
		}
		if err := checkSignature(linked); err != nil {
			return err
		}
		if err := checkBacklink(reader, linked); err != nil {
			return err
		}
		if err := checkLipmaalink(reader, linked); err != nil {
			return err
		}
	}
	return nil
}

func authorKey(e *bamboo.Entry, seqnum uint64) content.Key {
	return content.Key{AuthorB62: base62.Encode(e.Author[:]), LogID: e.LogID, Seqnum: seqnum}
}
