package codec

import (
	"github.com/baobab-engine/baobab/pkg/bamboo"
	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/lipmaa"
	"github.com/baobab-engine/baobab/pkg/signing"
	"github.com/baobab-engine/baobab/pkg/yamfhash"
)

// minPreambleBytes is tag(1) + author(32): the least this function
// needs to even look at the varint fields.
const minPreambleBytes = 33

// Decode parses one Entry off the front of b, returning the entry and
// whatever bytes remain. It never performs cryptographic validation
// (see pkg/validate for that); it only parses the wire shape of spec
// §4.1, including the conditional presence of the lipmaalink and
// backlink fields, which is derived from seqnum and lipmaa.Linkseq
// rather than from the bytes themselves (spec §9).
func Decode(b []byte) (*bamboo.Entry, []byte, error) {
	if len(b) < minPreambleBytes {
		return nil, nil, bambooerr.New(bambooerr.KindTruncated, "need at least %d bytes for tag+author, got %d", minPreambleBytes, len(b))
	}

	e := &bamboo.Entry{}
	e.Tag = b[0]
	copy(e.Author[:], b[1:33])
	rest := b[33:]

	var err error
	e.LogID, rest, err = decodeVaru64(rest)
	if err != nil {
		return nil, nil, err
	}
	e.Seqnum, rest, err = decodeVaru64(rest)
	if err != nil {
		return nil, nil, err
	}
	if e.Seqnum < 1 {
		return nil, nil, bambooerr.New(bambooerr.KindBadBinary, "seqnum must be >= 1, got 0")
	}

	if e.Seqnum > 1 && lipmaa.Linkseq(e.Seqnum) != e.Seqnum-1 {
		if e.Lipmaalink, rest, err = takeLink(rest); err != nil {
			return nil, nil, err
		}
	}

	if e.Seqnum > 1 {
		if e.Backlink, rest, err = takeLink(rest); err != nil {
			return nil, nil, err
		}
	}

	e.Size, rest, err = decodeVaru64(rest)
	if err != nil {
		return nil, nil, err
	}

	if len(rest) < yamfhash.Size {
		return nil, nil, bambooerr.New(bambooerr.KindTruncated, "need %d bytes for payload_hash", yamfhash.Size)
	}
	e.PayloadHash = append([]byte(nil), rest[:yamfhash.Size]...)
	rest = rest[yamfhash.Size:]

	if len(rest) < signing.SigSize {
		return nil, nil, bambooerr.New(bambooerr.KindTruncated, "need %d bytes for sig", signing.SigSize)
	}
	e.Sig = append([]byte(nil), rest[:signing.SigSize]...)
	rest = rest[signing.SigSize:]

	switch {
	case uint64(len(rest)) >= e.Size:
		e.Payload = append([]byte(nil), rest[:e.Size]...)
		rest = rest[e.Size:]
	case len(rest) == 0:
		// Payload absent; caller may lazily load it from the content store.
	default:
		return nil, nil, bambooerr.New(bambooerr.KindTruncated, "partial payload: have %d of %d bytes", len(rest), e.Size)
	}

	return e, rest, nil
}

func takeLink(b []byte) (bamboo.Link, []byte, error) {
	if len(b) < yamfhash.Size {
		return bamboo.Link{}, nil, bambooerr.New(bambooerr.KindTruncated, "need %d bytes for link", yamfhash.Size)
	}
	l, err := bamboo.NewLink(b[:yamfhash.Size])
	if err != nil {
		return bamboo.Link{}, nil, err
	}
	return l, b[yamfhash.Size:], nil
}
