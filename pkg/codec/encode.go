package codec

import (
	"bytes"

	"github.com/baobab-engine/baobab/pkg/bamboo"
	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/lipmaa"
)

// EncodePreamble renders everything that gets signed: tag through
// payload_hash, in wire order, with the lipmaalink and backlink fields
// included or omitted according to the same seqnum-driven rule Decode
// uses (spec §4.1/§4.2). This is the byte string signing.Sign is
// called over and signing.Verify checks against.
func EncodePreamble(e *bamboo.Entry) ([]byte, error) {
	if len(e.PayloadHash) == 0 {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "encode: payload_hash is required")
	}

	var buf bytes.Buffer
	buf.WriteByte(e.Tag)
	buf.Write(e.Author[:])
	buf.Write(encodeVaru64(e.LogID))
	buf.Write(encodeVaru64(e.Seqnum))

	needLipmaa, needBacklink := linkPresence(e)
	if needLipmaa {
		if !e.Lipmaalink.Present() {
			return nil, bambooerr.New(bambooerr.KindBadArgs, "encode: lipmaalink required for seqnum %d", e.Seqnum)
		}
		buf.Write(e.Lipmaalink.Hash())
	}
	if needBacklink {
		if !e.Backlink.Present() {
			return nil, bambooerr.New(bambooerr.KindBadArgs, "encode: backlink required for seqnum %d", e.Seqnum)
		}
		buf.Write(e.Backlink.Hash())
	}

	buf.Write(encodeVaru64(e.Size))
	buf.Write(e.PayloadHash)
	return buf.Bytes(), nil
}

// EncodeFull renders the full wire record: preamble, signature, and
// (if carried) payload, exactly as Decode expects to read it back.
func EncodeFull(e *bamboo.Entry) ([]byte, error) {
	preamble, err := EncodePreamble(e)
	if err != nil {
		return nil, err
	}
	if len(e.Sig) == 0 {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "encode: sig is required")
	}

	var buf bytes.Buffer
	buf.Write(preamble)
	buf.Write(e.Sig)
	if e.HasPayload() {
		buf.Write(e.Payload)
	}
	return buf.Bytes(), nil
}

// linkPresence reports, for an entry's seqnum alone, whether a
// lipmaalink and/or backlink field belongs on the wire (spec
// invariant 1: lipmaalink is only written when it differs from the
// backlink, i.e. when lipmaa.Linkseq(seqnum) != seqnum-1).
func linkPresence(e *bamboo.Entry) (needLipmaa, needBacklink bool) {
	if e.Seqnum <= 1 {
		return false, false
	}
	return lipmaa.Linkseq(e.Seqnum) != e.Seqnum-1, true
}
