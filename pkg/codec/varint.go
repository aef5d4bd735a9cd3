package codec

import (
	"encoding/binary"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
)

// encodeVaru64 renders n as an unsigned variable-length integer: a
// 7-bit-per-byte, continuation-bit scheme (spec §6's varu64), which is
// exactly what encoding/binary.PutUvarint implements.
func encodeVaru64(n uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	l := binary.PutUvarint(buf, n)
	return buf[:l]
}

// decodeVaru64 reads one varu64 off the front of b, returning the
// value and the remaining bytes.
func decodeVaru64(b []byte) (uint64, []byte, error) {
	n, l := binary.Uvarint(b)
	if l == 0 {
		return 0, nil, bambooerr.New(bambooerr.KindTruncated, "varu64: not enough bytes")
	}
	if l < 0 {
		return 0, nil, bambooerr.New(bambooerr.KindBadBinary, "varu64: value overflows uint64")
	}
	return n, b[l:], nil
}
