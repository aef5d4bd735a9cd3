// Package base62 implements the alphanumeric codec used to render
// 32-byte Ed25519 public keys (and other fixed-size digests) as
// 43-character text. It is one of the engine's external
// collaborators (spec §6); no third-party base62 implementation was
// available in the dependency corpus this module was grounded on
// (the closest relative present, mr-tron/base58, is a different
// alphabet and algorithm), so it is built directly on math/big.
package base62

import (
	"math/big"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// PublicKeyLen is the length in bytes of the keys this package is
// primarily used to render (Ed25519 public keys).
const PublicKeyLen = 32

// EncodedPublicKeyLen is the rendered length of a base62-encoded
// 32-byte key: ceil(32*8 / log2(62)).
const EncodedPublicKeyLen = 43

var base = big.NewInt(int64(len(alphabet)))

// Encode renders data as base62 text. The output is left-padded with
// the zero digit so that fixed-size inputs always produce a fixed-size
// string, mirroring the base58 convention of preserving leading zero
// bytes.
func Encode(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	n := new(big.Int).SetBytes(data)
	if n.Sign() == 0 {
		return strings.Repeat(string(alphabet[0]), minEncodedLen(len(data)))
	}

	var out []byte
	mod := new(big.Int)
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		out = append(out, alphabet[mod.Int64()])
	}
	// out was built least-significant digit first.
	reverse(out)

	if pad := minEncodedLen(len(data)) - len(out); pad > 0 {
		out = append([]byte(strings.Repeat(string(alphabet[0]), pad)), out...)
	}
	return string(out)
}

// Decode parses base62 text back into bytes. The returned slice is
// left-padded with zero bytes up to byteLen, the expected decoded
// length, so that leading zero bytes lost by big.Int.SetBytes are
// restored.
func Decode(text string, byteLen int) ([]byte, error) {
	n := new(big.Int)
	for i := 0; i < len(text); i++ {
		idx := strings.IndexByte(alphabet, text[i])
		if idx < 0 {
			return nil, status.Errorf(codes.InvalidArgument, "base62: non-alphabet character %q", text[i])
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(idx)))
	}

	raw := n.Bytes()
	if len(raw) > byteLen {
		return nil, status.Errorf(codes.InvalidArgument, "base62: decoded value longer than %d bytes", byteLen)
	}
	out := make([]byte, byteLen)
	copy(out[byteLen-len(raw):], raw)
	return out, nil
}

// minEncodedLen returns the smallest number of base62 digits that can
// represent any value of the given byte length, i.e. ceil(n*8 /
// log2(62)). It's computed exactly (no floating point) by finding the
// smallest d such that 62^d >= 256^n.
func minEncodedLen(byteLen int) int {
	if byteLen == PublicKeyLen {
		// Common case, spelled out in spec §3/§6.
		return EncodedPublicKeyLen
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(byteLen*8))
	d := 0
	acc := big.NewInt(1)
	for acc.Cmp(limit) < 0 {
		acc.Mul(acc, base)
		d++
	}
	return d
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
