// Package signing wraps crypto/ed25519, the engine's external
// signature collaborator (spec §6). crypto/ed25519.PrivateKey is
// already laid out as seed(32)‖public(32), exactly the "Signing" key
// convention spec §4.2 asks the Identity Store to hand out, so no
// adaptation layer is needed beyond narrowing the stdlib API to the
// three functions the engine actually calls.
package signing

import (
	"crypto/ed25519"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SecretSize and PublicSize match spec §3's 32-byte key fields.
const (
	SecretSize = ed25519.SeedSize // 32
	PublicSize = ed25519.PublicKeySize
	SigSize    = ed25519.SignatureSize // 64
)

// DerivePublic computes the public key for a 32-byte secret seed.
func DerivePublic(secret []byte) ([]byte, error) {
	if len(secret) != SecretSize {
		return nil, status.Errorf(codes.InvalidArgument, "signing: secret must be %d bytes, got %d", SecretSize, len(secret))
	}
	priv := ed25519.NewKeyFromSeed(secret)
	return priv[SecretSize:], nil
}

// Sign signs msg using signingKey, the 64-byte secret‖public
// concatenation handed out by the Identity Store's Signing key kind.
func Sign(msg, signingKey []byte) ([]byte, error) {
	if len(signingKey) != SecretSize+PublicSize {
		return nil, status.Errorf(codes.InvalidArgument, "signing: signing key must be %d bytes, got %d", SecretSize+PublicSize, len(signingKey))
	}
	return ed25519.Sign(ed25519.PrivateKey(signingKey), msg), nil
}

// Verify checks sig over msg against the 32-byte Ed25519 public key.
func Verify(sig, msg, public []byte) bool {
	if len(public) != PublicSize || len(sig) != SigSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(public), msg, sig)
}
