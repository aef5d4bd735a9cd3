// Package bambooerr defines the stable error kinds of spec §7 as
// constructors over google.golang.org/grpc/status, so every component
// raises errors the same way and callers can dispatch on
// status.Code(err) without needing a bespoke error type hierarchy.
package bambooerr

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind tags a constructed error so callers that need the precise spec
// §7 kind (rather than just the coarser gRPC code) can test for it with
// Is. It is carried as a message prefix, matching the texture of
// the teacher's status.Errorf-based error reporting.
type Kind string

const (
	KindBadArgs               Kind = "BadArgs"
	KindBadBase62              Kind = "BadBase62"
	KindNoSuchIdentity         Kind = "NoSuchIdentity"
	KindUnknownIdentity        Kind = "UnknownIdentity"
	KindTruncated              Kind = "Truncated"
	KindBadBinary              Kind = "BadBinary"
	KindInvalidSig             Kind = "InvalidSig"
	KindInvalidPayloadHash     Kind = "InvalidPayloadHash"
	KindInvalidBacklink        Kind = "InvalidBacklink"
	KindInvalidLipmaa          Kind = "InvalidLipmaa"
	KindMissingBacklink        Kind = "MissingBacklink"
	KindMissingLipmaa          Kind = "MissingLipmaa"
	KindChainBroken            Kind = "ChainBroken"
	KindRefusedBlocked         Kind = "RefusedBlocked"
	KindBlockedLocalIdentity   Kind = "BlockedLocalIdentity"
	KindUnknownClumpID         Kind = "UnknownClumpId"
	KindBadRange               Kind = "BadRange"
	KindMissing                Kind = "Missing"
)

var codeOf = map[Kind]codes.Code{
	KindBadArgs:             codes.InvalidArgument,
	KindBadBase62:           codes.InvalidArgument,
	KindNoSuchIdentity:      codes.NotFound,
	KindUnknownIdentity:     codes.NotFound,
	KindTruncated:           codes.DataLoss,
	KindBadBinary:           codes.DataLoss,
	KindInvalidSig:          codes.FailedPrecondition,
	KindInvalidPayloadHash:  codes.FailedPrecondition,
	KindInvalidBacklink:     codes.FailedPrecondition,
	KindInvalidLipmaa:       codes.FailedPrecondition,
	KindMissingBacklink:     codes.FailedPrecondition,
	KindMissingLipmaa:       codes.FailedPrecondition,
	KindChainBroken:         codes.FailedPrecondition,
	KindRefusedBlocked:      codes.PermissionDenied,
	KindBlockedLocalIdentity: codes.PermissionDenied,
	KindUnknownClumpID:      codes.NotFound,
	KindBadRange:            codes.InvalidArgument,
	KindMissing:             codes.NotFound,
}

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	code, ok := codeOf[kind]
	if !ok {
		code = codes.Unknown
	}
	return status.Errorf(code, "%s: "+format, append([]interface{}{string(kind)}, args...)...)
}

// Is reports whether err was constructed with the given kind, even
// after util.StatusWrap has prepended caller context to its message:
// the "Kind: " tag survives anywhere in the message, not just at the
// front.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return strings.Contains(status.Convert(err).Message(), string(kind)+": ")
}
