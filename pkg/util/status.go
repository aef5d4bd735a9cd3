// Package util provides small helpers shared across the engine's
// packages. StatusWrap and friends complete the util.StatusWrap
// family referenced by the teacher's own blobstore and grpc packages;
// they let every component attach caller-facing context to an error
// without losing the gRPC status code the error already carries.
package util

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusWrap prepends a message to err, preserving its status code if
// it has one (codes.Unknown otherwise).
func StatusWrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return status.Errorf(status.Code(err), "%s: %s", message, status.Convert(err).Message())
}

// StatusWrapf is StatusWrap with a formatted message.
func StatusWrapf(err error, format string, args ...interface{}) error {
	return StatusWrap(err, fmt.Sprintf(format, args...))
}

// StatusWrapWithCode wraps err, replacing its status code with code.
func StatusWrapWithCode(err error, code codes.Code, message string) error {
	if err == nil {
		return nil
	}
	return status.Errorf(code, "%s: %s", message, status.Convert(err).Message())
}
