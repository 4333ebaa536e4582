package facttransport

import (
	"github.com/factline/factrt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// WrapError turns a raw transport-client failure into a
// factrt.TransportError, preserving a grpc status code when the underlying
// client already returns one (the common case when Client is backed by a
// grpc connection to the fact store) so callers can branch on
// Code(err) the same way controller/api/destination/get.go classifies
// lookup failures into status codes. Wire transport itself stays out of
// scope; this only standardizes how its failures surface.
func WrapError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return factrt.TransportError{Op: op, Cause: cause}
}

// Code extracts the grpc status code carried by a TransportError's cause,
// defaulting to codes.Unknown when the cause did not originate from a grpc
// call (e.g. an in-memory fake transport used in tests).
func Code(err error) codes.Code {
	te, ok := err.(factrt.TransportError)
	if !ok {
		return codes.Unknown
	}
	return status.Code(te.Cause)
}
