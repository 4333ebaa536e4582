package facttransport_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/factline/factrt"
	"github.com/factline/factrt/facttransport"
)

func TestWrapErrorReturnsNilForNilCause(t *testing.T) {
	assert.NoError(t, facttransport.WrapError("publish", nil))
}

func TestWrapErrorWrapsIntoTransportError(t *testing.T) {
	cause := errors.New("connection reset")
	err := facttransport.WrapError("publish", cause)

	var te factrt.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "publish", te.Op)
	assert.Equal(t, cause, te.Cause)
}

func TestCodeExtractsGrpcStatusFromCause(t *testing.T) {
	cause := status.Error(codes.Unavailable, "store unreachable")
	err := facttransport.WrapError("subscribe", cause)

	assert.Equal(t, codes.Unavailable, facttransport.Code(err))
}

func TestCodeDefaultsToUnknownForNonGrpcCause(t *testing.T) {
	err := facttransport.WrapError("subscribe", errors.New("boom"))
	assert.Equal(t, codes.Unknown, facttransport.Code(err))
}

func TestCodeDefaultsToUnknownForNonTransportError(t *testing.T) {
	assert.Equal(t, codes.Unknown, facttransport.Code(errors.New("not a transport error")))
}
