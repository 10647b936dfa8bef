package herror

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	require.Equal(t, 400, BadRequest.Status())
	require.Equal(t, 401, Unauthorized.Status())
	require.Equal(t, 404, NotFound.Status())
	require.Equal(t, 413, LimitExceeded.Status())
	require.Equal(t, 550, CommsError.Status())
	require.Equal(t, 408, Timeout.Status())
	require.Equal(t, 500, Internal.Status())
}

func TestDispositionPolicy(t *testing.T) {
	require.Equal(t, Abort, CommsError.Disposition())
	require.Equal(t, Abort, Internal.Disposition())
	require.Equal(t, Close, LimitExceeded.Disposition())
	require.Equal(t, Close, Timeout.Disposition())
	require.Equal(t, Continue, BadRequest.Disposition())
	require.Equal(t, Continue, NotFound.Disposition())
}

func TestStatusOverride(t *testing.T) {
	err := NewStatus(LimitExceeded, 414, "uri too long")
	require.Equal(t, 414, err.Status())
	require.Equal(t, LimitExceeded, err.Kind)
}

func TestWrapPreservesKindAndUnwraps(t *testing.T) {
	root := New(Internal, "disk full")
	wrapped := Wrap(BadRequest, root, "rejecting request")
	got, ok := As(wrapped)
	require.True(t, ok)
	require.Equal(t, BadRequest, got.Kind)
	require.ErrorIs(t, wrapped, root)
}
