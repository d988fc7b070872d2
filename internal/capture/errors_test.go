package capture

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromError_TimeoutBySubstring(t *testing.T) {
	t.Parallel()

	details := FromError(errors.New("Timeout exceeded while navigating (30000ms)"))
	require.Equal(t, ErrorTimeout, details.Type)
	require.EqualValues(t, 30000, details.TimeoutMs)
}

func TestFromError_TimeoutByTypedDeadline(t *testing.T) {
	t.Parallel()

	details := FromError(fmt.Errorf("navigate: %w", context.DeadlineExceeded))
	require.Equal(t, ErrorTimeout, details.Type)
	require.Zero(t, details.TimeoutMs)
}

func TestFromError_Connection(t *testing.T) {
	t.Parallel()

	for _, msg := range []string{"browser disconnected", "target closed", "websocket: close sent, session closed"} {
		details := FromError(errors.New(msg))
		require.Equal(t, ErrorConnection, details.Type, msg)
		require.Equal(t, msg, details.Message)
	}
}

func TestFromError_Internal(t *testing.T) {
	t.Parallel()

	details := FromError(errors.New("something unexpected"))
	require.Equal(t, ErrorInternal, details.Type)
}

func TestHTTPError_FallbackTable(t *testing.T) {
	t.Parallel()

	details := HTTPError(503, "")
	require.Equal(t, ErrorHTTP, details.Type)
	require.Equal(t, 503, details.HTTPStatusCode)
	require.Equal(t, "Service Unavailable", details.HTTPStatusText)
	require.Equal(t, "HTTP 503 Service Unavailable", details.Message)
}

func TestHTTPError_TransportTextWins(t *testing.T) {
	t.Parallel()

	details := HTTPError(404, "Gone Fishing")
	require.Equal(t, "Gone Fishing", details.HTTPStatusText)
	require.Equal(t, "HTTP 404 Gone Fishing", details.Message)
}

func TestHTTPError_UnknownCode(t *testing.T) {
	t.Parallel()

	details := HTTPError(599, "")
	require.Empty(t, details.HTTPStatusText)
	require.Equal(t, "HTTP 599", details.Message)
}

func TestTimeoutError_RoundTripsThroughClassifier(t *testing.T) {
	t.Parallel()

	details := TimeoutError(10000, "png capture")
	require.Equal(t, "Timeout: png capture exceeded (10000ms)", details.Message)

	reparsed := FromError(errors.New(details.Message))
	require.Equal(t, ErrorTimeout, reparsed.Type)
	require.EqualValues(t, 10000, reparsed.TimeoutMs)
}
