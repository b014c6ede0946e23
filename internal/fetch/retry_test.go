package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetryTransportErrors(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	err := &TransportError{URL: "http://example.com", Err: errors.New("connection reset")}

	require.True(t, p.ShouldRetry(err, 1))
	require.True(t, p.ShouldRetry(err, 4))
	require.False(t, p.ShouldRetry(err, 5), "attempt budget is 5 total")
}

func TestShouldNotRetryStatusErrors(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	err := &StatusError{URL: "http://example.com", StatusCode: 503}
	require.False(t, p.ShouldRetry(err, 1), "HTTP status errors propagate immediately")
}

func TestShouldNotRetryContextCancellation(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 1))
	require.False(t, p.ShouldRetry(nil, 1))
}

func TestBackoffDoublesUpToCeiling(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, w := range want {
		require.Equal(t, w, p.Backoff(i+1), "attempt %d", i+1)
	}
}
