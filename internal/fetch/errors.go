package fetch

import "fmt"

// StatusError reports a non-success HTTP status. It is never retried;
// only transport-level failures are.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// TransportError wraps a connection-level failure (timeout, reset,
// refused connection). These are retried with backoff.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
