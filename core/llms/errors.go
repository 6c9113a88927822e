package llms

import (
	"errors"
	"fmt"
)

// ErrStreamClosed is returned by send methods after the stream has been
// closed or has failed.
var ErrStreamClosed = errors.New("llm stream closed")

// StreamError wraps a terminal stream failure (disconnect, malformed event,
// rate limit) so callers can distinguish it from local errors and decide on
// reconnection.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("llm stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
