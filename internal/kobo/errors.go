package kobo

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport matches every fetch failure that came from the network or a
// non-2xx response. Use errors.As with *TransportError for details.
var ErrTransport = errors.New("kobo transport failure")

// TransportError describes one failed page request.
type TransportError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("kobo: GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("kobo: GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Retryable reports whether re-running the whole fetch may succeed:
// connection failures, throttling and server errors are, client errors
// such as a bad token are not.
func (e *TransportError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable transport failure.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable()
}
