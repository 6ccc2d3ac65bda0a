package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport matches every network, DNS or non-2xx failure.
	ErrTransport = errors.New("transport failure")
	// ErrDecode matches every malformed or unexpected response body.
	ErrDecode = errors.New("decode failure")
)

// TransportError is returned when a request could not be completed or
// the service answered with a non-2xx status.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// DecodeError is returned when a 2xx body is not the expected JSON shape.
type DecodeError struct {
	Op  string
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode: %v", e.Op, e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
