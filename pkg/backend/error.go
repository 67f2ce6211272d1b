package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ClientError wraps provider errors with status metadata.
type ClientError struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *ClientError) Error() string {
	if e == nil {
		return "backend error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("backend error (status=%d)", e.Status)
}

func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether an error reflects a temporary condition
// rather than a permanent one.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		if clientErr.Temporary {
			return true
		}
		if clientErr.Status == 429 || (clientErr.Status >= 500 && clientErr.Status <= 599) {
			return true
		}
	}
	return false
}
