package multitek

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrTimeout          = errors.New("multitek: request timed out")
	ErrConnectionFailed = errors.New("multitek: connection failed")
	ErrAuthFailed       = errors.New("multitek: authentication failed")
	ErrInvalidResponse  = errors.New("multitek: invalid response")
)

// RequestFailedError is returned for any non-200 answer other than 401.
type RequestFailedError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *RequestFailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("multitek: %s %s failed with status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("multitek: %s %s failed with status %d", e.Method, e.Path, e.Status)
}

// IsRequestFailed reports whether err carries a RequestFailedError and returns
// its status code.
func IsRequestFailed(err error) (int, bool) {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.Status, true
	}
	return 0, false
}

func transportError(method, path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s: %w", ErrTimeout, method, path, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s %s: %w", ErrTimeout, method, path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrConnectionFailed, method, path, err)
}
