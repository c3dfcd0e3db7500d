package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Error is a protocol-level rejection from the query service (bad query,
// insufficient credits, unknown id). Protocol errors indicate a request
// that will not succeed on retry and must never trigger reconnection.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("query service returned status %d", e.StatusCode)
}

// ErrIdleTimeout is returned by Stream.Next when the server sent nothing
// for the configured idle window. It is a transient condition.
var ErrIdleTimeout = errors.New("stream idle timeout")

// IsTransient reports whether the error represents transient network
// conditions (timeout, reset, truncated stream) that a consumer may
// recover from by reopening the channel. Protocol errors are never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return false
	}

	if errors.Is(err, ErrIdleTimeout) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
