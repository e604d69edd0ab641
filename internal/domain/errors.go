package domain

import (
	"fmt"
	"time"
)

// ConnectError reports a failure to establish a connection to one
// endpoint within the retry budget. It is isolated to the items routed to
// that endpoint, never fatal to the whole run.
type ConnectError struct {
	Endpoint Endpoint
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s failed after %d attempts: %v", e.Endpoint.Addr(), e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// RPCError reports a transport or protocol fault, or a remote-side fault,
// during a single call.
type RPCError struct {
	Endpoint Endpoint
	Err      error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc to %s failed: %v", e.Endpoint.Addr(), e.Err)
}

func (e *RPCError) Unwrap() error { return e.Err }

// ComputeError reports a failure inside a local calculation.
type ComputeError struct {
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("local computation failed: %v", e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// EncodingError reports a malformed AtomicConfiguration.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "encoding: " + e.Reason
}

// TimeoutError reports that a caller-configured deadline elapsed before
// the call completed.
type TimeoutError struct {
	Endpoint Endpoint
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call to %s exceeded %v", e.Endpoint.Addr(), e.Timeout)
}
