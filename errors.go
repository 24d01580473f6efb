package main

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed call to an external service.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindTimeout
	KindStatus    // non-2xx response
	KindMalformed // response could not be decoded
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	default:
		return "transport"
	}
}

// CallError is returned by the CRCON and RCON clients.
type CallError struct {
	Op     string
	Kind   ErrorKind
	Status int // HTTP status, only for KindStatus
	Err    error
}

func (e *CallError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// callError wraps a transport-level error, detecting timeouts.
func callError(op string, err error) *CallError {
	kind := KindTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &CallError{Op: op, Kind: kind, Err: err}
}

func malformedError(op string, err error) *CallError {
	return &CallError{Op: op, Kind: KindMalformed, Err: err}
}

func statusError(op string, status int, body string) *CallError {
	return &CallError{Op: op, Kind: KindStatus, Status: status, Err: errors.New(body)}
}

// errorKind reports the kind of err, or "other" for errors that are not CallErrors.
func errorKind(err error) string {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind.String()
	}
	return "other"
}
