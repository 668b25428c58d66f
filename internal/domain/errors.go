package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var (
	ErrMissingToken     = errors.New("missing session token")
	ErrDecode           = errors.New("malformed session token")
	ErrValidation       = errors.New("invalid session token")
	ErrExpired          = errors.New("session token expired")
	ErrConnectionFailed = errors.New("connection failed")
)

// ConnectionError reports a failed connection attempt together with the
// endpoint that was being dialed.
type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", ErrConnectionFailed, addr)
	}
	return fmt.Sprintf("%v: %s: %v", ErrConnectionFailed, addr, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnectionFailed}
	}
	return []error{ErrConnectionFailed, e.Err}
}

// ErrTerminated reports that the remote side ended the session.
var ErrTerminated = errors.New("session terminated")
