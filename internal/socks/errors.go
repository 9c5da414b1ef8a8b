package socks

import "errors"

// Proxy errors.
var (
	// ErrNotSOCKS5 is returned when the proxy answers but not with SOCKS5.
	ErrNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrCannotConnect is returned when no TCP connection to the proxy can
	// be made, usually because nothing listens on the address.
	ErrCannotConnect = errors.New("cannot connect to SOCKS5 proxy")

	// ErrTimeout is returned when the proxy does not answer in time.
	ErrTimeout = errors.New("timeout connecting to SOCKS5 proxy")

	// ErrInvalidAddress is returned for a proxy address that is not host:port.
	ErrInvalidAddress = errors.New("invalid proxy address format: expected host:port")
)

// Status is the result of checking a proxy.
type Status int

const (
	// StatusOK means the proxy completed a SOCKS5 handshake.
	StatusOK Status = iota

	// StatusWrongType means the proxy answered but not as an
	// unauthenticated SOCKS5 proxy.
	StatusWrongType

	// StatusCannotConnect means the TCP connection failed.
	StatusCannotConnect

	// StatusTimeout means the proxy did not answer in time.
	StatusTimeout
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWrongType:
		return "wrong type (not SOCKS5)"
	case StatusCannotConnect:
		return "cannot connect"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the error for the status, or nil for StatusOK.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusWrongType:
		return ErrNotSOCKS5
	case StatusCannotConnect:
		return ErrCannotConnect
	case StatusTimeout:
		return ErrTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
