package socks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkTimeout bounds the handshake performed by Check.
const checkTimeout = 2 * time.Second

// SOCKS5 protocol constants used by Check.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
	socks5CmdConnect   = 0x01
	socks5AddrDomain   = 0x03
)

// Dialer makes TCP connections through a SOCKS5 proxy.
type Dialer struct {
	address string
	dialer  proxy.Dialer
	timeout time.Duration
}

// NewDialer returns a Dialer for the proxy at address ("host:port").
// timeout bounds connection setup through the proxy.
//
// Design decision: the constructor does not contact the proxy. Call Check
// to find out whether it is reachable before starting a crawl.
func NewDialer(address string, timeout time.Duration) (*Dialer, error) {
	if !ValidAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	d, err := proxy.SOCKS5("tcp", address, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Dialer{address: address, dialer: d, timeout: timeout}, nil
}

// ValidAddress reports whether address is a host:port pair with a port
// between 1 and 65535.
func ValidAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// Address returns the proxy address.
func (d *Dialer) Address() string {
	return d.address
}

// DialContext connects to address through the proxy.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := d.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := d.dialer.Dial(network, address)
		ch <- dialResult{conn, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Transport returns an http.Transport whose connections go through the proxy.
// The environment's HTTP proxy settings are ignored.
func (d *Dialer) Transport() *http.Transport {
	return &http.Transport{
		DialContext:           d.DialContext,
		TLSHandshakeTimeout:   d.timeout,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Check performs a SOCKS5 handshake with the proxy and asks it to connect
// to target ("host:port"). Any well-formed CONNECT reply counts as
// success, including a refusal: the proxy has shown it speaks SOCKS5.
func (d *Dialer) Check(ctx context.Context, target string) Status {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	host, portStr, err := net.SplitHostPort(target)
	if err != nil || len(host) > 255 {
		return StatusWrongType
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return StatusWrongType
	}

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", d.address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return StatusTimeout
		}
		return StatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkTimeout)); err != nil {
		return StatusCannotConnect
	}

	// Greeting: version, one method, no authentication.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return StatusCannotConnect
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readStatus(err)
	}
	if reply[0] != socks5Version || reply[1] == socks5AuthNoAccept || reply[1] != socks5AuthNone {
		return StatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrDomain, byte(len(host))}
	req = append(req, host...)
	req = append(req, byte(port>>8), byte(port&0xFF))
	if _, err := conn.Write(req); err != nil {
		return StatusCannotConnect
	}

	// version, reply code, reserved, address type
	head := make([]byte, 4)
	if _, err := io.ReadFull(conn, head); err != nil {
		return readStatus(err)
	}
	if head[0] != socks5Version {
		return StatusWrongType
	}
	return StatusOK
}

func readStatus(err error) Status {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusTimeout
	}
	return StatusWrongType
}

// TargetAddress returns the host:port a request to u connects to,
// filling in the default port for the scheme.
func TargetAddress(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
