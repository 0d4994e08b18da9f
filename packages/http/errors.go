package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// TransportErrorKind says why no response was obtained.
type TransportErrorKind string

const (
	KindTimeout    TransportErrorKind = "timeout"
	KindDNS        TransportErrorKind = "dns"
	KindConnection TransportErrorKind = "connection"
	KindProtocol   TransportErrorKind = "protocol"
	KindInvalid    TransportErrorKind = "invalid_request"
)

// TransportError is returned when a request produced no usable response.
// Non-2xx statuses are responses, not transport errors.
type TransportError struct {
	Kind   TransportErrorKind
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request ran out of time.
func (e *TransportError) Timeout() bool {
	return e.Kind == KindTimeout
}

func newTransportError(req *Request, err error) *TransportError {
	return &TransportError{
		Kind:   classify(err),
		Method: req.Method,
		URL:    req.URL,
		Err:    err,
	}
}

func classify(err error) TransportErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindConnection
	}
	return KindProtocol
}
