// Package resilience classifies the failures the pipeline distinguishes:
// run-fatal connection failures, per-symbol extraction failures, empty
// batches and schema contract violations.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// ErrEmptyStatement reports that a whole batch carried no usable statement
// data. Callers skip the batch; it is not a hard failure.
var ErrEmptyStatement = eris.New("empty statement")

// ErrSchemaMismatch reports a row whose width differs from its table's
// declared columns. It indicates a programming error.
var ErrSchemaMismatch = eris.New("schema projection mismatch")

// ConnectionError marks a provider or storage as unreachable, or as having
// rejected credentials. It aborts the run.
type ConnectionError struct {
	Service string
	Err     error
}

func (e *ConnectionError) Error() string {
	return e.Service + ": connection failure: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError wraps err as a connection failure of service.
func NewConnectionError(service string, err error) *ConnectionError {
	return &ConnectionError{Service: service, Err: err}
}

// SymbolError is a provider failure scoped to one symbol. The run continues
// and the symbol is quarantined with Reason.
type SymbolError struct {
	Symbol string
	Err    error
}

func (e *SymbolError) Error() string {
	return e.Symbol + ": " + e.Err.Error()
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

// Reason returns the text recorded in the quarantine ledger.
func (e *SymbolError) Reason() string {
	return e.Err.Error()
}

// IsConnectionFailure returns true if the error (or any error in its chain)
// is a ConnectionError, or matches network-level failures: timeouts, refused
// or reset connections, DNS failures.
func IsConnectionFailure(err error) bool {
	if err == nil {
		return false
	}

	var ce *ConnectionError
	if errors.As(err, &ce) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsAuthStatus returns true for HTTP statuses that mean the credentials or
// session were rejected.
func IsAuthStatus(statusCode int) bool {
	switch statusCode {
	case 401, // Unauthorized
		403: // Forbidden
		return true
	default:
		return false
	}
}

// IsThrottleStatus returns true for HTTP statuses that mean the provider is
// refusing requests at the current rate.
func IsThrottleStatus(statusCode int) bool {
	return statusCode == 429 // Too Many Requests
}
