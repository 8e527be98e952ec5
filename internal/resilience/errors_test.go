package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

func TestIsConnectionFailure_ExplicitConnectionError(t *testing.T) {
	err := NewConnectionError("xtb", errors.New("login rejected"))
	if !IsConnectionFailure(err) {
		t.Error("expected ConnectionError to be a connection failure")
	}
}

func TestIsConnectionFailure_WrappedConnectionError(t *testing.T) {
	inner := NewConnectionError("yahoo", errors.New("401"))
	wrapped := eris.Wrap(inner, "extract: fetch chunk")
	if !IsConnectionFailure(wrapped) {
		t.Error("expected wrapped ConnectionError to be a connection failure")
	}
}

func TestIsConnectionFailure_NilError(t *testing.T) {
	if IsConnectionFailure(nil) {
		t.Error("nil error should not be a connection failure")
	}
}

func TestIsConnectionFailure_SymbolError(t *testing.T) {
	err := &SymbolError{Symbol: "XYZ.DE", Err: errors.New("no fundamentals data found")}
	if IsConnectionFailure(err) {
		t.Error("symbol error should not be a connection failure")
	}
	if err.Reason() != "no fundamentals data found" {
		t.Errorf("unexpected reason %q", err.Reason())
	}
}

func TestIsConnectionFailure_ConnectionRefused(t *testing.T) {
	err := fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)
	if !IsConnectionFailure(err) {
		t.Error("ECONNREFUSED should be a connection failure")
	}
}

func TestIsConnectionFailure_DNS(t *testing.T) {
	err := &net.DNSError{Err: "no such host", Name: "query2.finance.yahoo.com"}
	if !IsConnectionFailure(err) {
		t.Error("DNS error should be a connection failure")
	}
}

func TestIsConnectionFailure_Timeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsConnectionFailure(err) {
		t.Error("network timeout should be a connection failure")
	}
}

func TestIsConnectionFailure_StringPatterns(t *testing.T) {
	for _, msg := range []string{"read: connection reset by peer", "write: broken pipe", "net/http: TLS handshake timeout"} {
		if !IsConnectionFailure(errors.New(msg)) {
			t.Errorf("%q should be a connection failure", msg)
		}
	}
}

func TestSentinels(t *testing.T) {
	err := eris.Wrap(ErrEmptyStatement, "transform: balance")
	if !eris.Is(err, ErrEmptyStatement) {
		t.Error("expected wrapped ErrEmptyStatement to match")
	}
	if eris.Is(err, ErrSchemaMismatch) {
		t.Error("sentinels must be distinct")
	}
}

func TestIsAuthStatus(t *testing.T) {
	tests := map[int]bool{401: true, 403: true, 404: false, 429: false, 500: false}
	for code, want := range tests {
		if got := IsAuthStatus(code); got != want {
			t.Errorf("IsAuthStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestIsThrottleStatus(t *testing.T) {
	tests := map[int]bool{429: true, 401: false, 404: false, 503: false}
	for code, want := range tests {
		if got := IsThrottleStatus(code); got != want {
			t.Errorf("IsThrottleStatus(%d) = %v, want %v", code, got, want)
		}
	}
}
