package capability

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies capability and stage failures.
type Kind string

const (
	// KindUnavailable marks an external API failure or missing data.
	KindUnavailable Kind = "capability_unavailable"
	// KindInvalidInput marks a malformed request, such as a bad ticker symbol.
	KindInvalidInput Kind = "invalid_input"
	// KindContractViolation marks stage output that does not satisfy its
	// declared output contract.
	KindContractViolation Kind = "contract_violation"
)

// Error is the typed failure surfaced to pipeline callers.
type Error struct {
	Kind       Kind
	Capability string // which capability failed, when applicable
	Status     int    // HTTP status from the backend, when applicable
	Temporary  bool   // explicitly retryable regardless of status
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "capability error"
	}
	prefix := string(e.Kind)
	if e.Capability != "" {
		prefix = fmt.Sprintf("%s (%s)", e.Kind, e.Capability)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Unavailable wraps an external failure as a CapabilityUnavailable error.
func Unavailable(capName string, err error) *Error {
	return &Error{Kind: KindUnavailable, Capability: capName, Err: err}
}

// InvalidInput marks a malformed request before any external call is made.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Err: fmt.Errorf(format, args...)}
}

// ContractViolation marks stage output that failed its contract check.
func ContractViolation(format string, args ...any) *Error {
	return &Error{Kind: KindContractViolation, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from an error chain. Errors that carry
// no capability classification report KindUnavailable, since from the
// pipeline's perspective any unclassified external failure means the
// capability could not serve.
func KindOf(err error) Kind {
	var capErr *Error
	if errors.As(err, &capErr) {
		return capErr.Kind
	}
	return KindUnavailable
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind Kind) bool {
	var capErr *Error
	if errors.As(err, &capErr) {
		return capErr.Kind == kind
	}
	return false
}

// IsTransient reports whether a capability error is safe to retry.
// Invalid input and contract violations never are; rate limits, server
// errors, and timeouts are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var capErr *Error
	if errors.As(err, &capErr) {
		if capErr.Kind == KindInvalidInput || capErr.Kind == KindContractViolation {
			return false
		}
		if capErr.Temporary {
			return true
		}
		if capErr.Status == 429 || (capErr.Status >= 500 && capErr.Status <= 599) {
			return true
		}
	}
	return false
}
