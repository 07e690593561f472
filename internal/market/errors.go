package market

import (
	"errors"
	"fmt"
)

// Kind is a stable error category callers can branch on.
type Kind string

const (
	KindMissingCredential Kind = "missing_credential"
	KindInvalidCurrency   Kind = "invalid_currency"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindRateLimited       Kind = "rate_limited"
	KindTransport         Kind = "transport_failure"
	KindBadResponse       Kind = "bad_response"
)

// Error is a tagged fetch failure. Status carries the upstream HTTP status
// when one was received, zero otherwise.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Detail != "":
		return fmt.Sprintf("market: %s (http %d): %s", e.Kind, e.Status, e.Detail)
	case e.Status != 0:
		return fmt.Sprintf("market: %s (http %d)", e.Kind, e.Status)
	case e.Detail != "":
		return fmt.Sprintf("market: %s: %s", e.Kind, e.Detail)
	default:
		return fmt.Sprintf("market: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Is allows errors.Is against a bare &Error{Kind: ...} probe.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the error kind, or empty when err is not a market error.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch status {
	case 401:
		return KindUnauthorized
	case 403:
		return KindForbidden
	case 429:
		return KindRateLimited
	default:
		return KindTransport
	}
}
