package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies upstream failures so retry eligibility, the ZIP-only
// postal fallback, and circuit breaker accounting can pattern-match on a tag
// instead of duck-typing response shapes.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindClientRejection
	KindTimeout
	KindUnavailable
	KindServerError
	KindNoResult
)

func (k ErrorKind) String() string {
	switch k {
	case KindClientRejection:
		return "client_rejection"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindServerError:
		return "server_error"
	case KindNoResult:
		return "no_result"
	default:
		return "unknown"
	}
}

// UpstreamError is a tagged failure from an external dependency.
type UpstreamError struct {
	Kind       ErrorKind
	Upstream   string // "postal" or "geocode"
	HTTPStatus int    // set for ClientRejection/ServerError
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s upstream %s: %v", e.Upstream, e.Kind, e.Err)
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s upstream %s: status %d", e.Upstream, e.Kind, e.HTTPStatus)
	}
	return fmt.Sprintf("%s upstream %s", e.Upstream, e.Kind)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstreamError builds a tagged upstream failure.
func NewUpstreamError(upstream string, kind ErrorKind, status int, err error) *UpstreamError {
	return &UpstreamError{Kind: kind, Upstream: upstream, HTTPStatus: status, Err: err}
}

// KindOf extracts the error kind, or KindUnknown for untagged errors.
func KindOf(err error) ErrorKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnknown
}

// IsClientRejection reports whether err is a 400-class upstream rejection.
func IsClientRejection(err error) bool { return KindOf(err) == KindClientRejection }

// IsTimeout reports whether err is a timeout or connection abort.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsUnavailable reports whether err means the upstream's circuit is open.
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }
