package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/couchcryptid/address-correction-service/internal/domain"
)

// WithRetry invokes op up to maxAttempts times, retrying only when
// isRetryable reports the failure as transient. It is composed innermost,
// under the circuit breaker, so a request that succeeds on its retry is
// recorded as a single breaker success, and a request whose retry also fails
// is recorded as a single failure.
func WithRetry(op func() (any, error), isRetryable func(error) bool, maxAttempts int) (any, error) {
	var (
		v   any
		err error
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		v, err = op()
		if err == nil || !isRetryable(err) {
			return v, err
		}
	}
	return v, err
}

// ClassifyTransportError tags a raw transport failure so retry eligibility
// and the ZIP-only fallback can pattern-match on kind. Timeouts and
// connection aborts become KindTimeout (eligible for the single transparent
// retry); everything else untagged becomes KindUnknown. Errors that already
// carry a tag pass through unchanged.
func ClassifyTransportError(upstream string, err error) error {
	if err == nil {
		return nil
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, io.ErrUnexpectedEOF):
		return domain.NewUpstreamError(upstream, domain.KindTimeout, 0, err)
	}
	return domain.NewUpstreamError(upstream, domain.KindUnknown, 0, err)
}
