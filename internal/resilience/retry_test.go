package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/address-correction-service/internal/domain"
)

func TestWithRetrySucceedsOnSecondAttempt(t *testing.T) {
	attempts := 0
	v, err := WithRetry(func() (any, error) {
		attempts++
		if attempts == 1 {
			return nil, domain.NewUpstreamError("geocode", domain.KindTimeout, 0, errors.New("timeout"))
		}
		return "ok", nil
	}, domain.IsTimeout, 2)

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryStopsAtMaxAttempts(t *testing.T) {
	attempts := 0
	_, err := WithRetry(func() (any, error) {
		attempts++
		return nil, domain.NewUpstreamError("geocode", domain.KindTimeout, 0, errors.New("timeout"))
	}, domain.IsTimeout, 2)

	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryDoesNotRetryNonRetryable(t *testing.T) {
	attempts := 0
	_, err := WithRetry(func() (any, error) {
		attempts++
		return nil, domain.NewUpstreamError("postal", domain.KindClientRejection, 400, errors.New("bad city"))
	}, domain.IsTimeout, 3)

	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "client rejections must not be retried")
}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, domain.KindTimeout},
		{"connection reset", syscall.ECONNRESET, domain.KindTimeout},
		{"connection refused", syscall.ECONNREFUSED, domain.KindTimeout},
		{"unexpected eof", io.ErrUnexpectedEOF, domain.KindTimeout},
		{"wrapped reset", fmt.Errorf("do request: %w", syscall.ECONNRESET), domain.KindTimeout},
		{"plain error", errors.New("something else"), domain.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyTransportError("geocode", tt.err)
			assert.Equal(t, tt.want, domain.KindOf(classified))

			var ue *domain.UpstreamError
			require.ErrorAs(t, classified, &ue)
			assert.Equal(t, "geocode", ue.Upstream)
		})
	}
}

func TestClassifyTransportErrorPassesTaggedThrough(t *testing.T) {
	tagged := domain.NewUpstreamError("postal", domain.KindClientRejection, 400, errors.New("rejected"))
	assert.Same(t, error(tagged), ClassifyTransportError("postal", tagged))

	assert.NoError(t, ClassifyTransportError("postal", nil))
}
