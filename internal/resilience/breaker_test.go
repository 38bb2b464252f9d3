package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/address-correction-service/internal/domain"
)

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "postal",
		FailureThreshold: 3,
		ResetTimeout:     100 * time.Millisecond,
		MonitoringPeriod: time.Minute,
		SuccessThreshold: 2,
	}
}

func failingOp() (any, error) { return nil, errors.New("upstream down") }

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	b := NewBreaker(testBreakerConfig())

	for i := 0; i < 3; i++ {
		_, err := b.Execute(failingOp)
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.GetStats().State)

	// While open the op must not be invoked.
	invoked := false
	_, err := b.Execute(func() (any, error) {
		invoked = true
		return nil, nil
	})
	require.Error(t, err)
	assert.False(t, invoked)
	assert.True(t, domain.IsUnavailable(err), "rejection must be tagged unavailable")

	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "postal", ue.Upstream)
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := NewBreaker(testBreakerConfig())

	for i := 0; i < 2; i++ {
		_, _ = b.Execute(failingOp)
	}
	assert.Equal(t, "closed", b.GetStats().State)

	v, err := b.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := NewBreaker(testBreakerConfig())

	for i := 0; i < 3; i++ {
		_, _ = b.Execute(failingOp)
	}
	require.Equal(t, "open", b.GetStats().State)

	time.Sleep(150 * time.Millisecond)

	// First probe succeeds; circuit is half-open until the success threshold.
	_, err := b.Execute(func() (any, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, "half-open", b.GetStats().State)

	_, err = b.Execute(func() (any, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", b.GetStats().State)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(testBreakerConfig())

	for i := 0; i < 3; i++ {
		_, _ = b.Execute(failingOp)
	}
	time.Sleep(150 * time.Millisecond)

	_, err := b.Execute(failingOp)
	require.Error(t, err)
	assert.Equal(t, "open", b.GetStats().State)
}

func TestBreakerCumulativeCountersAndReset(t *testing.T) {
	b := NewBreaker(testBreakerConfig())

	_, _ = b.Execute(func() (any, error) { return nil, nil })
	_, _ = b.Execute(failingOp)
	_, _ = b.Execute(failingOp)

	stats := b.GetStats()
	assert.Equal(t, uint64(3), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.TotalSuccesses)
	assert.Equal(t, uint64(2), stats.TotalFailures)

	b.Reset()

	stats = b.GetStats()
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, uint64(0), stats.TotalRequests)
	assert.Equal(t, uint64(0), stats.TotalFailures)
	assert.Equal(t, uint64(0), stats.TotalSuccesses)

	// A reset breaker accepts traffic again immediately.
	_, err := b.Execute(func() (any, error) { return nil, nil })
	assert.NoError(t, err)
}
