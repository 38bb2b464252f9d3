package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/address-correction-service/internal/domain"
)

// BreakerConfig tunes a per-upstream circuit breaker.
type BreakerConfig struct {
	Name             string        // upstream name, used in errors and stats
	FailureThreshold uint32        // failures within MonitoringPeriod that open the circuit
	ResetTimeout     time.Duration // open → half-open probe delay
	MonitoringPeriod time.Duration // failure-counting window while closed
	SuccessThreshold uint32        // half-open successes required to close
}

// Breaker wraps a sony/gobreaker circuit breaker with cumulative counters
// and a tagged "upstream unavailable" error so rejections are
// distinguishable from ordinary upstream failures. One instance is scoped
// per upstream so a failing postal API cannot starve geocoding or vice versa.
type Breaker struct {
	cfg   BreakerConfig
	clock clockwork.Clock

	mu              sync.Mutex
	cb              *gobreaker.CircuitBreaker[any]
	lastStateChange time.Time

	totalRequests  atomic.Uint64
	totalFailures  atomic.Uint64
	totalSuccesses atomic.Uint64
}

// BreakerStats is the side-effect-free introspection surface of a Breaker.
// The window counters reset with state transitions; the cumulative totals
// persist until an explicit Reset.
type BreakerStats struct {
	State           string    `json:"state"`
	Failures        uint32    `json:"failures"`
	Successes       uint32    `json:"successes"`
	TotalRequests   uint64    `json:"totalRequests"`
	TotalFailures   uint64    `json:"totalFailures"`
	TotalSuccesses  uint64    `json:"totalSuccesses"`
	LastStateChange time.Time `json:"lastStateChange"`
}

// NewBreaker creates a circuit breaker for one upstream dependency.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return NewBreakerWithClock(cfg, clockwork.NewRealClock())
}

// NewBreakerWithClock creates a Breaker with an injected time source for
// stats timestamps. The breaker core itself uses real time internally.
func NewBreakerWithClock(cfg BreakerConfig, clock clockwork.Clock) *Breaker {
	b := &Breaker{cfg: cfg, clock: clock, lastStateChange: clock.Now()}
	b.cb = b.newCircuitBreaker()
	return b
}

func (b *Breaker) newCircuitBreaker() *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        b.cfg.Name,
		MaxRequests: b.cfg.SuccessThreshold,
		Interval:    b.cfg.MonitoringPeriod,
		Timeout:     b.cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= b.cfg.FailureThreshold
		},
		OnStateChange: func(_ string, _, _ gobreaker.State) {
			b.mu.Lock()
			b.lastStateChange = b.clock.Now()
			b.mu.Unlock()
		},
	})
}

// Execute runs op under the breaker. While the circuit is open the op is not
// invoked and a KindUnavailable upstream error is returned.
func (b *Breaker) Execute(op func() (any, error)) (any, error) {
	b.totalRequests.Add(1)

	b.mu.Lock()
	cb := b.cb
	b.mu.Unlock()

	v, err := cb.Execute(op)
	switch {
	case err == nil:
		b.totalSuccesses.Add(1)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, domain.NewUpstreamError(b.cfg.Name, domain.KindUnavailable, 0, err)
	default:
		b.totalFailures.Add(1)
	}
	return v, err
}

// GetStats reports breaker state and counters.
func (b *Breaker) GetStats() BreakerStats {
	b.mu.Lock()
	cb := b.cb
	last := b.lastStateChange
	b.mu.Unlock()

	counts := cb.Counts()
	return BreakerStats{
		State:           cb.State().String(),
		Failures:        counts.TotalFailures,
		Successes:       counts.TotalSuccesses,
		TotalRequests:   b.totalRequests.Load(),
		TotalFailures:   b.totalFailures.Load(),
		TotalSuccesses:  b.totalSuccesses.Load(),
		LastStateChange: last,
	}
}

// Reset returns the breaker to a pristine closed state and zeroes the
// cumulative counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.cb = b.newCircuitBreaker()
	b.lastStateChange = b.clock.Now()
	b.mu.Unlock()
	b.totalRequests.Store(0)
	b.totalFailures.Store(0)
	b.totalSuccesses.Store(0)
}
