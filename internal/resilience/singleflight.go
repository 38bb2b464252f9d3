// Package resilience holds the upstream-protection building blocks the
// correction pipeline composes around every outbound call: retry (innermost),
// circuit breaker, and single-flight deduplication (outermost).
package resilience

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Group collapses concurrent identical calls (by string key) into one
// underlying execution. All callers joining within the deduplication TTL
// observe the same result or the same error.
type Group struct {
	ttl           time.Duration
	grace         time.Duration
	sweepInterval time.Duration
	clock         clockwork.Clock

	mu    sync.Mutex
	calls map[uint64]*call

	done      chan struct{}
	closeOnce sync.Once
}

type call struct {
	wg      sync.WaitGroup
	val     any
	err     error
	started time.Time
}

// GroupStats is the introspection surface of a Group.
type GroupStats struct {
	PendingRequests int           `json:"pendingRequests"`
	TTL             time.Duration `json:"ttl"`
}

// NewGroup creates a deduplicator whose entries join in-flight calls for up
// to ttl, linger for grace after settlement to absorb near-simultaneous late
// joiners, and are defensively swept every sweepInterval.
func NewGroup(ttl, grace, sweepInterval time.Duration) *Group {
	return NewGroupWithClock(ttl, grace, sweepInterval, clockwork.NewRealClock())
}

// NewGroupWithClock creates a Group with an injected time source for tests.
func NewGroupWithClock(ttl, grace, sweepInterval time.Duration, clock clockwork.Clock) *Group {
	g := &Group{
		ttl:           ttl,
		grace:         grace,
		sweepInterval: sweepInterval,
		clock:         clock,
		calls:         make(map[uint64]*call),
		done:          make(chan struct{}),
	}
	go g.sweepLoop()
	return g
}

// Do executes op under the key, or joins an existing execution for the same
// key that started within the TTL. The op runs on the first caller's
// goroutine; joiners block until it settles.
func (g *Group) Do(key string, op func() (any, error)) (any, error) {
	h := hashKey(key)

	g.mu.Lock()
	if c, ok := g.calls[h]; ok && g.clock.Since(c.started) <= g.ttl {
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err
	}

	c := &call{started: g.clock.Now()}
	c.wg.Add(1)
	g.calls[h] = c
	g.mu.Unlock()

	c.val, c.err = op()
	c.wg.Done()

	// Removal is delayed by a grace period so an identical call arriving just
	// after settlement still joins this burst instead of re-firing upstream.
	g.clock.AfterFunc(g.grace, func() {
		g.mu.Lock()
		if g.calls[h] == c {
			delete(g.calls, h)
		}
		g.mu.Unlock()
	})

	return c.val, c.err
}

// Do executes op under the group with a typed result.
func Do[T any](g *Group, key string, op func() (T, error)) (T, error) {
	v, err := g.Do(key, func() (any, error) { return op() })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// GetStats returns the current pending-entry count and configured TTL.
func (g *Group) GetStats() GroupStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GroupStats{PendingRequests: len(g.calls), TTL: g.ttl}
}

// Clear drops all pending entries without settling them. Callers already
// blocked on a joined call are unaffected.
func (g *Group) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = make(map[uint64]*call)
}

// Close stops the background sweep. The group remains usable for Do calls.
func (g *Group) Close() {
	g.closeOnce.Do(func() { close(g.done) })
}

// sweepLoop purges entries whose age exceeds the TTL, as leak prevention for
// entries whose delayed removal never fired.
func (g *Group) sweepLoop() {
	ticker := g.clock.NewTicker(g.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.done:
			return
		case <-ticker.Chan():
			g.mu.Lock()
			for h, c := range g.calls {
				if g.clock.Since(c.started) > g.ttl {
					delete(g.calls, h)
				}
			}
			g.mu.Unlock()
		}
	}
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key)) //nolint:errcheck // fnv never fails
	return h.Sum64()
}
