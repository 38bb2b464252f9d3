package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupCollapsesConcurrentCalls(t *testing.T) {
	g := NewGroup(time.Minute, 100*time.Millisecond, time.Minute)
	defer g.Close()

	var calls atomic.Int32
	var wg sync.WaitGroup
	results := make([]any, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := g.Do("shared", func() (any, error) {
				calls.Add(1)
				time.Sleep(50 * time.Millisecond)
				return "result", nil
			})
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "all callers should share one execution")
	for _, v := range results {
		assert.Equal(t, "result", v)
	}
}

func TestGroupDistinctKeysRunIndependently(t *testing.T) {
	g := NewGroup(time.Minute, 100*time.Millisecond, time.Minute)
	defer g.Close()

	var calls atomic.Int32
	op := func() (any, error) {
		calls.Add(1)
		return nil, nil
	}

	_, _ = g.Do("alpha", op)
	_, _ = g.Do("beta", op)

	assert.Equal(t, int32(2), calls.Load())
}

func TestGroupPropagatesErrorToJoiners(t *testing.T) {
	g := NewGroup(time.Minute, 100*time.Millisecond, time.Minute)
	defer g.Close()

	boom := errors.New("upstream exploded")
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	var joinErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = g.Do("failing", func() (any, error) {
			close(started)
			<-release
			return nil, boom
		})
	}()

	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, joinErr = g.Do("failing", func() (any, error) {
			t.Error("joiner must not re-execute the op")
			return nil, nil
		})
	}()

	time.Sleep(20 * time.Millisecond) // let the joiner attach
	close(release)
	wg.Wait()

	assert.ErrorIs(t, joinErr, boom)
}

func TestGroupGraceWindowServesSettledResult(t *testing.T) {
	clock := clockwork.NewFakeClock()
	g := NewGroupWithClock(time.Minute, 10*time.Second, time.Hour, clock)
	defer g.Close()

	var calls int
	op := func() (any, error) {
		calls++
		return calls, nil
	}

	v, err := g.Do("key", op)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Within the grace window the settled entry still answers.
	v, err = g.Do("key", op)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, calls)

	// After the grace delay fires, the entry is gone and the op re-runs.
	clock.Advance(11 * time.Second)
	v, err = g.Do("key", op)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestGroupTypedDo(t *testing.T) {
	g := NewGroup(time.Minute, 100*time.Millisecond, time.Minute)
	defer g.Close()

	v, err := Do(g, "typed", func() (string, error) { return "hello", nil })
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, err = Do(g, "typed-err", func() (string, error) { return "", errors.New("nope") })
	assert.Error(t, err)
}

func TestGroupClearAndStats(t *testing.T) {
	clock := clockwork.NewFakeClock()
	g := NewGroupWithClock(time.Minute, 10*time.Second, time.Hour, clock)
	defer g.Close()

	_, _ = g.Do("a", func() (any, error) { return nil, nil })
	_, _ = g.Do("b", func() (any, error) { return nil, nil })

	stats := g.GetStats()
	assert.Equal(t, 2, stats.PendingRequests)
	assert.Equal(t, time.Minute, stats.TTL)

	g.Clear()
	assert.Equal(t, 0, g.GetStats().PendingRequests)
}
