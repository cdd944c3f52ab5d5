package chatsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestParticipantResolverCachesWithinTTL(t *testing.T) {
	ids := &fakeIdentity{}
	r := NewParticipantResolver(ids, time.Minute, nil)
	clock := &fakeClock{now: t0}
	r.now = clock.Now

	id, err := r.Resolve(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "p-u1", id)

	clock.Advance(59 * time.Second)
	_, err = r.Resolve(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, ids.calls.Load())

	clock.Advance(time.Second)
	_, err = r.Resolve(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, ids.calls.Load(), "entry older than ttl is refetched")
}

func TestParticipantResolverKeysByEvent(t *testing.T) {
	ids := &fakeIdentity{}
	r := NewParticipantResolver(ids, time.Minute, nil)

	a, err := r.Lookup(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	b, err := r.Lookup(context.Background(), "ev2", "u1")
	require.NoError(t, err)

	assert.Equal(t, "ev1", a.EventID)
	assert.Equal(t, "ev2", b.EventID)
	assert.EqualValues(t, 2, ids.calls.Load())
}

func TestParticipantResolverCoalescesConcurrentLookups(t *testing.T) {
	ids := &fakeIdentity{gate: make(chan struct{})}
	r := NewParticipantResolver(ids, time.Minute, nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.Resolve(context.Background(), "ev1", "u1")
			assert.NoError(t, err)
			results[i] = id
		}(i)
	}

	require.Eventually(t, func() bool { return ids.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(ids.gate)
	wg.Wait()

	assert.EqualValues(t, 1, ids.calls.Load())
	for _, id := range results {
		assert.Equal(t, "p-u1", id)
	}
}

func TestParticipantResolverCallerCancelDoesNotAbortSharedLookup(t *testing.T) {
	ids := &fakeIdentity{gate: make(chan struct{})}
	r := NewParticipantResolver(ids, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Lookup(ctx, "ev1", "u1")
		done <- err
	}()

	require.Eventually(t, func() bool { return ids.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	err := <-done
	assert.ErrorIs(t, err, ErrCancelled)
	assert.True(t, IsCancelled(err))

	close(ids.gate)
	require.Eventually(t, func() bool {
		_, ok := r.cached(cacheKey("ev1", "u1"))
		return ok
	}, time.Second, time.Millisecond)

	_, err = r.Lookup(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, ids.calls.Load())
}

func TestParticipantResolverErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	ids := &fakeIdentity{err: boom}
	r := NewParticipantResolver(ids, time.Minute, nil)

	_, err := r.Lookup(context.Background(), "ev1", "u1")
	assert.ErrorIs(t, err, boom)

	ids.setErr(nil)
	p, err := r.Lookup(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "p-u1", p.ID)
	assert.EqualValues(t, 2, ids.calls.Load())
}

func TestParticipantResolverInvalidate(t *testing.T) {
	ids := &fakeIdentity{}
	r := NewParticipantResolver(ids, time.Minute, nil)

	_, err := r.Lookup(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	r.Invalidate("ev1", "u1")
	_, err = r.Lookup(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, ids.calls.Load())
}

func TestParticipantResolverKnownKeepsStaleEntries(t *testing.T) {
	ids := &fakeIdentity{}
	r := NewParticipantResolver(ids, time.Minute, nil)
	clock := &fakeClock{now: t0}
	r.now = clock.Now

	_, _, ok := r.Known("ev1", "u1")
	assert.False(t, ok)

	_, err := r.Lookup(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	p, fresh, ok := r.Known("ev1", "u1")
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, "p-u1", p.ID)

	clock.Advance(2 * time.Minute)
	p, fresh, ok = r.Known("ev1", "u1")
	require.True(t, ok)
	assert.False(t, fresh)
	assert.Equal(t, "p-u1", p.ID)

	clock.Advance(-2 * time.Minute)
	r.Invalidate("ev1", "u1")
	_, fresh, ok = r.Known("ev1", "u1")
	assert.True(t, ok)
	assert.False(t, fresh, "invalidated entries are stale but still known")
	assert.EqualValues(t, 1, ids.calls.Load())
}
