package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// criticalSection detects overlapping holders of a lock.
type criticalSection struct {
	mu      sync.Mutex
	inside  int
	overlap bool
	entries int
}

func (c *criticalSection) enter() {
	c.mu.Lock()
	c.inside++
	c.entries++
	if c.inside > 1 {
		c.overlap = true
	}
	c.mu.Unlock()
}

func (c *criticalSection) leave() {
	c.mu.Lock()
	c.inside--
	c.mu.Unlock()
}

func TestAcquireSerializesSameSpot(t *testing.T) {
	l := New(nil)
	cs := &criticalSection{}

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), 1)
			if err != nil {
				t.Error(err)
				return
			}
			cs.enter()
			time.Sleep(time.Millisecond)
			cs.leave()
			release()
		}()
	}
	wg.Wait()

	assert.False(t, cs.overlap, "two goroutines held the same spot lock at once")
	assert.Equal(t, workers, cs.entries)
}

func TestAcquireDifferentSpotsDoNotBlock(t *testing.T) {
	l := New(nil)

	release1, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	defer release1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release2, err := l.Acquire(ctx, 2)
	require.NoError(t, err)
	release2()
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	l := New(nil)

	release, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	// The lock is usable again after the failed wait.
	release2, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	release2()
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := New(nil)

	release, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	release()
	release() // second call must be a no-op, not an unlock of someone else

	release2, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	release2()
}

func TestEntriesAreReclaimed(t *testing.T) {
	l := New(nil)

	for id := uint64(1); id <= 100; id++ {
		release, err := l.Acquire(context.Background(), id)
		require.NoError(t, err)
		release()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.local, "released entries should not accumulate")
}
