// Package lock provides mutual exclusion keyed by parking-spot ID.  The
// orchestrator wraps its reserve/persist and free/persist sequences in a
// spot lock so two concurrent operations on the same spot cannot
// interleave and double-book it.  When a Redis client is available the
// lock is distributed (SET NX with a random owner value and a
// compare-and-delete release), so multiple orchestrator replicas
// serialize too; otherwise an in-process keyed mutex is used.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when it still holds our owner
// value, so an expired lock reacquired by someone else is never released
// by us.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

const (
	defaultTTL   = 30 * time.Second
	retryBackoff = 50 * time.Millisecond
)

// SpotLock hands out per-spot locks.  The zero value is not usable; use New.
type SpotLock struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string

	mu    sync.Mutex
	local map[uint64]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// New returns a SpotLock.  rdb may be nil, in which case locking is
// process-local only.
func New(rdb *redis.Client) *SpotLock {
	return &SpotLock{
		rdb:    rdb,
		ttl:    defaultTTL,
		prefix: "spotlock",
		local:  make(map[uint64]*entry),
	}
}

// Acquire blocks until the lock for spotID is held or ctx is done.  It
// returns a release function that must be called exactly once; calling it
// again is a no-op.
func (l *SpotLock) Acquire(ctx context.Context, spotID uint64) (func(), error) {
	if l.rdb != nil {
		return l.acquireRedis(ctx, spotID)
	}
	return l.acquireLocal(ctx, spotID)
}

func (l *SpotLock) acquireLocal(ctx context.Context, spotID uint64) (func(), error) {
	l.mu.Lock()
	e, ok := l.local[spotID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.local[spotID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.put(spotID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-e.sem
			l.put(spotID, e)
		})
	}
	return release, nil
}

// put drops one reference to a local entry and removes it from the map
// when nobody is waiting, so the map does not grow with every spot ever
// seen.
func (l *SpotLock) put(spotID uint64, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.local, spotID)
	}
	l.mu.Unlock()
}

func (l *SpotLock) acquireRedis(ctx context.Context, spotID uint64) (func(), error) {
	key := fmt.Sprintf("%s:%d", l.prefix, spotID)
	owner := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("spot lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Release with a fresh context: the request context may
			// already be cancelled by the time we unlock.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.rdb, []string{key}, owner).Err()
		})
	}
	return release, nil
}
