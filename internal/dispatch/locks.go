// README: Bounded per-trip lock set; serializes multi-step trip mutations.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/shreyasss-12/Thank-You-Beyonc/internal/types"
)

// DefaultLockWait bounds how long an operation waits for a trip's lock
// before giving up with ErrBusy.
const DefaultLockWait = 2 * time.Second

// tripLock is a one-slot channel semaphore. Holding the token means holding
// the lock. refs counts holders plus waiters so the owning map entry can be
// dropped once nobody references it.
type tripLock struct {
	ch   chan struct{}
	refs int
}

// lockSet hands out per-trip locks, created lazily and discarded when idle.
// Acquisition is bounded: a waiter gives up after maxWait or when its
// context ends, so a wedged operation degrades into Busy errors instead of
// an unbounded queue.
type lockSet struct {
	mu      sync.Mutex
	locks   map[types.ID]*tripLock
	maxWait time.Duration
}

func newLockSet(maxWait time.Duration) *lockSet {
	if maxWait <= 0 {
		maxWait = DefaultLockWait
	}
	return &lockSet{locks: make(map[types.ID]*tripLock), maxWait: maxWait}
}

// acquire takes the trip's lock and returns its release func. The release
// func must be called exactly once. Waiting is capped by maxWait and the
// context; both paths fail with ErrBusy.
func (ls *lockSet) acquire(ctx context.Context, tripID types.ID) (func(), error) {
	ls.mu.Lock()
	l, ok := ls.locks[tripID]
	if !ok {
		l = &tripLock{ch: make(chan struct{}, 1)}
		ls.locks[tripID] = l
	}
	l.refs++
	ls.mu.Unlock()

	timer := time.NewTimer(ls.maxWait)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			ls.unref(tripID, l)
		}, nil
	case <-ctx.Done():
		ls.unref(tripID, l)
		return nil, ErrBusy
	case <-timer.C:
		ls.unref(tripID, l)
		return nil, ErrBusy
	}
}

func (ls *lockSet) unref(tripID types.ID, l *tripLock) {
	ls.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(ls.locks, tripID)
	}
	ls.mu.Unlock()
}
