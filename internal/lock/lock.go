package lock

import (
	"context"
	"sync/atomic"
)

// Locker is a non-blocking mutual-exclusion guard. TryLock either acquires
// the lock and returns a release func, or reports ok=false immediately.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Local is an in-process guard backed by an atomic flag.
type Local struct {
	held atomic.Bool
}

var _ Locker = (*Local)(nil)

func NewLocal() *Local { return &Local{} }

func (l *Local) TryLock(ctx context.Context) (func(), bool, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.held.Store(false)
		}
	}, true, nil
}

// Held reports whether the lock is currently taken.
func (l *Local) Held() bool { return l.held.Load() }
