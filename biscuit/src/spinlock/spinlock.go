// Package spinlock implements non-blocking mutual exclusion across
// simulated CPUs, grounded on the spinlock contract described in
// kern/thread/synch.c's use of spinlock_acquire/spinlock_release in the
// original source, and on the test-and-set style spinlock used by the
// bitmap physical allocator reference implementation in the pack
// (goos-e's kernel/sync.Spinlock, acquired/released around bitmap
// mutation). Acquiring bumps the caller's held-spinlock count so that
// wchan.Sleep can assert the "never sleep while holding a spinlock" rule.
package spinlock

import (
	"sync/atomic"

	"tinfo"
)

/// Spinlock_t is a test-and-set lock. The zero value is unlocked.
type Spinlock_t struct {
	held int32
}

/// Acquire spins until the lock is taken, then records that t now holds a
/// spinlock.
func (l *Spinlock_t) Acquire(t *tinfo.Tnote_t) {
	for !atomic.CompareAndSwapInt32(&l.held, 0, 1) {
		// busy-wait: spinlocks are held only for short, non-blocking
		// critical sections (bitmap/metadata mutation), never across a
		// sleep.
	}
	atomic.AddInt32(&t.SpinlockCount, 1)
}

/// Release drops the lock and decrements the caller's held-spinlock count.
func (l *Spinlock_t) Release(t *tinfo.Tnote_t) {
	if !atomic.CompareAndSwapInt32(&l.held, 1, 0) {
		panic("spinlock: release of unheld lock")
	}
	if atomic.AddInt32(&t.SpinlockCount, -1) < 0 {
		panic("spinlock: count underflow")
	}
}

/// Held reports whether the lock is currently taken, for assertions.
func (l *Spinlock_t) Held() bool {
	return atomic.LoadInt32(&l.held) != 0
}
