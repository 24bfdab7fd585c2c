// Package wchan implements the named thread-parking queue described by
// kern/thread/synch.c's wchan_sleep/wchan_wakeone/wchan_wakeall in the
// original source: a structure that sleeps the calling thread while
// atomically releasing a caller-supplied spinlock, and wakes threads under
// that same spinlock. There is no FIFO guarantee — a freshly runnable
// thread may lose a race to an arriving contender, matching the "Apparently
// according to some textbooks semaphores must for some reason have strict
// ordering. Too bad. :-)" stance of the original.
package wchan

import (
	"spinlock"
	"tinfo"
)

/// Wchan_t is a named parking queue. All mutation of waiters happens while
/// the caller holds the spinlock passed to Sleep/Wakeone/Wakeall — the
/// Wchan_t itself has no lock of its own, exactly like the original, where
/// the caller's spinlock doubles as the queue's lock.
type Wchan_t struct {
	name    string
	waiters []chan struct{}
}

/// Create allocates a named wait channel.
func Create(name string) *Wchan_t {
	return &Wchan_t{name: name}
}

/// Name returns the wait channel's name, useful for diagnostics.
func (wc *Wchan_t) Name() string {
	return wc.name
}

/// Sleep requires the caller to hold sl. It atomically enqueues the current
/// thread, releases sl, and blocks. On wake it reacquires sl before
/// returning. It panics if the thread still holds any spinlock once sl is
/// released.
func (wc *Wchan_t) Sleep(t *tinfo.Tnote_t, sl *spinlock.Spinlock_t) {
	if !sl.Held() {
		panic("wchan: sleep without holding the wchan's spinlock")
	}
	if t.InInterrupt {
		panic("wchan: cannot sleep in an interrupt handler")
	}
	ch := make(chan struct{})
	wc.waiters = append(wc.waiters, ch)
	sl.Release(t)
	if t.SpinlockCount != 0 {
		panic("wchan: sleep while holding a spinlock")
	}
	<-ch
	sl.Acquire(t)
}

/// Wakeone requires the caller to hold sl. It wakes at most one parked
/// thread, with no ordering guarantee among waiters.
func (wc *Wchan_t) Wakeone(sl *spinlock.Spinlock_t) {
	if !sl.Held() {
		panic("wchan: wakeone without holding the wchan's spinlock")
	}
	if len(wc.waiters) == 0 {
		return
	}
	ch := wc.waiters[0]
	wc.waiters = wc.waiters[1:]
	close(ch)
}

/// Wakeall requires the caller to hold sl. It wakes every parked thread.
func (wc *Wchan_t) Wakeall(sl *spinlock.Spinlock_t) {
	if !sl.Held() {
		panic("wchan: wakeall without holding the wchan's spinlock")
	}
	for _, ch := range wc.waiters {
		close(ch)
	}
	wc.waiters = nil
}

/// IsEmpty reports whether no thread is currently parked, useful for
/// destroy-time assertions (wchan_destroy panics if anyone is waiting).
func (wc *Wchan_t) IsEmpty() bool {
	return len(wc.waiters) == 0
}

/// Destroy asserts no thread is parked on wc. Mirrors wchan_destroy's
/// "wchan_cleanup will assert if anyone's waiting on it" contract.
func (wc *Wchan_t) Destroy() {
	if !wc.IsEmpty() {
		panic("wchan: destroy with waiters still parked")
	}
}
