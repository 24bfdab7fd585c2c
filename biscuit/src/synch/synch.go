// Package synch implements the blocking synchronization primitives built on
// spl/spinlock/wchan: semaphores, locks (two interchangeable
// implementations), and Mesa-semantics condition variables. It is a direct
// port of kern/thread/synch.c from the original source this kernel is
// modeled on, adapted to the explicit-thread-context style used throughout
// this rewrite (see tinfo's package doc).
package synch

import (
	"caller"
	"defs"
	"spinlock"
	"tinfo"
	"wchan"
)

////////////////////////////////////////////////////////////
//
// Semaphore

/// Sem_t is a counting semaphore. P blocks while the count is zero; V
/// increments the count and wakes one waiter.
type Sem_t struct {
	name  string
	count uint
	wc    *wchan.Wchan_t
	lock  spinlock.Spinlock_t
}

/// NewSem creates a semaphore with the given initial count.
func NewSem(name string, initial uint) *Sem_t {
	return &Sem_t{name: name, count: initial, wc: wchan.Create(name)}
}

/// Destroy asserts the semaphore has no parked waiters.
func (s *Sem_t) Destroy() {
	s.wc.Destroy()
}

/// P decrements the semaphore's count, blocking while it is zero. It must
/// not be called from an interrupt handler.
func (s *Sem_t) P(t *tinfo.Tnote_t) {
	if t.InInterrupt {
		panic("synch: P in interrupt handler")
	}
	s.lock.Acquire(t)
	for s.count == 0 {
		// no FIFO ordering: a thread may "get" the semaphore on its
		// first try even if other threads are already waiting.
		s.wc.Sleep(t, &s.lock)
	}
	if s.count == 0 {
		panic("synch: P woke with count == 0")
	}
	s.count--
	s.lock.Release(t)
}

/// V increments the semaphore's count and wakes one waiter.
func (s *Sem_t) V(t *tinfo.Tnote_t) {
	s.lock.Acquire(t)
	s.count++
	s.wc.Wakeone(&s.lock)
	s.lock.Release(t)
}

////////////////////////////////////////////////////////////
//
// Lock

/// Lock_i is satisfied by both lock implementations so callers (synch.CV,
/// proc) do not need to care which variant backs a given lock.
type Lock_i interface {
	Acquire(t *tinfo.Tnote_t)
	Release(t *tinfo.Tnote_t)
	DoIHold(t *tinfo.Tnote_t) bool
	Destroy()
}

var lockBugs caller.Distinct_caller_t

func init() {
	lockBugs.Enabled = true
}

// wchanLock_t is the wait-channel-based lock variant (OPT_LOCK_WCHAN_SPINLOCK
// in the original): an inner spinlock protects the owner field directly,
// and contenders park on an inner wait channel.
type wchanLock_t struct {
	name  string
	owner defs.Tid_t
	held  bool
	sl    spinlock.Spinlock_t
	wc    *wchan.Wchan_t
}

/// NewWchanLock creates a lock backed by an inner spinlock + wait channel.
func NewWchanLock(name string) Lock_i {
	return &wchanLock_t{name: name, wc: wchan.Create(name)}
}

func (l *wchanLock_t) Acquire(t *tinfo.Tnote_t) {
	if t.InInterrupt {
		panic("synch: lock_acquire in interrupt handler")
	}
	l.sl.Acquire(t)
	if l.held && l.owner == t.Tid {
		l.sl.Release(t)
		panic("synch: lock_acquire: already held by this thread")
	}
	for l.held {
		l.wc.Sleep(t, &l.sl)
	}
	l.held = true
	l.owner = t.Tid
	l.sl.Release(t)
}

func (l *wchanLock_t) Release(t *tinfo.Tnote_t) {
	l.sl.Acquire(t)
	if !l.held || l.owner != t.Tid {
		l.sl.Release(t)
		if _, trace := lockBugs.Distinct(); trace != "" {
			panic("synch: lock_release: not the owner\n" + trace)
		}
		panic("synch: lock_release: not the owner")
	}
	l.held = false
	l.wc.Wakeone(&l.sl)
	l.sl.Release(t)
}

func (l *wchanLock_t) DoIHold(t *tinfo.Tnote_t) bool {
	l.sl.Acquire(t)
	own := l.held && l.owner == t.Tid
	l.sl.Release(t)
	return own
}

func (l *wchanLock_t) Destroy() {
	if l.held {
		panic("synch: lock_destroy on an acquired lock")
	}
	l.wc.Destroy()
}

// semLock_t is the semaphore-based lock variant (OPT_LOCK_WITH_SEMAPHORES in
// the original): a binary semaphore guards the critical section, and a
// separate inner spinlock protects the owner field.
type semLock_t struct {
	name  string
	owner defs.Tid_t
	held  bool
	sl    spinlock.Spinlock_t
	sem   *Sem_t
}

/// NewSemLock creates a lock backed by a binary semaphore.
func NewSemLock(name string) Lock_i {
	return &semLock_t{name: name, sem: NewSem(name, 1)}
}

func (l *semLock_t) Acquire(t *tinfo.Tnote_t) {
	if t.InInterrupt {
		panic("synch: lock_acquire in interrupt handler")
	}
	if l.DoIHold(t) {
		panic("synch: lock_acquire: already held by this thread")
	}
	l.sem.P(t)
	l.sl.Acquire(t)
	l.held = true
	l.owner = t.Tid
	l.sl.Release(t)
}

func (l *semLock_t) Release(t *tinfo.Tnote_t) {
	l.sl.Acquire(t)
	if !l.held || l.owner != t.Tid {
		l.sl.Release(t)
		panic("synch: lock_release: not the owner")
	}
	l.held = false
	l.sl.Release(t)
	l.sem.V(t)
}

func (l *semLock_t) DoIHold(t *tinfo.Tnote_t) bool {
	l.sl.Acquire(t)
	own := l.held && l.owner == t.Tid
	l.sl.Release(t)
	return own
}

func (l *semLock_t) Destroy() {
	if l.held {
		panic("synch: lock_destroy on an acquired lock")
	}
	l.sem.Destroy()
}

////////////////////////////////////////////////////////////
//
// Condition variable (Mesa semantics)

/// CV_t is a Mesa-semantics condition variable: cv_signal/cv_broadcast do
/// not transfer the lock to a waiter, so callers must re-test their
/// predicate in a loop around Wait.
type CV_t struct {
	name string
	sl   spinlock.Spinlock_t
	wc   *wchan.Wchan_t
}

/// NewCV creates a named condition variable.
func NewCV(name string) *CV_t {
	return &CV_t{name: name, wc: wchan.Create(name)}
}

/// Destroy asserts no thread is parked on the CV.
func (cv *CV_t) Destroy() {
	cv.wc.Destroy()
}

/// Wait requires the caller to hold lk. It releases lk, sleeps until
/// signaled, and reacquires lk before returning. There is no guarantee a
/// signaled waiter runs before a new acquirer of lk, so callers must
/// re-check their predicate.
func (cv *CV_t) Wait(t *tinfo.Tnote_t, lk Lock_i) {
	if !lk.DoIHold(t) {
		panic("synch: cv_wait without holding the companion lock")
	}
	cv.sl.Acquire(t)
	lk.Release(t)
	cv.wc.Sleep(t, &cv.sl)
	cv.sl.Release(t)
	lk.Acquire(t)
}

/// Signal requires the caller to hold lk. It wakes one waiter.
func (cv *CV_t) Signal(t *tinfo.Tnote_t, lk Lock_i) {
	if !lk.DoIHold(t) {
		panic("synch: cv_signal without holding the companion lock")
	}
	cv.sl.Acquire(t)
	cv.wc.Wakeone(&cv.sl)
	cv.sl.Release(t)
}

/// Broadcast requires the caller to hold lk. It wakes every waiter.
func (cv *CV_t) Broadcast(t *tinfo.Tnote_t, lk Lock_i) {
	if !lk.DoIHold(t) {
		panic("synch: cv_broadcast without holding the companion lock")
	}
	cv.sl.Acquire(t)
	cv.wc.Wakeall(&cv.sl)
	cv.sl.Release(t)
}
