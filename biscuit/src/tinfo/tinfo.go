// Package tinfo tracks the per-thread bookkeeping that the spinlock, wchan
// and synch layers need: whether the thread is running in an interrupt
// handler and how many spinlocks it currently holds.
//
// The original biscuit runtime stashed this in a g-local slot reachable via
// patched runtime hooks (runtime.Gptr/Setgptr), which only exist in
// biscuit's own fork of the Go runtime. This rewrite targets the stock
// toolchain, so curthread is never implicit: every call that needs it takes
// a *Tnote_t explicitly, per the "explicit kernel context" redesign (see
// DESIGN.md).
package tinfo

import "defs"

/// Tnote_t stores per-thread state consulted by spinlock/wchan/synch.
type Tnote_t struct {
	Tid defs.Tid_t

	// InInterrupt is true while this thread is running interrupt-handler
	// code, during which it must never block.
	InInterrupt bool

	// SpinlockCount is the number of spinlocks currently held by this
	// thread. wchan.Sleep asserts it is zero once the wait channel's own
	// spinlock has been released.
	SpinlockCount int32

	Alive bool
}

/// New creates a fresh thread note with the given id.
func New(tid defs.Tid_t) *Tnote_t {
	return &Tnote_t{Tid: tid, Alive: true}
}

/// CanSleep reports whether it is currently legal for this thread to block:
/// it must hold no spinlocks and not be running in an interrupt handler.
/// Mirrors dumbvm_can_sleep/KASSERT(curthread->t_in_interrupt == false) in
/// the original source.
func (t *Tnote_t) CanSleep() bool {
	return t.SpinlockCount == 0 && !t.InInterrupt
}
