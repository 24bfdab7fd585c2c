// Package spl implements the interrupt-priority-level primitive used to
// bracket TLB updates (see kern/arch/mips/vm/smartvm.c's splhigh/splx in the
// original source this kernel is modeled on).
//
// A real IPL raises the current CPU's interrupt mask in hardware. This
// rewrite has no hardware interrupts to mask, so Cpu_t models "this CPU's"
// IPL as a simple recursion-free gate: High blocks until no other thread on
// this simulated CPU is frobbing the TLB, and Restore releases it. The
// bracket shape (save/raise, then restore) is kept exactly so callers in
// package vm read the same as the original splhigh()/splx(spl) pairing.
package spl

import "sync"

/// Cpu_t represents one simulated CPU's interrupt-priority state. Each CPU
/// has exactly one Cpu_t; TLB updates on that CPU are serialized through it.
type Cpu_t struct {
	mu   sync.Mutex
	held bool
}

/// High raises the IPL, blocking until any in-progress TLB update on this
/// CPU completes, and returns the previous IPL to pass to Restore.
func (c *Cpu_t) High() bool {
	c.mu.Lock()
	prev := c.held
	c.held = true
	return prev
}

/// Restore lowers the IPL back to the level returned by the paired High
/// call.
func (c *Cpu_t) Restore(prev bool) {
	c.held = prev
	c.mu.Unlock()
}
