// Package proc implements the process lifecycle: fork, exit, waitpid and
// getpid, built on synch's lock/CV pair for parent/child rendezvous. It
// is modeled on kern/syscall/proc_syscalls.c's sys_fork/sys_exit/
// sys_waitpid/sys_getpid in the original source this kernel is based on,
// with the OPT_WAIT_PID-gated "wait capable" path taken unconditionally
// (spec.md scopes this kernel to the wait-capable build, per §4.8's
// deferred address-space teardown).
package proc

import (
	"sync"

	"accnt"
	"defs"
	"fd"
	"limits"
	"mem"
	"synch"
	"tinfo"
	"vm"
)

/// Process_t is a live or exiting process: its address space, its
/// open-file table, its parent's PID, and the exit rendezvous state
/// {exit_code, exit_cv, exit_cv_lock, has_exited} from §3.
type Process_t struct {
	Pid       defs.Pid_t
	Name      string
	As        *vm.AddressSpace_t
	ParentPid defs.Pid_t
	Openfiles *fd.Proctable_t
	Accnt     accnt.Accnt_t

	exitLock  synch.Lock_i
	exitCV    *synch.CV_t
	hasExited bool
	exitCode  int

	// teardownMu guards the last-out-destroys race between exit and
	// waitpid; reaped is set once a waitpid has consumed the exit code.
	teardownMu   sync.Mutex
	exitSideDone bool
	reaped       bool
	destroyed    bool
}

func newProcess(pid defs.Pid_t, name string, parent defs.Pid_t, as *vm.AddressSpace_t, of *fd.Proctable_t) *Process_t {
	return &Process_t{
		Pid:       pid,
		Name:      name,
		As:        as,
		ParentPid: parent,
		Openfiles: of,
		exitLock:  synch.NewWchanLock(name + ".exit"),
		exitCV:    synch.NewCV(name + ".exit"),
	}
}

/// RamHandles bundles the allocator operations proc needs from mem without
/// importing mem.Physmem_t concretely, so the package can be tested
/// against a fake allocator.
type RamHandles struct {
	Ram      mem.Ram_i
	Alloc    func(npages int) uintptr
	Free     func(addr uintptr, paddrOf func(uintptr) mem.Pa_t)
	PaddrOf  func(uintptr) mem.Pa_t
	KvaddrOf func(mem.Pa_t) uintptr
}

/// Table_t is the kernel's process table: a dense PID namespace plus a
/// map from PID to Process_t, serialized by mu. This is the "PID
/// namespace and current-process pointer" global the design notes (§9)
/// say should be grouped into explicit kernel context rather than left as
/// package-level globals — Table_t is that context for process lifecycle.
type Table_t struct {
	mu      sync.Mutex
	procs   map[defs.Pid_t]*Process_t
	nextPid defs.Pid_t
	sys     *fd.Systable_t
}

/// NewTable constructs an empty process table bound to the given
/// system-wide open-file table.
func NewTable(sys *fd.Systable_t) *Table_t {
	return &Table_t{procs: make(map[defs.Pid_t]*Process_t), nextPid: 1, sys: sys}
}

/// BootProcess installs the first process (PID 1, no parent) directly,
/// bypassing fork — used once at kernel start.
func (pt *Table_t) BootProcess(name string, as *vm.AddressSpace_t) *Process_t {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pid := pt.nextPid
	pt.nextPid++
	p := newProcess(pid, name, 0, as, fd.NewProctable())
	pt.procs[pid] = p
	return p
}

/// Get looks up a process by PID.
func (pt *Table_t) Get(pid defs.Pid_t) (*Process_t, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	p, ok := pt.procs[pid]
	return p, ok
}

/// Fork duplicates parent: deep-copies its address space (fresh
/// contiguous frames per region, contents copied) via vm.CopyAddressSpace,
/// shares its open files the way Unix fork does, and allocates a fresh PID
/// from the dense table. Mirrors proc_fork + sys_fork steps 1 and 4 from
/// §4.8; step 2-3 (trapframe duplication, kernel-thread spawn into
/// enter_child_process) are the arch-specific trap/context-switch layer
/// this kernel treats as an external collaborator (§1).
func (pt *Table_t) Fork(t *tinfo.Tnote_t, parent *Process_t, rh RamHandles) (*Process_t, defs.Err_t) {
	if !limits.Syslimit.Sysprocs.Take() {
		return nil, -defs.ENOMEM
	}

	newAs, err := vm.CopyAddressSpace(parent.As, rh.Ram, rh.Alloc, rh.Free, rh.PaddrOf)
	if err != 0 {
		limits.Syslimit.Sysprocs.Give()
		return nil, err
	}

	pt.mu.Lock()
	pid := pt.nextPid
	pt.nextPid++
	child := newProcess(pid, parent.Name, parent.Pid, newAs, parent.Openfiles.Copy(t, pt.sys))
	pt.procs[pid] = child
	pt.mu.Unlock()

	return child, 0
}

/// Exit detaches the calling thread from p's process (conceptually —
/// thread/process separation is the trap layer's job here), records the
/// exit code, marks has_exited, and broadcasts the exit CV. Mirrors
/// sys_exit steps 1-3: the address space is NOT destroyed here; ownership
/// passes to whichever of {this exit, a waitpid} is last out, per §4.8. rh
/// supplies the allocator handles needed if this call turns out to be the
/// second (and therefore teardown-performing) side of the rendezvous.
func (pt *Table_t) Exit(t *tinfo.Tnote_t, p *Process_t, code int, rh RamHandles) {
	p.exitLock.Acquire(t)
	p.exitCode = code & 0xFF
	p.hasExited = true
	p.exitCV.Broadcast(t, p.exitLock)
	p.exitLock.Release(t)

	pt.sideDone(p, true, rh)
}

/// Waitpid looks up pid, blocks until it has exited (or returns
/// immediately if it already has), and returns its PID and exit code.
/// Mirrors proc_wait: acquire exit_cv_lock; while !has_exited, cv_wait;
/// capture exit_code; release. Returns -1 if pid is unknown.
func (pt *Table_t) Waitpid(t *tinfo.Tnote_t, pid defs.Pid_t, rh RamHandles) (defs.Pid_t, int, defs.Err_t) {
	p, ok := pt.Get(pid)
	if !ok {
		return -1, 0, -defs.EINVAL
	}

	p.exitLock.Acquire(t)
	for !p.hasExited {
		p.exitCV.Wait(t, p.exitLock)
	}
	code := p.exitCode
	p.exitLock.Release(t)

	pt.sideDone(p, false, rh)

	return pid, code, 0
}

// sideDone marks the exit side or the waitpid side of the teardown
// rendezvous as complete and, if both sides are now done, destroys the
// address space and removes the process record using whichever side's rh
// reached here second — "the last to leave destroys" from §3's Process
// lifecycle note.
func (pt *Table_t) sideDone(p *Process_t, exitSide bool, rh RamHandles) {
	p.teardownMu.Lock()
	defer p.teardownMu.Unlock()
	if p.destroyed {
		return
	}
	if exitSide {
		p.exitSideDone = true
	} else {
		p.reaped = true
	}
	if !p.exitSideDone || !p.reaped {
		return
	}
	if rh.Free != nil {
		p.As.Destroy(rh.Free, rh.KvaddrOf, rh.PaddrOf)
	}
	p.destroyed = true
	pt.mu.Lock()
	delete(pt.procs, p.Pid)
	pt.mu.Unlock()
	limits.Syslimit.Sysprocs.Give()
}

/// Getpid returns p's own PID.
func Getpid(p *Process_t) defs.Pid_t {
	return p.Pid
}
