// Package kernel wires the leaf components (mem, vm, synch, fd, proc,
// console) into the aggregate context the design notes (§9 of spec.md)
// prescribe: a single Kernel_t value created at boot, holding the
// bitmap PFA, the system-wide open-file table, the PID namespace, and a
// per-CPU TLB, with the thin open/close/read/write/fork/exit/waitpid/
// getpid syscall surface realized as methods on it. This is the
// "explicit kernel context" redesign the original source's package-level
// globals are replaced with.
package kernel

import (
	"defs"
	"fd"
	"mem"
	"proc"
	"tinfo"
	"ustr"
	"vm"

	"console"
)

/// Vnode stands for whatever handle a VfsBackend implementation returns
/// from Open; the kernel never inspects it.
type Vnode interface{}

/// VfsBackend is the external collaborator named in spec.md §1: VFS,
/// vnode operations and path resolution live entirely outside this
/// module. Production wiring of a real filesystem is out of scope; tests
/// exercise the syscall surface against an in-memory double.
type VfsBackend interface {
	Open(path ustr.Ustr, flags int) (Vnode, defs.Err_t)
	Close(v Vnode)
	Read(v Vnode, buf []uint8, offset int) (int, defs.Err_t)
	Write(v Vnode, buf []uint8, offset int) (int, defs.Err_t)
}

/// Config_t is the kernel's compile-time-ish sizing, passed to Boot rather
/// than parsed from flags or environment — matching the teacher's
/// compile-time-constant configuration idiom (limits.Syslimit).
type Config_t struct {
	FrameSize int
	StackPages int
}

/// DefaultConfig returns the standard sizing: 4096-byte frames, an
/// 18-page user stack.
func DefaultConfig() Config_t {
	return Config_t{FrameSize: mem.PGSIZE, StackPages: defs.USERSTACKPAGES}
}

/// Kernel_t is the aggregate kernel context: the physical frame
/// allocator, the system-wide open-file table, the process table, one
/// simulated CPU's TLB, the console device, and the external VFS
/// collaborator. All subsystem mutation is gated through typed operations
/// with the correct lock encapsulated inside, per §9.
type Kernel_t struct {
	Cfg     Config_t
	Pfa     *mem.Physmem_t
	Sys     *fd.Systable_t
	Procs   *proc.Table_t
	Console *console.Console_t
	Vfs     VfsBackend
	tlb     *vm.Tlb_t
	ram     mem.Ram_i
}

/// Boot constructs a Kernel_t: bootstraps the PFA over ram, creates empty
/// system-wide and process tables, and wires vfs as the external
/// collaborator for open/close/read/write on regular files.
func Boot(cfg Config_t, ram mem.Ram_i, vfs VfsBackend) *Kernel_t {
	pfa := mem.NewPhysmem(ram)
	pfa.Bootstrap()
	sys := fd.NewSystable()
	return &Kernel_t{
		Cfg:     cfg,
		Pfa:     pfa,
		Sys:     sys,
		Procs:   proc.NewTable(sys),
		Console: console.New(),
		Vfs:     vfs,
		tlb:     vm.NewTlb(),
		ram:     ram,
	}
}

// paddrOf/kvaddrOf/alloc/free adapt mem.Physmem_t's kernel-virtual-address
// API to the plain uintptr handles proc/vm deal in. In this in-process
// simulation (no real MMU), a kernel virtual address and its physical
// address are the same uintptr, since ram.KVAddr is already the identity
// modulo a direct-map base that ram itself defines.
func (k *Kernel_t) paddrOf(kva uintptr) mem.Pa_t {
	return mem.Pa_t(kva)
}

func (k *Kernel_t) kvaddrOf(pa mem.Pa_t) uintptr {
	return k.ram.KVAddr(pa)
}

func (k *Kernel_t) canSleep(t *tinfo.Tnote_t) func() bool {
	return func() bool { return t.CanSleep() }
}

func (k *Kernel_t) alloc(t *tinfo.Tnote_t) func(npages int) uintptr {
	return func(npages int) uintptr {
		return k.Pfa.AllocKpages(npages, k.canSleep(t))
	}
}

func (k *Kernel_t) free(addr uintptr, paddrOf func(uintptr) mem.Pa_t) {
	k.Pfa.FreeKpages(addr, paddrOf)
}

func (k *Kernel_t) ramHandles(t *tinfo.Tnote_t) proc.RamHandles {
	return proc.RamHandles{
		Ram:      k.ram,
		Alloc:    k.alloc(t),
		Free:     k.free,
		PaddrOf:  k.paddrOf,
		KvaddrOf: k.kvaddrOf,
	}
}

////////////////////////////////////////////////////////////
//
// VM fault handling (§4.4)

/// PageFault resolves a fault of the given kind at vaddr against p's
/// address space, installing a TLB entry on this simulated CPU.
func (k *Kernel_t) PageFault(p *proc.Process_t, kind defs.Faulttype, vaddr uintptr) defs.Err_t {
	var as *vm.AddressSpace_t
	if p != nil {
		as = p.As
	}
	return vm.VmFault(k.tlb, as, kind, vaddr)
}

////////////////////////////////////////////////////////////
//
// Process lifecycle syscalls (§4.8)

/// SysFork duplicates p into a new child process.
func (k *Kernel_t) SysFork(t *tinfo.Tnote_t, p *proc.Process_t) (defs.Pid_t, defs.Err_t) {
	child, err := k.Procs.Fork(t, p, k.ramHandles(t))
	if err != 0 {
		return 0, err
	}
	return child.Pid, 0
}

/// SysExit records p's exit code and broadcasts its exit CV.
func (k *Kernel_t) SysExit(t *tinfo.Tnote_t, p *proc.Process_t, code int) {
	k.Procs.Exit(t, p, code, k.ramHandles(t))
}

/// SysWaitpid blocks until pid has exited and returns its PID and exit
/// code, or -1 if pid is unknown.
func (k *Kernel_t) SysWaitpid(t *tinfo.Tnote_t, pid defs.Pid_t) (defs.Pid_t, int, defs.Err_t) {
	rpid, code, err := k.Procs.Waitpid(t, pid, k.ramHandles(t))
	if err != 0 {
		return -1, 0, err
	}
	return rpid, code, 0
}

/// SysGetpid returns p's own PID.
func (k *Kernel_t) SysGetpid(p *proc.Process_t) defs.Pid_t {
	return proc.Getpid(p)
}

////////////////////////////////////////////////////////////
//
// File syscalls (§4.9)

/// SysOpen calls VfsBackend.Open, allocates a system-wide open-file entry,
/// attaches it to p's per-process table, and returns the MIN_FD-shifted
/// descriptor.
func (k *Kernel_t) SysOpen(t *tinfo.Tnote_t, p *proc.Process_t, path ustr.Ustr, flags int) (int, defs.Err_t) {
	vn, err := k.Vfs.Open(path, flags)
	if err != 0 {
		return 0, err
	}
	sysIdx, err := k.Sys.Open(t, vn)
	if err != 0 {
		return 0, err
	}
	userFd, err := p.Openfiles.Attach(t, sysIdx)
	if err != 0 {
		k.Sys.Unref(t, sysIdx)
		return 0, err
	}
	return userFd, 0
}

/// SysClose detaches fd from p's table and, if the system entry's
/// refcount drops to zero, closes the vnode via VfsBackend.
func (k *Kernel_t) SysClose(t *tinfo.Tnote_t, p *proc.Process_t, userFd int) defs.Err_t {
	sysIdx, err := p.Openfiles.Detach(t, userFd)
	if err != 0 {
		return err
	}
	if k.Sys.Unref(t, sysIdx) {
		k.Vfs.Close(k.Sys.Get(sysIdx).Vnode)
	}
	return 0
}

// isConsoleFd reports whether fd is one of the three reserved
// stdin/stdout/stderr descriptors, which bypass the VFS entirely.
func isConsoleFd(userFd int) bool {
	return userFd == defs.STDIN_FILENO || userFd == defs.STDOUT_FILENO || userFd == defs.STDERR_FILENO
}

/// SysRead reads up to len(buf) bytes from fd into buf. Fd 0 reads one
/// console byte at a time (buf[0] only); regular files are read via a
/// kernel bounce buffer through VfsBackend.Read, advancing the OpenFile's
/// offset by the actual number of bytes transferred.
func (k *Kernel_t) SysRead(t *tinfo.Tnote_t, p *proc.Process_t, userFd int, buf []uint8) (int, defs.Err_t) {
	if isConsoleFd(userFd) {
		if userFd != defs.STDIN_FILENO || len(buf) == 0 {
			return 0, 0
		}
		buf[0] = k.Console.Getch(t)
		return 1, 0
	}

	sysIdx, err := p.Openfiles.Lookup(t, userFd)
	if err != 0 {
		return 0, err
	}
	of := k.Sys.Get(sysIdx)
	kbuf := make([]uint8, len(buf))
	n, err := k.Vfs.Read(of.Vnode, kbuf, of.Offset)
	if err != 0 {
		return 0, err
	}
	copy(buf, kbuf[:n])
	of.Offset += n
	return n, 0
}

/// SysWrite writes buf to fd. Fd 1/2 go to the console (validated as
/// UTF-8 by console.Write); regular files are written via a kernel bounce
/// buffer through VfsBackend.Write, advancing the OpenFile's offset by the
/// actual number of bytes transferred (the corrected semantics for Open
/// Question #4 — advance by the VfsBackend-reported count, not by
/// len(buf)).
func (k *Kernel_t) SysWrite(t *tinfo.Tnote_t, p *proc.Process_t, userFd int, buf []uint8) (int, defs.Err_t) {
	if isConsoleFd(userFd) {
		if userFd == defs.STDIN_FILENO {
			return 0, -defs.EBADF
		}
		return k.Console.Write(t, buf)
	}

	sysIdx, err := p.Openfiles.Lookup(t, userFd)
	if err != 0 {
		return 0, err
	}
	of := k.Sys.Get(sysIdx)
	kbuf := make([]uint8, len(buf))
	copy(kbuf, buf)
	n, err := k.Vfs.Write(of.Vnode, kbuf, of.Offset)
	if err != 0 {
		return 0, err
	}
	of.Offset += n
	return n, 0
}
