package kernel

import (
	"sync"
	"testing"

	"defs"
	"mem"
	"tinfo"
	"ustr"
	"vm"
)

func testAddressSpace() *vm.AddressSpace_t {
	return vm.NewAddressSpace(
		vm.Region_t{Vbase: 0x400000, Pbase: 0x1000, Npages: 2},
		vm.Region_t{Vbase: 0x402000, Pbase: 0x3000, Npages: 2},
		0x500000, 0x5000,
	)
}

type fakeRam struct {
	backing []uint8
	next    uintptr
}

func newFakeRam(nbytes int) *fakeRam {
	return &fakeRam{backing: make([]uint8, nbytes), next: uintptr(nbytes / 2)}
}

func (r *fakeRam) Size() uintptr      { return uintptr(len(r.backing)) }
func (r *fakeRam) FirstFree() uintptr { return uintptr(len(r.backing) / 4) }
func (r *fakeRam) StealMem(npages int) mem.Pa_t {
	a := r.next
	r.next += uintptr(npages * mem.PGSIZE)
	return mem.Pa_t(a)
}
func (r *fakeRam) KVAddr(p mem.Pa_t) uintptr { return uintptr(p) }
func (r *fakeRam) Dmap(p mem.Pa_t, n int) []uint8 {
	return r.backing[int(p) : int(p)+n]
}

// memVfs is an in-memory VfsBackend double: named byte-slice files, each
// path opened as its own Vnode handle. Good enough to drive the kernel's
// open/close/read/write surface end-to-end without a real filesystem.
type memVfs struct {
	mu    sync.Mutex
	files map[string][]uint8
}

type memVnode struct {
	path string
}

func newMemVfs() *memVfs {
	return &memVfs{files: make(map[string][]uint8)}
}

func (v *memVfs) Open(path ustr.Ustr, flags int) (Vnode, defs.Err_t) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p := string(path)
	if _, ok := v.files[p]; !ok {
		v.files[p] = nil
	}
	return &memVnode{path: p}, 0
}

func (v *memVfs) Close(vn Vnode) {}

func (v *memVfs) Read(vn Vnode, buf []uint8, offset int) (int, defs.Err_t) {
	v.mu.Lock()
	defer v.mu.Unlock()
	data := v.files[vn.(*memVnode).path]
	if offset >= len(data) {
		return 0, 0
	}
	n := copy(buf, data[offset:])
	return n, 0
}

func (v *memVfs) Write(vn Vnode, buf []uint8, offset int) (int, defs.Err_t) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p := vn.(*memVnode).path
	data := v.files[p]
	need := offset + len(buf)
	if need > len(data) {
		grown := make([]uint8, need)
		copy(grown, data)
		data = grown
	}
	copy(data[offset:], buf)
	v.files[p] = data
	return len(buf), 0
}

func newTestKernel() (*Kernel_t, *memVfs) {
	ram := newFakeRam(1 << 20)
	vfs := newMemVfs()
	k := Boot(DefaultConfig(), ram, vfs)
	return k, vfs
}

func TestOpenWriteReadClose(t *testing.T) {
	k, _ := newTestKernel()
	tn := tinfo.New(1)
	p := k.Procs.BootProcess("init", testAddressSpace())

	fd, err := k.SysOpen(tn, p, ustr.Ustr("/tmp/a"), 0)
	if err != 0 {
		t.Fatalf("SysOpen failed: %d", err)
	}
	if fd != defs.MIN_FD {
		t.Fatalf("expected first fd to be MIN_FD, got %d", fd)
	}

	n, err := k.SysWrite(tn, p, fd, []byte("hello"))
	if err != 0 || n != 5 {
		t.Fatalf("SysWrite = (%d, %d), want (5, 0)", n, err)
	}

	fd2, err := k.SysOpen(tn, p, ustr.Ustr("/tmp/a"), 0)
	if err != 0 {
		t.Fatalf("second SysOpen failed: %d", err)
	}
	buf := make([]byte, 5)
	n, err = k.SysRead(tn, p, fd2, buf)
	if err != 0 || n != 5 || string(buf) != "hello" {
		t.Fatalf("SysRead = (%q, %d, %d), want (\"hello\", 5, 0)", buf, n, err)
	}

	if err := k.SysClose(tn, p, fd); err != 0 {
		t.Fatalf("SysClose failed: %d", err)
	}
	if err := k.SysClose(tn, p, fd2); err != 0 {
		t.Fatalf("second SysClose failed: %d", err)
	}
}

func TestConsoleReadWrite(t *testing.T) {
	k, _ := newTestKernel()
	tn := tinfo.New(1)
	p := k.Procs.BootProcess("init", testAddressSpace())

	n, err := k.SysWrite(tn, p, defs.STDOUT_FILENO, []byte("hi"))
	if err != 0 || n != 2 {
		t.Fatalf("console SysWrite = (%d, %d), want (2, 0)", n, err)
	}
	out := k.Console.Drain(tn, 16)
	if string(out) != "hi" {
		t.Fatalf("console output = %q, want %q", out, "hi")
	}

	if _, err := k.SysWrite(tn, p, defs.STDIN_FILENO, []byte("x")); err != -defs.EBADF {
		t.Fatalf("expected EBADF writing to stdin, got %d", err)
	}
}

func TestSysReadOnBadFdIsEBADF(t *testing.T) {
	k, _ := newTestKernel()
	tn := tinfo.New(1)
	p := k.Procs.BootProcess("init", testAddressSpace())

	if _, err := k.SysRead(tn, p, defs.MIN_FD, make([]byte, 1)); err != -defs.EBADF {
		t.Fatalf("expected EBADF reading an unopened fd, got %d", err)
	}
}

func TestPageFaultOutsideRegionsIsEFAULT(t *testing.T) {
	k, _ := newTestKernel()
	p := k.Procs.BootProcess("init", testAddressSpace())

	if err := k.PageFault(p, defs.FaultRead, 0x900000); err != -defs.EFAULT {
		t.Fatalf("expected EFAULT for an out-of-region vaddr, got %d", err)
	}
}
