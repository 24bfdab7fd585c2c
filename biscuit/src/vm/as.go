// Package vm implements the address-space description and the
// software TLB-refill fault handler that sit on top of mem's contiguous
// physical frame allocator. It replaces the original source's
// multi-level page table/copy-on-write machinery (vm/as.go, vm/userbuf.go
// in the teacher) with the three-region contiguous model this kernel is
// scoped to: COW, demand paging and multi-level page tables are explicit
// non-goals here, so AddressSpace_t keeps only what §4.4's fault contract
// needs.
package vm

import (
	"sync"

	"defs"
	"mem"
)

/// Region_t describes one contiguous virtual-to-physical mapping: a
/// virtual base, its physical backing, and its length in pages. All
/// fields are page-aligned.
type Region_t struct {
	Vbase  uintptr
	Pbase  mem.Pa_t
	Npages int
}

func (r Region_t) vtop() uintptr {
	return r.Vbase + uintptr(r.Npages*mem.PGSIZE)
}

func (r Region_t) contains(va uintptr) bool {
	return r.Npages > 0 && va >= r.Vbase && va < r.vtop()
}

func (r Region_t) translate(va uintptr) mem.Pa_t {
	return r.Pbase + mem.Pa_t(va-r.Vbase)
}

/// USERSTACKPAGES is the fixed size of every process's stack region.
const USERSTACKPAGES = defs.USERSTACKPAGES

/// AddressSpace_t is a process's virtual memory: one text/rodata region,
/// one data region, and a fixed-size stack region, each backed by its own
/// contiguous physical run. There are no page tables — translation is the
/// O(1) arithmetic in Region_t.translate.
type AddressSpace_t struct {
	mu sync.Mutex

	Text  Region_t
	Data  Region_t
	Stack Region_t
}

/// NewAddressSpace builds an address space from loader-supplied regions.
/// The stack region's length is always USERSTACKPAGES; stackVbase is
/// typically USERSTACK - USERSTACKPAGES*PGSIZE.
func NewAddressSpace(text, data Region_t, stackVbase uintptr, stackPbase mem.Pa_t) *AddressSpace_t {
	return &AddressSpace_t{
		Text: text,
		Data: data,
		Stack: Region_t{
			Vbase:  stackVbase,
			Pbase:  stackPbase,
			Npages: USERSTACKPAGES,
		},
	}
}

/// Lock/Unlock bracket mutation of the address space's regions (loader
/// setup, fork's deep copy). The fault path itself does not need this
/// lock since Region_t lookups are read-only arithmetic over immutable
/// fields once the address space is built.
func (as *AddressSpace_t) Lock()   { as.mu.Lock() }
func (as *AddressSpace_t) Unlock() { as.mu.Unlock() }

/// regions returns the three regions in a fixed order for lookup and
/// copying.
func (as *AddressSpace_t) regions() [3]Region_t {
	return [3]Region_t{as.Text, as.Data, as.Stack}
}

/// Translate classifies vaddr into the text, data, or stack region and
/// returns its physical address. ok is false when vaddr falls in none of
/// the three regions (a guard gap), matching §4.4's "if none match:
/// EFAULT" contract.
func (as *AddressSpace_t) Translate(vaddr uintptr) (mem.Pa_t, bool) {
	for _, r := range as.regions() {
		if r.contains(vaddr) {
			return r.translate(vaddr), true
		}
	}
	return 0, false
}

/// CopyAddressSpace deep-copies src for fork: it allocates fresh
/// contiguous frames for each region via alloc and copies their contents
/// byte-for-byte using ram's direct map, so parent and child observe the
/// same initial memory but diverge on subsequent writes. Returns nil and
/// an error if any region's allocation fails; frames allocated so far are
/// released via free.
func CopyAddressSpace(src *AddressSpace_t, ram mem.Ram_i,
	alloc func(npages int) uintptr, free func(addr uintptr, paddrOf func(uintptr) mem.Pa_t),
	paddrOf func(uintptr) mem.Pa_t) (*AddressSpace_t, defs.Err_t) {

	src.mu.Lock()
	defer src.mu.Unlock()

	dst := &AddressSpace_t{}
	srcRegions := [3]*Region_t{&src.Text, &src.Data, &src.Stack}
	dstRegions := [3]*Region_t{&dst.Text, &dst.Data, &dst.Stack}

	var allocated []uintptr
	rollback := func() {
		for _, a := range allocated {
			free(a, paddrOf)
		}
	}

	for i, sr := range srcRegions {
		if sr.Npages == 0 {
			continue
		}
		kva := alloc(sr.Npages)
		if kva == 0 {
			rollback()
			return nil, -defs.ENOMEM
		}
		allocated = append(allocated, kva)
		pbase := paddrOf(kva)
		n := sr.Npages * mem.PGSIZE
		copy(ram.Dmap(pbase, n), ram.Dmap(sr.Pbase, n))
		*dstRegions[i] = Region_t{Vbase: sr.Vbase, Pbase: pbase, Npages: sr.Npages}
	}
	return dst, 0
}

/// Destroy releases every region's backing frames. Called only once the
/// exit rendezvous determines this address space has no remaining owner
/// (§4.8's "last to leave destroys").
func (as *AddressSpace_t) Destroy(free func(addr uintptr, paddrOf func(uintptr) mem.Pa_t), kvaddrOf func(mem.Pa_t) uintptr, paddrOf func(uintptr) mem.Pa_t) {
	as.mu.Lock()
	defer as.mu.Unlock()
	for _, r := range as.regions() {
		if r.Npages == 0 {
			continue
		}
		free(kvaddrOf(r.Pbase), paddrOf)
	}
}
