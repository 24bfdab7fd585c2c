package vm

import (
	"defs"
	"mem"
	"spl"
)

/// NUM_TLB is the number of simulated software TLB slots per CPU, matching
/// the "64 entries" hard ceiling the original source's MIPS port assumes.
const NUM_TLB = 64

/// tlbent_t is one simulated TLB slot: ehi/elo hold the virtual page
/// number and the physical frame with its dirty/valid bits, mirroring the
/// MIPS entryhi/entrylo register pair the original source writes directly.
type tlbent_t struct {
	valid bool
	ehi   uintptr
	elo   mem.Pa_t
}

const (
	tlbDirty mem.Pa_t = 1 << 10
	tlbValid mem.Pa_t = 1 << 9
)

/// Tlb_t is one CPU's software-managed translation cache. Entries are
/// installed only by vm_fault; there is no eviction policy, matching the
/// source's "TLB eviction policy is absent" design note — exhaustion is a
/// reportable EFAULT, not a stall.
type Tlb_t struct {
	cpu     spl.Cpu_t
	entries [NUM_TLB]tlbent_t
}

/// NewTlb constructs an empty per-CPU TLB.
func NewTlb() *Tlb_t {
	return &Tlb_t{}
}

/// install raises IPL, scans for an invalid slot, and writes it with
/// (ehi=vaddr, elo=paddr|DIRTY|VALID). It restores IPL before returning.
/// ok is false when every slot is already valid.
func (tlb *Tlb_t) install(vaddr uintptr, paddr mem.Pa_t) bool {
	prev := tlb.cpu.High()
	defer tlb.cpu.Restore(prev)

	for i := range tlb.entries {
		if !tlb.entries[i].valid {
			tlb.entries[i] = tlbent_t{
				valid: true,
				ehi:   vaddr,
				elo:   paddr | tlbDirty | tlbValid,
			}
			return true
		}
	}
	return false
}

/// Lookup reports the installed translation for vaddr, if any. Exposed
/// for tests verifying the TLB-miss scenario in §8.
func (tlb *Tlb_t) Lookup(vaddr uintptr) (mem.Pa_t, bool) {
	for i := range tlb.entries {
		if tlb.entries[i].valid && tlb.entries[i].ehi == vaddr {
			return tlb.entries[i].elo, true
		}
	}
	return 0, false
}

/// Flush invalidates every entry. AddressSpace_t.Destroy does not call it;
/// entries of a destroyed address space stay in the TLB until Flush runs.
func (tlb *Tlb_t) Flush() {
	for i := range tlb.entries {
		tlb.entries[i] = tlbent_t{}
	}
}

/// VmFault resolves a page fault of the given kind at vaddr against as,
/// installing a TLB entry in tlb on success. Mirrors vm_fault's contract
/// in §4.4 exactly:
///   - READONLY is fatal: pages here are always installed read/write, so a
///     readonly-kind fault indicates a kernel bug, not a user error.
///   - vaddr is masked to its frame boundary before classification.
///   - a nil address space (no current process) is EFAULT.
///   - an address outside all three regions is EFAULT.
///   - a full TLB is EFAULT, with no eviction.
func VmFault(tlb *Tlb_t, as *AddressSpace_t, kind defs.Faulttype, vaddr uintptr) defs.Err_t {
	if kind == defs.FaultReadonly {
		panic("vm: fault: READONLY fault on a page installed read/write")
	}
	if as == nil {
		return -defs.EFAULT
	}

	frame := vaddr &^ uintptr(mem.PGSIZE-1)

	paddr, ok := as.Translate(frame)
	if !ok {
		return -defs.EFAULT
	}

	if !tlb.install(frame, paddr) {
		return -defs.EFAULT
	}
	return 0
}
