package vmm

// pageLevels is the number of page-table levels SV39 uses.
const pageLevels = 3

// ptePPNShift is the bit offset of the physical page number field within a
// SV39 page table entry. Unlike amd64 (whose PTE stores the physical address
// directly, masked), SV39 stores a frame number shifted left by 10 bits,
// leaving bits 9:8 available as software-defined (RSW) bits and bits 7:0 for
// the V/R/W/X/U/G/A/D flags.
const ptePPNShift = 10

// ptePPNMask isolates the 44-bit physical page number field (bits 53:10).
const ptePPNMask = uintptr(((1 << 44) - 1) << ptePPNShift)

var (
	// pageLevelBits defines the number of virtual address bits that
	// correspond to each page level. SV39 uses 9 bits (512 entries) per
	// level at all three levels.
	pageLevelBits = [pageLevels]uint8{9, 9, 9}

	// pageLevelShifts defines the shift required to access each page
	// table component of a virtual address: VPN[2], VPN[1], VPN[0].
	pageLevelShifts = [pageLevels]uint8{30, 21, 12}
)

// recursiveIndex is the root page table slot reserved for the recursive
// self-mapping trick: root[recursiveIndex] points back to the root table
// itself, letting the kernel address any page table at any level purely
// through virtual addresses derived from canonicalAddr, without needing a
// separate physical-memory linear window.
const recursiveIndex = 511

// tempSlotIndex is the root slot reserved for temporary mappings and the
// early virtual-address-space reservations handed out by EarlyReserveRegion,
// distinct from recursiveIndex so the two purposes never alias.
const tempSlotIndex = 510

// trampolineSlotIndex and trapContextSlotIndex are the root slots every
// AddressSpace maps identically (§4.4): the fixed-address user-return
// trampoline code page and the per-task trap-context page the trap path
// writes a0...a7/pc into when entering U-mode, kept at the same address in
// every address space so `kernel/trap`'s entry/exit code never has to learn
// where the current task keeps them.
const (
	trampolineSlotIndex          = 509
	trapContextSlotIndex         = 508
	sigreturnTrampolineSlotIndex = 507
)

// canonicalAddr composes a 39-bit SV39 virtual address from its three
// 9-bit VPN fields and sign-extends bit 38 through bits 63:39, which SV39
// requires of every valid virtual address.
func canonicalAddr(vpn2, vpn1, vpn0 uint64) uintptr {
	v := (vpn2 << pageLevelShifts[0]) | (vpn1 << pageLevelShifts[1]) | (vpn0 << pageLevelShifts[2])
	if v&(1<<38) != 0 {
		v |= ^uint64(0) << 39
	}
	return uintptr(v)
}

var (
	// pdtVirtualAddr is the virtual address of the active root page
	// table, reachable only because root[recursiveIndex] maps back to
	// itself. walk() always starts here regardless of the address being
	// translated/mapped.
	pdtVirtualAddr = canonicalAddr(recursiveIndex, recursiveIndex, recursiveIndex)

	// tempMappingAddr is the fixed virtual page MapTemporary uses to
	// bring an arbitrary physical frame into the kernel's address space
	// for initialization purposes (e.g. zeroing a freshly allocated page
	// table before linking it in).
	tempMappingAddr = canonicalAddr(tempSlotIndex, recursiveIndex, recursiveIndex)

	// trampolineAddr and trapContextAddr are the fixed addresses every
	// AddressSpace maps its trampoline code page and trap-context page at.
	trampolineAddr  = canonicalAddr(trampolineSlotIndex, recursiveIndex, recursiveIndex)
	trapContextAddr = canonicalAddr(trapContextSlotIndex, recursiveIndex, recursiveIndex)

	// SigreturnTrampolineAddr is the fixed address every AddressSpace maps
	// kernel/signal's compiled sigreturn trampoline page at (§4.10/§9): a
	// handler-dispatch frame's return address always points here, so
	// resuming into the trampoline and issuing sigreturn never depends on
	// which task is running. Exported (unlike trampolineAddr/
	// trapContextAddr) because kernel/signal, outside this package, needs
	// it to build that return address.
	SigreturnTrampolineAddr = canonicalAddr(sigreturnTrampolineSlotIndex, recursiveIndex, recursiveIndex)
)
