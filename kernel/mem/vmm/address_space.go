package vmm

import (
	"bytes"
	"debug/elf"
	"rvkernel/kernel"
	"rvkernel/kernel/mem"
	"unsafe"
)

// TrampolineFrame holds the physical frame backing the fixed-address
// user-return trampoline every AddressSpace maps at trampolineAddr.
// Left InvalidFrame until kernel/trap installs its compiled trampoline
// code page; AddressSpaces created before that point simply carry no
// trampoline mapping yet.
var TrampolineFrame = mem.InvalidFrame

// SetTrampolineFrame registers the frame kernel/trap's boot sequence
// built the user-return trampoline code into. Every AddressSpace created
// afterwards maps it at the same fixed address.
func SetTrampolineFrame(f mem.Frame) {
	TrampolineFrame = f
}

// SigreturnTrampolineFrame holds the physical frame backing the fixed-
// address sigreturn trampoline every AddressSpace maps at
// SigreturnTrampolineAddr. Left InvalidFrame until kernel/signal installs
// its compiled trampoline code page.
var SigreturnTrampolineFrame = mem.InvalidFrame

// SetSigreturnTrampolineFrame registers the frame kernel/signal's boot-time
// install call built the sigreturn trampoline code into.
func SetSigreturnTrampolineFrame(f mem.Frame) {
	SigreturnTrampolineFrame = f
}

// VMAFlag describes the protection and sharing behavior of a VMA.
type VMAFlag uint8

const (
	VMARead VMAFlag = 1 << iota
	VMAWrite
	VMAExec
	VMAUser
	VMAShared
)

// toPTEFlags converts a VMA's protection bits to the page-table-entry flags
// its backing pages are mapped with.
func (f VMAFlag) toPTEFlags() PageTableEntryFlag {
	var flags PageTableEntryFlag
	if f&VMARead != 0 {
		flags |= FlagRead
	}
	if f&VMAWrite != 0 {
		flags |= FlagWrite
	}
	if f&VMAExec != 0 {
		flags |= FlagExec
	}
	if f&VMAUser != 0 {
		flags |= FlagUser
	}
	return flags
}

// VMAKind describes how a VMA's backing pages were obtained, which in turn
// decides what Unmap does with them when the VMA goes away (§3/§4.4).
type VMAKind uint8

const (
	// VMAKindFramed backs each page with a freshly allocated frame the VMA
	// owns outright; Unmap returns every owned frame to the allocator.
	VMAKindFramed VMAKind = iota
	// VMAKindIdentity maps virtual addresses straight onto the physical
	// frame of the same number (kernel text/data, MMIO windows). Unmap
	// tears down the mapping but never frees the frame: the VMA never
	// owned it in the first place.
	VMAKindIdentity
	// VMAKindShared backs a region callers have asked to be visible to
	// other mappings (e.g. a future MAP_SHARED); this kernel does not yet
	// track cross-address-space sharers, so a shared VMA's own Unmap still
	// frees its frames, same as VMAKindFramed.
	VMAKindShared
)

// VMA describes one contiguous virtual memory area within an AddressSpace:
// a process's text, data, heap, stack and mmap'd regions are each one VMA.
// Frames records the physical frame backing each page of the region, in
// page order starting at Start, for VMAs whose Kind means they own that
// frame; it is left nil for VMAs (ELF segments, fork's CoW clones) that
// were never given individual per-page ownership tracking, so Unmapping
// them tears down mappings but leaks no double-frees across address spaces
// sharing the same physical page.
type VMA struct {
	Start, End uintptr
	Flags      VMAFlag
	Kind       VMAKind
	Frames     []mem.Frame
}

// Contains reports whether addr falls within this VMA.
func (v VMA) Contains(addr uintptr) bool {
	return addr >= v.Start && addr < v.End
}

var (
	errNoVMACoversAddress = &kernel.Error{Module: "vmm", Message: "address does not fall within any VMA of this address space"}
	errMalformedELF       = &kernel.Error{Module: "vmm", Message: "malformed or unsupported ELF image"}
)

// AddressSpace is a per-task virtual memory context (§4.4): its own root
// page table plus the set of VMAs describing what each mapped range is
// used for. Every AddressSpace maps the kernel's own upper half (via the
// shared recursive/temp/trampoline slots, all above any address a VMA can
// claim) identically, the way gopher-os's single PDT always carries the
// kernel's own mappings alongside whatever happens to run in ring 0.
type AddressSpace struct {
	pdt  PageDirectoryTable
	vmas []VMA
}

// NewEmpty allocates a fresh root page table with no VMAs besides the
// fixed trampoline/trap-context mappings every address space carries.
func NewEmpty() (*AddressSpace, *kernel.Error) {
	rootFrame, err := mem.AllocFrame()
	if err != nil {
		return nil, err
	}

	as := &AddressSpace{}
	if err := as.pdt.Init(rootFrame); err != nil {
		return nil, err
	}

	if err := as.mapFixedRegions(); err != nil {
		return nil, err
	}

	return as, nil
}

// mapFixedRegions installs the trampoline code page (if one has been
// registered) and a freshly allocated, zeroed trap-context page at the
// fixed addresses every AddressSpace shares.
func (as *AddressSpace) mapFixedRegions() *kernel.Error {
	if TrampolineFrame.Valid() {
		if err := as.pdt.Map(mem.PageFromAddress(trampolineAddr), TrampolineFrame, FlagPresent|FlagRead|FlagExec|FlagUser); err != nil {
			return err
		}
	}

	if SigreturnTrampolineFrame.Valid() {
		if err := as.pdt.Map(mem.PageFromAddress(SigreturnTrampolineAddr), SigreturnTrampolineFrame, FlagPresent|FlagRead|FlagExec|FlagUser); err != nil {
			return err
		}
	}

	trapCtxFrame, err := mem.AllocFrame()
	if err != nil {
		return err
	}
	tmpPage, err := MapTemporary(trapCtxFrame)
	if err != nil {
		return err
	}
	kernel.Memset(tmpPage.Address(), 0, uintptr(mem.PageSize))
	if err := Unmap(tmpPage); err != nil {
		return err
	}
	return as.pdt.Map(mem.PageFromAddress(trapContextAddr), trapCtxFrame, FlagPresent|FlagRead|FlagWrite)
}

// Map installs a page-to-frame mapping in this address space's root table,
// even if it is not the one currently active on this HART.
func (as *AddressSpace) Map(page mem.Page, frame mem.Frame, flags PageTableEntryFlag) *kernel.Error {
	return as.pdt.Map(page, frame, flags)
}

// Activate installs this address space's root table as the one active on
// the current HART.
func (as *AddressSpace) Activate() {
	as.pdt.Activate()
}

// VMAFor returns the VMA covering addr, or errNoVMACoversAddress if none
// does (the caller treats that as an access violation, not a lazy fault).
func (as *AddressSpace) VMAFor(addr uintptr) (*VMA, *kernel.Error) {
	for i := range as.vmas {
		if as.vmas[i].Contains(addr) {
			return &as.vmas[i], nil
		}
	}
	return nil, errNoVMACoversAddress
}

// AddVMA records a new VMA in this address space. Callers are responsible
// for mapping its backing pages via Map.
func (as *AddressSpace) AddVMA(v VMA) {
	as.vmas = append(as.vmas, v)
}

// MapArea allocates and maps [start, end) according to kind and records the
// result as a new VMA (§4.4's map_area). start/end are rounded out to page
// boundaries. VMAKindIdentity maps each page to the physical frame of the
// same address without allocating anything; every other kind allocates a
// fresh zeroed frame per page, the same way FromELF fills in a segment.
func (as *AddressSpace) MapArea(start, end uintptr, perms VMAFlag, kind VMAKind) *kernel.Error {
	pageSize := uintptr(mem.PageSize)
	start &^= pageSize - 1
	end = (end + pageSize - 1) &^ (pageSize - 1)

	pteFlags := perms.toPTEFlags() | FlagPresent

	var frames []mem.Frame
	for addr := start; addr < end; addr += pageSize {
		frame := mem.FrameFromAddress(addr)

		if kind != VMAKindIdentity {
			f, ferr := mem.AllocFrame()
			if ferr != nil {
				return ferr
			}

			tmpPage, terr := MapTemporary(f)
			if terr != nil {
				return terr
			}
			kernel.Memset(tmpPage.Address(), 0, pageSize)
			if terr := Unmap(tmpPage); terr != nil {
				return terr
			}

			frame = f
			frames = append(frames, f)
		}

		if err := as.Map(mem.PageFromAddress(addr), frame, pteFlags); err != nil {
			return err
		}
	}

	as.AddVMA(VMA{Start: start, End: end, Flags: perms, Kind: kind, Frames: frames})
	return nil
}

// Unmap tears down every mapping in [start, end) (§4.4's unmap): each
// covered page is removed from the root table, and any frame a covering
// VMA owns (VMAKindIdentity never does) is returned via mem.FreeFrame.
// VMAs are removed, trimmed or split in as.vmas so that afterwards no VMA
// overlaps [start, end) (§8 property 2: no overlapping VMAs after any
// sequence of map_area/unmap).
func (as *AddressSpace) Unmap(start, end uintptr) *kernel.Error {
	pageSize := uintptr(mem.PageSize)
	start &^= pageSize - 1
	end = (end + pageSize - 1) &^ (pageSize - 1)

	kept := as.vmas[:0:0]
	for _, v := range as.vmas {
		ovStart, ovEnd := maxUintptr(v.Start, start), minUintptr(v.End, end)
		if ovStart >= ovEnd {
			kept = append(kept, v)
			continue
		}

		for addr := ovStart; addr < ovEnd; addr += pageSize {
			if err := as.pdt.Unmap(mem.PageFromAddress(addr)); err != nil {
				return err
			}
			if idx := int((addr - v.Start) / pageSize); idx < len(v.Frames) {
				mem.FreeFrame(v.Frames[idx])
			}
		}

		if ovStart > v.Start {
			kept = append(kept, v.slice(v.Start, ovStart, pageSize))
		}
		if ovEnd < v.End {
			kept = append(kept, v.slice(ovEnd, v.End, pageSize))
		}
	}
	as.vmas = kept
	return nil
}

// slice returns the part of v spanning [subStart, subEnd), trimming its
// owned-frame list to match. Used by Unmap when it only covers part of v.
func (v VMA) slice(subStart, subEnd, pageSize uintptr) VMA {
	out := VMA{Start: subStart, End: subEnd, Flags: v.Flags, Kind: v.Kind}
	if v.Frames != nil {
		lo, hi := (subStart-v.Start)/pageSize, (subEnd-v.Start)/pageSize
		out.Frames = append([]mem.Frame(nil), v.Frames[lo:hi]...)
	}
	return out
}

func maxUintptr(a, b uintptr) uintptr {
	if a > b {
		return a
	}
	return b
}

func minUintptr(a, b uintptr) uintptr {
	if a < b {
		return a
	}
	return b
}

// FromELF builds a fresh AddressSpace from a statically-linked ELF image:
// one VMA and one set of page mappings per PT_LOAD program header,
// zero-filled past each segment's on-disk size out to its in-memory size
// (covers .bss without a dedicated segment).
func FromELF(image []byte) (*AddressSpace, *kernel.Error) {
	f, ferr := elf.NewFile(bytes.NewReader(image))
	if ferr != nil {
		return nil, errMalformedELF
	}

	as, err := NewEmpty()
	if err != nil {
		return nil, err
	}

	pageSize := uintptr(mem.PageSize)

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		flags := VMARead | VMAUser
		if prog.Flags&elf.PF_W != 0 {
			flags |= VMAWrite
		}
		if prog.Flags&elf.PF_X != 0 {
			flags |= VMAExec
		}

		vaddr, memsz, filesz := uintptr(prog.Vaddr), uintptr(prog.Memsz), uintptr(prog.Filesz)
		if memsz == 0 {
			continue
		}
		segStart := vaddr &^ (pageSize - 1)
		segEnd := (vaddr + memsz + pageSize - 1) &^ (pageSize - 1)

		data := make([]byte, memsz)
		if _, rerr := prog.ReadAt(data[:filesz], 0); rerr != nil {
			return nil, errMalformedELF
		}
		dataBase := uintptr(unsafe.Pointer(&data[0]))

		pteFlags := flags.toPTEFlags() | FlagPresent
		for addr := segStart; addr < segEnd; addr += pageSize {
			frame, ferr := mem.AllocFrame()
			if ferr != nil {
				return nil, ferr
			}

			tmpPage, terr := MapTemporary(frame)
			if terr != nil {
				return nil, terr
			}

			kernel.Memset(tmpPage.Address(), 0, pageSize)

			segOff := addr - segStart
			if segOff < memsz {
				chunkLen := memsz - segOff
				if chunkLen > pageSize {
					chunkLen = pageSize
				}
				kernel.Memcopy(dataBase+segOff, tmpPage.Address(), chunkLen)
			}

			if terr := Unmap(tmpPage); terr != nil {
				return nil, terr
			}

			if err := as.Map(mem.PageFromAddress(addr), frame, pteFlags); err != nil {
				return nil, err
			}
		}

		as.AddVMA(VMA{Start: segStart, End: segEnd, Flags: flags})
	}

	return as, nil
}

// FromFork builds a child AddressSpace sharing parent's mapped pages
// copy-on-write (§4.4/§4.6): every writable leaf mapping in a parent VMA is
// cleared of FlagWrite and marked FlagCopyOnWrite in both the parent and the
// child, deferring the actual copy to vmm.HandlePageFault's existing
// copy-on-write path the first time either side writes to it.
func FromFork(parent *AddressSpace) (*AddressSpace, *kernel.Error) {
	child, err := NewEmpty()
	if err != nil {
		return nil, err
	}

	for _, v := range parent.vmas {
		for addr := v.Start; addr < v.End; addr += uintptr(mem.PageSize) {
			page := mem.PageFromAddress(addr)

			var frame mem.Frame
			var flags PageTableEntryFlag

			werr := parent.pdt.withPTE(page, func(pte *pageTableEntry) {
				frame = pte.Frame()
				flags = PageTableEntryFlag(*pte) & (FlagPresent | FlagRead | FlagWrite | FlagExec | FlagUser | FlagGlobal | FlagCopyOnWrite)

				if pte.HasFlags(FlagWrite) {
					pte.ClearFlags(FlagWrite)
					pte.SetFlags(FlagCopyOnWrite)
					flags = (flags &^ FlagWrite) | FlagCopyOnWrite
					flushTLBEntryFn(addr)
				}
			})

			if werr == ErrInvalidMapping {
				// Not yet faulted in on the parent's side; the child
				// will fault it in independently once touched.
				continue
			} else if werr != nil {
				return nil, werr
			}

			if err := child.Map(page, frame, flags); err != nil {
				return nil, err
			}
		}

		v.Frames = nil // the parent keeps ownership of the shared frames
		child.AddVMA(v)
	}

	return child, nil
}
