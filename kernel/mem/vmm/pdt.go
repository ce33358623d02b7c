package vmm

import (
	"rvkernel/kernel"
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/mem"
	"unsafe"
)

var (
	// activePDTFn is used by tests to override calls to cpu.ActivePDT,
	// which reads satp and would fault if called from the host GOARCH.
	activePDTFn = cpu.ActivePDT

	// switchPDTFn is used by tests to override calls to cpu.SwitchPDT,
	// which writes satp and issues sfence.vma.
	switchPDTFn = cpu.SwitchPDT
)

// recursiveEntryAddr returns the address of root[recursiveIndex] within the
// page table whose physical frame is rootFrame, accessed via rootFrame's
// position in the currently active recursive mapping.
func recursiveEntryAddr(rootFrame mem.Frame) uintptr {
	return rootFrame.Address() + (uintptr(recursiveIndex) << mem.PointerShift)
}

// PageDirectoryTable wraps the root SV39 page table frame for one address
// space, providing Map/Unmap/Activate that work whether or not this table
// is the one currently active on the HART.
type PageDirectoryTable struct {
	pdtFrame mem.Frame
}

// Init sets up a fresh root page table at pdtFrame: clears its contents and
// installs the recursive self-mapping at root[recursiveIndex]. If pdtFrame
// is already the active table, only the recursive entry is (re)installed.
func (pdt *PageDirectoryTable) Init(pdtFrame mem.Frame) *kernel.Error {
	pdt.pdtFrame = pdtFrame

	if pdtFrame.Address() == activePDTFn() {
		return nil
	}

	pdtPage, err := MapTemporary(pdtFrame)
	if err != nil {
		return err
	}

	kernel.Memset(pdtPage.Address(), 0, mem.PageSize)

	lastEntry := (*pageTableEntry)(unsafe.Pointer(pdtPage.Address() + (uintptr(recursiveIndex) << mem.PointerShift)))
	*lastEntry = 0
	lastEntry.SetFlags(FlagPresent)
	lastEntry.SetFrame(pdtFrame)

	return Unmap(pdtPage)
}

// withTemporaryActivation retargets the currently active root table's
// recursive entry at pdt's frame for the duration of fn, so fn can use the
// ordinary (always-relative-to-the-active-table) Map/Unmap/walk machinery
// even when pdt is not the table actually loaded in satp.
func (pdt PageDirectoryTable) withTemporaryActivation(fn func()) {
	activeFrame := mem.FrameFromAddress(activePDTFn())
	if activeFrame == pdt.pdtFrame {
		fn()
		return
	}

	entryAddr := recursiveEntryAddr(activeFrame)
	entry := (*pageTableEntry)(unsafe.Pointer(entryAddr))
	entry.SetFrame(pdt.pdtFrame)
	flushTLBEntryFn(entryAddr)

	fn()

	entry.SetFrame(activeFrame)
	flushTLBEntryFn(entryAddr)
}

// Map establishes a mapping in this PDT, even if it is not the active table.
func (pdt PageDirectoryTable) Map(page mem.Page, frame mem.Frame, flags PageTableEntryFlag) *kernel.Error {
	var err *kernel.Error
	pdt.withTemporaryActivation(func() {
		err = mapFn(page, frame, flags)
	})
	return err
}

// Unmap removes a mapping from this PDT, even if it is not the active table.
func (pdt PageDirectoryTable) Unmap(page mem.Page) *kernel.Error {
	var err *kernel.Error
	pdt.withTemporaryActivation(func() {
		err = unmapFn(page)
	})
	return err
}

// withPTE locates the leaf page table entry for page within this PDT, even
// if it is not the active table, and passes it to fn for inspection or
// mutation. Returns ErrInvalidMapping if page is not mapped.
func (pdt PageDirectoryTable) withPTE(page mem.Page, fn func(*pageTableEntry)) *kernel.Error {
	var err *kernel.Error
	pdt.withTemporaryActivation(func() {
		var pte *pageTableEntry
		pte, err = pteForAddress(page.Address())
		if err != nil {
			return
		}
		fn(pte)
	})
	return err
}

// Activate installs this table as the active one for the current HART
// (writes satp with SV39 mode bits and fences the TLB).
func (pdt PageDirectoryTable) Activate() {
	switchPDTFn(pdt.pdtFrame.Address())
}
