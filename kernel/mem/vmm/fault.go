package vmm

import (
	"rvkernel/kernel"
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/mem"
)

// FaultCause distinguishes the three SV39 page-fault trap causes (scause
// values 12/13/15: instruction/load/store page fault) that kernel/trap
// dispatches to HandlePageFault.
type FaultCause uint8

const (
	FaultInstruction FaultCause = iota
	FaultLoad
	FaultStore
)

func (c FaultCause) String() string {
	switch c {
	case FaultInstruction:
		return "instruction page fault"
	case FaultLoad:
		return "load page fault"
	case FaultStore:
		return "store page fault"
	default:
		return "unknown page fault"
	}
}

var errUnrecoverableFault = &kernel.Error{Module: "vmm", Message: "unrecoverable page fault"}

// reserveZeroedFrame allocates the blank frame Init arranges to share,
// read-only, across every copy-on-write lazy mapping.
func reserveZeroedFrame() *kernel.Error {
	frame, err := mem.AllocFrame()
	if err != nil {
		return err
	}
	ReservedZeroedFrame = frame

	tempPage, err := MapTemporary(frame)
	if err != nil {
		return err
	}
	kernel.Memset(tempPage.Address(), 0, mem.PageSize)
	if err := Unmap(tempPage); err != nil {
		return err
	}

	protectReservedZeroedPage = true
	return nil
}

// Init bootstraps the vmm package: allocates and shares the reserved blank
// frame used for copy-on-write lazy mappings. kernel/mem/pmm.Init runs
// earlier and already uses this package's EarlyReserveRegion and Map to map
// the buddy allocator's bookkeeping while the boot-time allocator still
// serves frames.
func Init() *kernel.Error {
	return reserveZeroedFrame()
}

// HandlePageFault resolves a SV39 page fault at faultAddr, or returns
// errUnrecoverableFault if it cannot be resolved in-kernel (e.g. a genuine
// access violation). kernel/trap calls this from the trap dispatcher with
// the stval/scause values read out of the trap frame.
func HandlePageFault(faultAddr uintptr, cause FaultCause) *kernel.Error {
	faultPage := mem.PageFromAddress(faultAddr)
	var pageEntry *pageTableEntry

	walk(faultPage.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		present := pte.HasFlags(FlagPresent)
		if pteLevel == pageLevels-1 && present {
			pageEntry = pte
		}
		return present
	})

	if pageEntry != nil && cause == FaultStore &&
		!pageEntry.HasFlags(FlagWrite) && pageEntry.HasFlags(FlagCopyOnWrite) {

		copyFrame, err := mem.AllocFrame()
		if err != nil {
			logUnrecoverableFault(faultAddr, cause, err)
			return err
		}

		tmpPage, err := MapTemporary(copyFrame)
		if err != nil {
			logUnrecoverableFault(faultAddr, cause, err)
			return err
		}

		kernel.Memcopy(faultPage.Address(), tmpPage.Address(), mem.PageSize)
		Unmap(tmpPage)

		pageEntry.ClearFlags(FlagCopyOnWrite)
		pageEntry.SetFlags(FlagPresent | FlagWrite)
		pageEntry.SetFrame(copyFrame)
		flushTLBEntryFn(faultPage.Address())
		return nil
	}

	logUnrecoverableFault(faultAddr, cause, errUnrecoverableFault)
	return errUnrecoverableFault
}

func logUnrecoverableFault(faultAddr uintptr, cause FaultCause, err *kernel.Error) {
	kfmt.Printf("\npage fault at 0x%16x: %s (%s)\n", faultAddr, cause.String(), err.Error())
}
