package syscall

import (
	"testing"

	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/task"
)

// CopyIn/CopyOut/CopyInString themselves dereference raw user addresses via
// unsafe.Pointer and are not exercised here for the same reason kernel/mem's
// page-table walk isn't: there is no live user memory to point them at in a
// hosted test binary. validateUserRange's VMA bound-checking is pure Go
// logic against a hand-built AddressSpace and is safe to test directly.

func taskWithVMA(vma vmm.VMA) *task.Task {
	as := &vmm.AddressSpace{}
	as.AddVMA(vma)
	return &task.Task{AddressSpace: as}
}

func TestValidateUserRangeAcceptsRangeFullyInsideVMA(t *testing.T) {
	tk := taskWithVMA(vmm.VMA{Start: 0x1000, End: 0x2000, Flags: vmm.VMARead | vmm.VMAUser})
	if err := validateUserRange(tk, 0x1000, 0x100, false); err != nil {
		t.Errorf("validateUserRange() = %v, want nil", err)
	}
}

func TestValidateUserRangeRejectsUnmappedAddress(t *testing.T) {
	tk := taskWithVMA(vmm.VMA{Start: 0x1000, End: 0x2000, Flags: vmm.VMARead | vmm.VMAUser})
	if err := validateUserRange(tk, 0x5000, 0x10, false); err == nil {
		t.Error("validateUserRange() = nil, want an error for an address outside any VMA")
	}
}

func TestValidateUserRangeRejectsRangeSpanningPastVMAEnd(t *testing.T) {
	tk := taskWithVMA(vmm.VMA{Start: 0x1000, End: 0x2000, Flags: vmm.VMARead | vmm.VMAUser})
	if err := validateUserRange(tk, 0x1F00, 0x200, false); err == nil {
		t.Error("validateUserRange() = nil, want an error for a range extending past the VMA")
	}
}

func TestValidateUserRangeRejectsWriteToReadOnlyVMA(t *testing.T) {
	tk := taskWithVMA(vmm.VMA{Start: 0x1000, End: 0x2000, Flags: vmm.VMARead | vmm.VMAUser})
	if err := validateUserRange(tk, 0x1000, 0x10, true); err == nil {
		t.Error("validateUserRange() = nil, want an error writing to a read-only VMA")
	}
}

func TestValidateUserRangeAcceptsWriteToWritableVMA(t *testing.T) {
	tk := taskWithVMA(vmm.VMA{Start: 0x1000, End: 0x2000, Flags: vmm.VMARead | vmm.VMAWrite | vmm.VMAUser})
	if err := validateUserRange(tk, 0x1000, 0x10, true); err != nil {
		t.Errorf("validateUserRange() = %v, want nil", err)
	}
}

func TestValidateUserRangeZeroLengthAlwaysOK(t *testing.T) {
	tk := &task.Task{AddressSpace: &vmm.AddressSpace{}}
	if err := validateUserRange(tk, 0x1000, 0, false); err != nil {
		t.Errorf("validateUserRange() with zero length = %v, want nil", err)
	}
}
