package trap

import (
	"rvkernel/kernel/mem"
	"rvkernel/kernel/mem/vmm"
)

// trampolineFrame returns the physical address of the compiled user-return
// trampoline: the short, position-independent instruction sequence that
// restores a task's user-mode registers from the trap-context page and
// executes sret, mapped identically into every address space (§4.4) so
// returning to user mode never depends on which task is resuming. Built at
// link time from a small assembly stub; implemented in arch-specific
// assembly and declared here without a body, following the same pattern
// the rest of the kernel uses for anything that cannot be expressed in
// portable Go.
func trampolineFrame() uintptr

// InstallTrampoline registers the compiled trampoline's physical frame with
// kernel/mem/vmm so every AddressSpace created from this point on maps it.
// Called once during boot, after the frame allocator is up and before the
// first task is created.
func InstallTrampoline() {
	vmm.SetTrampolineFrame(mem.FrameFromAddress(trampolineFrame()))
}
