package signal

import (
	"rvkernel/kernel/mem"
	"rvkernel/kernel/mem/vmm"
)

// sigreturnTrampolineFrame returns the physical address of the compiled
// sigreturn trampoline: the couple-instruction sequence ("li a7,
// SYS_sigreturn; ecall") every dispatchToHandler call points a handler's
// return address at (§4.10/§9). Mapped identically into every address
// space, the same "one tiny code page, same fixed virtual address
// everywhere" shape kernel/trap.trampolineFrame already uses for the
// kernel's own user-return trampoline. Implemented in arch-specific
// assembly and declared here without a body, following this kernel's
// standing convention for anything that cannot be expressed in portable Go.
func sigreturnTrampolineFrame() uintptr

// InstallTrampoline registers the compiled sigreturn trampoline's physical
// frame with kernel/mem/vmm so every AddressSpace created from this point
// on maps it. Called once during boot, alongside kernel/trap.InstallTrampoline.
func InstallTrampoline() {
	vmm.SetSigreturnTrampolineFrame(mem.FrameFromAddress(sigreturnTrampolineFrame()))
}
