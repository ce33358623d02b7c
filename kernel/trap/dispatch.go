package trap

import (
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/mem/vmm"
)

// SyscallHandlerFn dispatches an ecall-from-U-mode trap; kernel/syscall
// registers the real implementation via SetSyscallHandler. Kept as an
// indirection, like kernel/sync's scheduler hooks, to avoid an import cycle
// between kernel/trap and the packages that sit above it.
type SyscallHandlerFn func(f *Frame)

// TimerInterruptFn handles a supervisor timer interrupt; kernel/sched
// registers the real tick handler via SetTimerHandler.
type TimerInterruptFn func()

// SoftwareInterruptFn handles a supervisor software interrupt (used for
// cross-HART IPIs); kernel/cpu/kernel/sched registers the real handler via
// SetSoftwareInterruptHandler.
type SoftwareInterruptFn func()

var (
	syscallHandler  SyscallHandlerFn
	timerHandler    TimerInterruptFn
	softwareHandler SoftwareInterruptFn
)

// SetSyscallHandler wires the trap path to the syscall dispatcher.
func SetSyscallHandler(fn SyscallHandlerFn) {
	syscallHandler = fn
}

// SetTimerHandler wires the trap path to the scheduler's tick handler.
func SetTimerHandler(fn TimerInterruptFn) {
	timerHandler = fn
}

// SetSoftwareInterruptHandler wires the trap path to the IPI handler.
func SetSoftwareInterruptHandler(fn SoftwareInterruptFn) {
	softwareHandler = fn
}

// Init installs the trap entry stub's address into stvec in direct mode,
// so every trap on this HART lands at the same vector regardless of cause.
func Init() {
	installTrapVector()
}

// Dispatch is called by the assembly entry stub with the just-saved frame.
// It classifies scause and routes to the registered handler, a page-fault
// resolution, or a fatal dump-and-halt for anything else.
func Dispatch(f *Frame) {
	cause := Cause(f.Scause)

	if cause.IsInterrupt() {
		dispatchInterrupt(f, cause.Code())
		return
	}

	switch cause {
	case ExcEcallFromU:
		f.Sepc += 4 // ecall is always 4 bytes; resume at the next instruction
		if syscallHandler != nil {
			syscallHandler(f)
			return
		}
		fatal(f, "unhandled syscall: no syscall handler registered")

	case ExcInstructionPageFault, ExcLoadPageFault, ExcStorePageFault:
		if err := vmm.HandlePageFault(uintptr(cpu.ReadSTVAL()), pageFaultCause(cause)); err != nil {
			fatal(f, "unrecoverable page fault: "+err.Error())
		}

	default:
		fatal(f, "unhandled exception")
	}
}

func dispatchInterrupt(f *Frame, code uint64) {
	switch code {
	case IntSupervisorTimer:
		if timerHandler != nil {
			timerHandler()
			return
		}
	case IntSupervisorSoftware:
		if softwareHandler != nil {
			softwareHandler()
			return
		}
	case IntSupervisorExternal:
		// Device IRQ routing (PLIC claim/complete) is a board collaborator's
		// responsibility (§6 Non-goals); the core trap path only recognizes
		// the cause so it doesn't fall through to the fatal default below.
		return
	}
}

func pageFaultCause(c Cause) vmm.FaultCause {
	switch c {
	case ExcInstructionPageFault:
		return vmm.FaultInstruction
	case ExcStorePageFault:
		return vmm.FaultStore
	default:
		return vmm.FaultLoad
	}
}

func fatal(f *Frame, reason string) {
	kfmt.Printf("\nfatal trap: %s\n", reason)
	f.DumpTo(kfmt.GetOutputSink())
	panic(reason)
}

// installTrapVector writes the trap entry stub's address to stvec in direct
// mode (mode bits 1:0 == 0). Implemented in arch-specific assembly and
// declared here without a body, following the same pattern the rest of the
// kernel uses for anything that cannot be expressed in portable Go.
func installTrapVector()

// trapEntry is the single vectored entry point referenced by
// installTrapVector: it swaps onto the trap stack via sscratch, saves a
// Frame, calls Dispatch, restores the frame and sret's back. It has no Go
// body; it exists purely so the symbol is documented alongside its callers.
func trapEntry()
