// Package trap implements the kernel's single stvec-vectored trap path
// (§4.5): one assembly entry stub handles every exception, interrupt and
// ecall, swaps onto a known-good stack via sscratch, saves a flat register
// frame, and calls Dispatch. This generalizes the teacher's IDT-based
// gate/irq split (amd64's per-vector gate descriptors plus a separate IRQ
// controller) down to RISC-V's single entry point and single cause CSR.
package trap

import (
	"io"
	"rvkernel/kernel/kfmt"
)

// Frame is the fixed, flat layout the trap entry stub saves before calling
// Dispatch: every general register but x0 (hardwired zero, never saved),
// plus the three CSRs Dispatch needs to classify and resume the trap. 31
// GPRs + sepc/sstatus/scause = 34 words (§4.5).
type Frame struct {
	RA, SP, GP, TP uint64
	T0, T1, T2     uint64
	S0, S1         uint64
	A0, A1, A2, A3, A4, A5, A6, A7           uint64
	S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uint64
	T3, T4, T5, T6                           uint64

	Sepc, Sstatus, Scause uint64
}

// DumpTo writes a register dump of the frame to w, mirroring the teacher's
// gate.Registers.DumpTo formatting.
func (f *Frame) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "ra = %16x sp = %16x gp = %16x tp = %16x\n", f.RA, f.SP, f.GP, f.TP)
	kfmt.Fprintf(w, "t0 = %16x t1 = %16x t2 = %16x\n", f.T0, f.T1, f.T2)
	kfmt.Fprintf(w, "s0 = %16x s1 = %16x\n", f.S0, f.S1)
	kfmt.Fprintf(w, "a0 = %16x a1 = %16x a2 = %16x a3 = %16x\n", f.A0, f.A1, f.A2, f.A3)
	kfmt.Fprintf(w, "a4 = %16x a5 = %16x a6 = %16x a7 = %16x\n", f.A4, f.A5, f.A6, f.A7)
	kfmt.Fprintf(w, "s2  = %16x s3  = %16x s4  = %16x s5  = %16x\n", f.S2, f.S3, f.S4, f.S5)
	kfmt.Fprintf(w, "s6  = %16x s7  = %16x s8  = %16x s9  = %16x\n", f.S6, f.S7, f.S8, f.S9)
	kfmt.Fprintf(w, "s10 = %16x s11 = %16x\n", f.S10, f.S11)
	kfmt.Fprintf(w, "t3 = %16x t4 = %16x t5 = %16x t6 = %16x\n", f.T3, f.T4, f.T5, f.T6)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "sepc = %16x scause = %16x sstatus = %16x\n", f.Sepc, f.Scause, f.Sstatus)
}

// Arg returns the n'th syscall argument register (a0..a5), per §4.8's
// argument-marshalling convention. Panics if n is out of range; callers are
// expected to know the arity of the syscall they're dispatching.
func (f *Frame) Arg(n int) uint64 {
	switch n {
	case 0:
		return f.A0
	case 1:
		return f.A1
	case 2:
		return f.A2
	case 3:
		return f.A3
	case 4:
		return f.A4
	case 5:
		return f.A5
	default:
		panic("trap: syscall argument index out of range")
	}
}

// SetReturn writes val and errno-style negative status back into a0, the
// register the ecall-returning user code reads its syscall result from.
func (f *Frame) SetReturn(val int64) {
	f.A0 = uint64(val)
}
