// Package cpu contains architecture-specific primitives for rv64gc: CSR
// access, TLB/cache maintenance and per-HART control. All functions in this
// file are implemented in arch-specific assembly and declared here without a
// body, following the same pattern the rest of the kernel uses for anything
// that cannot be expressed in portable Go.
package cpu

// SatpModeSV39 is the MODE field value that selects SV39 paging when written
// to the satp CSR (mode bits 63:60 == 8).
const SatpModeSV39 = uint64(8) << 60

// EnableInterrupts sets sstatus.SIE, allowing supervisor interrupts to be
// taken on this HART.
func EnableInterrupts()

// DisableInterrupts clears sstatus.SIE. kernel/sync's Spinlock does not
// call it; acquiring a lock leaves interrupts as they were.
func DisableInterrupts()

// InterruptsEnabled reports whether sstatus.SIE is currently set.
func InterruptsEnabled() bool

// Halt executes wfi in a loop, parking the HART until the next interrupt.
func Halt()

// FlushTLBEntry issues sfence.vma for a single virtual address.
func FlushTLBEntry(virtAddr uintptr)

// FlushTLBAll issues a global sfence.vma, flushing every cached translation
// on this HART.
func FlushTLBAll()

// SwitchPDT writes satp with the physical frame number of the given root
// page table frame (shifted into the PPN field) and SV39 mode bits set, then
// flushes the TLB.
func SwitchPDT(rootFrameAddr uintptr)

// ActivePDT returns the physical address of the currently active root page
// table, as recovered from satp.
func ActivePDT() uintptr

// ReadSTVAL returns the faulting address/bad instruction captured in stval
// at the most recent trap.
func ReadSTVAL() uint64

// ReadSCAUSE returns the trap cause captured in scause at the most recent
// trap.
func ReadSCAUSE() uint64

// HartID returns the hart id of the calling HART (mhartid, forwarded to S-mode
// by the SBI firmware in a0 at boot and cached per-HART thereafter).
func HartID() uint64

// SendIPI requests the SBI firmware raise a supervisor software interrupt on
// the HARTs selected by the hartMask bitmap, used to implement cross-CPU
// shootdowns and scheduler wake-ups (§5).
func SendIPI(hartMask uint64)

// ReadTime returns the free-running mtime counter value (the time CSR,
// readable directly from S-mode), used by kernel/syscall's time-domain
// calls and kernel/sched's timer wheel to convert ticks to wall-clock time.
func ReadTime() uint64

// BootSecondary asks the SBI HSM extension to start the given hart at the
// given physical entry address with opaque handed to it in a1 (the
// secondary's own entry stub passes that value straight through to the
// second argument of kernel/kmain.SecondaryMain). It returns once the SBI
// call itself completes, not once the target hart has actually reached Go
// code; a hart that does not exist simply never shows up in
// kernel/sched's runqueues, so kernel/kmain does not treat the SBI error
// return as fatal (§1: board/device-tree parsing, which would tell the
// core how many HARTs actually exist, is an external collaborator).
func BootSecondary(hartID uint64, entryAddr uintptr, opaque uintptr)
