// Package sbi implements the kernel's boundary with the SBI-compliant
// M-mode firmware that hands control to S-mode at boot. It wraps the
// console and system-reset SBI extensions behind ecall stubs and captures
// the two boot argument registers (hart id, device tree blob pointer) the
// entry stub receives before paging is enabled.
package sbi

// Extension IDs for the legacy SBI extensions this kernel relies on.
const (
	extSetTimer       = 0x00
	extConsolePutChar = 0x01
	extConsoleGetChar = 0x02
	extShutdown       = 0x08
)

// sbiCall issues an ecall to the SBI firmware with the given extension id,
// function id and up to three arguments, returning the firmware's error and
// value registers (a0, a1). Implemented in arch-specific assembly and
// declared here without a body, following the same pattern the rest of the
// kernel uses for anything that cannot be expressed in portable Go.
func sbiCall(ext, fid, arg0, arg1, arg2 uintptr) (uintptr, uintptr)

// sbiCallFn is swapped out in tests so the console/shutdown wrappers can be
// exercised without a real ecall trapping to firmware.
var sbiCallFn = sbiCall

// PutChar writes a single byte to the firmware-provided debug console.
func PutChar(c byte) {
	sbiCallFn(extConsolePutChar, 0, uintptr(c), 0, 0)
}

// GetChar reads a single byte from the firmware-provided debug console. It
// returns false if no byte was available.
func GetChar() (byte, bool) {
	val, _ := sbiCallFn(extConsoleGetChar, 0, 0, 0, 0)
	if int(val) < 0 {
		return 0, false
	}
	return byte(val), true
}

// Shutdown asks the firmware to power off the machine. It does not return
// on success.
func Shutdown() {
	sbiCallFn(extShutdown, 0, 0, 0, 0)
}

// SetTimer asks the firmware to raise the next supervisor timer interrupt
// once the time CSR reaches stimeValue, per the legacy SBI timer extension.
// kernel/sched's timer wheel uses this to arrange one-shot wakeups
// (alarm/nanosleep) without busy-polling cpu.ReadTime.
func SetTimer(stimeValue uint64) {
	sbiCallFn(extSetTimer, 0, uintptr(stimeValue), 0, 0)
}
