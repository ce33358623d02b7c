package syscall

import (
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// TimebaseHz is the frequency of the time CSR this kernel boots against
// (QEMU's "virt" machine and most SV39 rv64gc boards fix this at 10MHz,
// reported to firmware via the device tree's timebase-frequency property).
// Time-domain syscalls use it to convert between raw ticks and wall-clock
// units.
const TimebaseHz = 10_000_000

func init() {
	register(SysGettimeofday, sysGettimeofday)
	register(SysNanosleep, sysNanosleep)
	register(SysClockGettime, sysClockGettime)
}

func ticksToTimespec(ticks uint64) (sec, nsec uint64) {
	sec = ticks / TimebaseHz
	nsec = (ticks % TimebaseHz) * (1_000_000_000 / TimebaseHz)
	return
}

// sysGettimeofday implements gettimeofday(2): a0 is a user pointer to a
// {sec, usec} pair of uint64s.
func sysGettimeofday(t *task.Task, f *trap.Frame) int64 {
	sec, nsec := ticksToTimespec(cpu.ReadTime())
	usec := nsec / 1000
	return writeTimePair(t, uintptr(f.Arg(0)), sec, usec)
}

// sysClockGettime implements clock_gettime(2): a0 is the clock id (ignored
// -- this kernel has only one time source, the free-running time CSR), a1
// a user pointer to a {sec, nsec} pair of uint64s.
func sysClockGettime(t *task.Task, f *trap.Frame) int64 {
	sec, nsec := ticksToTimespec(cpu.ReadTime())
	return writeTimePair(t, uintptr(f.Arg(1)), sec, nsec)
}

func writeTimePair(t *task.Task, addr uintptr, a, b uint64) int64 {
	if addr == 0 {
		return 0
	}
	var raw [16]byte
	putUint64LE(raw[0:8], a)
	putUint64LE(raw[8:16], b)
	if err := CopyOut(t, addr, raw[:]); err != nil {
		return int64(errors.ToErrno(err))
	}
	return 0
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// sysNanosleep implements nanosleep(2): a0 is a user pointer to a {sec,
// nsec} request. It arms a deadline against the time CSR and suspends the
// caller on kernel/sched's timer wheel until that deadline passes
// (§4.7/§5: nanosleep is a suspension mechanism, not just a timer arm).
func sysNanosleep(t *task.Task, f *trap.Frame) int64 {
	raw, err := CopyIn(t, uintptr(f.Arg(0)), 16)
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	sec := getUint64LE(raw[0:8])
	nsec := getUint64LE(raw[8:16])
	deadline := cpu.ReadTime() + sec*TimebaseHz + nsec/(1_000_000_000/TimebaseHz)
	sched.ArmSleep(t, deadline)
	return 0
}

func getUint64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}
