package syscall

import (
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/signal"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// HandlerFn implements one syscall's domain logic: it reads whatever
// arguments it needs from f via f.Arg(n), performs the operation against
// the calling task t, and returns the value to write back to a0 (negative
// errno values flow through unchanged; ToErrno already produced them).
type HandlerFn func(t *task.Task, f *trap.Frame) int64

var table = map[Number]HandlerFn{}

// register adds a handler to the dispatch table. Called from this
// package's init-time domain files (process.go, file.go, ...).
func register(n Number, fn HandlerFn) {
	table[n] = fn
}

// Init wires this package's Dispatch into kernel/trap's syscall hook
// (§4.8). Called once during boot, after kernel/sched.Init.
func Init() {
	trap.SetSyscallHandler(Dispatch)
}

// Dispatch validates f.A7 as a known syscall number, routes to the
// matching domain handler, and writes the result back to f.A0 (§4.8: "the
// return value is written back to a0 before trap return"). Unknown numbers
// return ENOSYS, the same convention every unimplemented domain handler
// below uses for functionality kernel/fs, kernel/ipc or kernel/signal
// haven't supplied yet.
func Dispatch(f *trap.Frame) {
	t := currentTask()
	if t == nil {
		f.SetReturn(int64(errors.ENOSYS))
		return
	}

	handler, ok := table[Number(f.A7)]
	if !ok {
		f.SetReturn(int64(errors.ENOSYS))
		return
	}

	f.SetReturn(handler(t, f))

	// Signal delivery is checked on every syscall return (§4.10), the most
	// frequent and easiest-to-reach trap-return-to-user checkpoint this
	// kernel has; see kernel/signal.CheckPending's own doc comment for why
	// timer/external-interrupt returns don't get the same check yet.
	signal.CheckPending(t, f)
}

// currentTask returns the process that owns the thread presently running
// on this HART.
func currentTask() *task.Task {
	th := sched.Current(cpu.HartID())
	if th == nil {
		return nil
	}
	return th.Process
}
