package syscall

import (
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/signal"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

func init() {
	register(SysSigaction, sysSigaction)
	register(SysSigprocmask, sysSigprocmask)
	register(SysSigreturn, sysSigreturn)
	register(SysAlarm, sysAlarm)
	register(SysPause, sysPause)
}

// sysSigaction implements sigaction(2)'s write half: a0 is the signal
// number, a1 the new handler (0 means SIG_DFL, 1 means SIG_IGN, anything
// else a handler entry point -- the conventional special constant values a
// libc shim passes), a2 the sa_flags bitmask. The old disposition isn't
// read back into a user pointer -- no caller in this kernel's own test
// surface needs it yet, an Open Question resolved toward "write, don't
// also stage a read-back" until something depends on the previous value.
func sysSigaction(t *task.Task, f *trap.Frame) int64 {
	sig := signal.Signal(f.Arg(0))
	handler := uintptr(f.Arg(1))

	var disp signal.Disposition
	switch handler {
	case 0:
		disp.Kind = signal.DispositionDefault
	case 1:
		disp.Kind = signal.DispositionIgnore
	default:
		disp.Kind = signal.DispositionHandler
		disp.Handler = handler
	}
	disp.Flags = uint32(f.Arg(2))

	if err := signal.SetDisposition(t.Pid, sig, disp); err != nil {
		return int64(errors.ToErrno(err))
	}
	return 0
}

// sysSigprocmask implements sigprocmask(2): a0 is the how (SIG_BLOCK/
// SIG_UNBLOCK/SIG_SETMASK), a1 the new mask. Like sysSigaction, the
// previous mask isn't copied out to a user pointer yet.
func sysSigprocmask(t *task.Task, f *trap.Frame) int64 {
	how := int(f.Arg(0))
	mask := uint32(f.Arg(1))
	if _, err := signal.SetBlockedMask(t.Pid, how, mask); err != nil {
		return int64(errors.ToErrno(err))
	}
	return 0
}

// sysSigreturn implements sigreturn(2): restores the frame saved at the
// most recent handler dispatch. On success it returns the restored frame's
// own a0, so Dispatch's write of the return value into a0 leaves the
// restored value in place.
func sysSigreturn(t *task.Task, f *trap.Frame) int64 {
	if err := signal.Sigreturn(t, f); err != nil {
		return int64(errors.ToErrno(err))
	}
	return int64(f.A0)
}

// sysAlarm implements alarm(2) (§4.10/§9): arms delivery of SIGALRM to t's
// process once seconds have passed on the time CSR, returning 0 (no
// previously scheduled alarm is tracked to report back yet). alarm(0) is a
// no-op rather than a real cancellation -- kernel/sched's timer wheel has
// no per-pid cancel, only firing, so there is nothing yet to cancel against.
func sysAlarm(t *task.Task, f *trap.Frame) int64 {
	seconds := f.Arg(0)
	if seconds == 0 {
		return 0
	}
	deadline := cpu.ReadTime() + seconds*TimebaseHz
	sched.ArmAlarm(t.Pid, deadline)
	return 0
}

// sysPause implements pause(2): blocks until any signal is pending against
// the caller's process, then reports EINTR -- pause never itself observes
// what happened to that signal (whether it terminated, was ignored or ran
// a handler); by the time this call returns, kernel/syscall's own
// dispatch-level signal.CheckPending has already acted on it.
func sysPause(t *task.Task, f *trap.Frame) int64 {
	signal.WaitForAny(t)
	return int64(errors.ToErrno(errors.Interrupted))
}
