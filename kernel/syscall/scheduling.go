package syscall

import (
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

func init() {
	register(SysSetpriority, sysSetpriority)
	register(SysGetpriority, sysGetpriority)
	register(SysSchedSetscheduler, sysSchedSetscheduler)
	register(SysSchedGetscheduler, sysSchedGetscheduler)
}

// targetThread resolves a pid argument to the thread a scheduling call
// should act on. A pid of 0 means "the caller", matching setpriority(2)/
// sched_setscheduler(2)'s own convention; any other pid is looked up in the
// task table and its first thread used, consistent with the
// single-threaded-process model kernel/task currently implements.
func targetThread(t *task.Task, pid int64) *task.Thread {
	if pid == 0 {
		if len(t.Threads) == 0 {
			return nil
		}
		return t.Threads[0]
	}
	other := task.Lookup(task.Pid(pid))
	if other == nil || len(other.Threads) == 0 {
		return nil
	}
	return other.Threads[0]
}

// sysSetpriority implements setpriority(2): a0 is the target pid (0 for
// self), a1 the new priority.
func sysSetpriority(t *task.Task, f *trap.Frame) int64 {
	th := targetThread(t, int64(f.Arg(0)))
	if th == nil {
		return int64(errors.ToErrno(errors.NoSuchProcess))
	}
	sched.SetPriority(th, int(int32(f.Arg(1))))
	return 0
}

// sysGetpriority implements getpriority(2): a0 is the target pid (0 for
// self).
func sysGetpriority(t *task.Task, f *trap.Frame) int64 {
	th := targetThread(t, int64(f.Arg(0)))
	if th == nil {
		return int64(errors.ToErrno(errors.NoSuchProcess))
	}
	return int64(sched.GetPriority(th))
}

// sysSchedSetscheduler implements sched_setscheduler(2): a0 is the target
// pid (0 for self), a1 the requested policy (using this kernel's
// sched.Policy encoding directly rather than POSIX's SCHED_* constants,
// since no libc sits between user code and this ABI), a2 the priority to
// record alongside it.
func sysSchedSetscheduler(t *task.Task, f *trap.Frame) int64 {
	th := targetThread(t, int64(f.Arg(0)))
	if th == nil {
		return int64(errors.ToErrno(errors.NoSuchProcess))
	}
	policy := sched.Policy(f.Arg(1))
	if policy != sched.PolicyCFS && policy != sched.PolicyFIFO && policy != sched.PolicyRoundRobin {
		return int64(errors.ToErrno(errors.InvalidArgument))
	}
	sched.SetPolicy(th, policy)
	sched.SetPriority(th, int(int32(f.Arg(2))))
	return 0
}

// sysSchedGetscheduler implements sched_getscheduler(2): a0 is the target
// pid (0 for self).
func sysSchedGetscheduler(t *task.Task, f *trap.Frame) int64 {
	th := targetThread(t, int64(f.Arg(0)))
	if th == nil {
		return int64(errors.ToErrno(errors.NoSuchProcess))
	}
	return int64(sched.GetPolicy(th))
}
