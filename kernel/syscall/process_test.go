package syscall

import (
	"testing"

	"rvkernel/kernel/errors"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// sysFork/sysExecve/sysWaitpid/sysExit/sysYield are not exercised here:
// they call into task.Fork/task.Exec (both hit vmm's recursive-self-map
// hardware walk), sched.Schedule (task.SwitchContext, a bodyless arch
// primitive), or cpu.HartID(). sysGetpid/sysGetppid/sysKill touch none of
// that and are covered below.

func TestSysGetpidReturnsTaskPid(t *testing.T) {
	tk := &task.Task{Pid: 42}
	if got := sysGetpid(tk, &trap.Frame{}); got != 42 {
		t.Errorf("sysGetpid() = %d, want 42", got)
	}
}

func TestSysGetppidReturnsParentPid(t *testing.T) {
	tk := &task.Task{ParentPid: 7}
	if got := sysGetppid(tk, &trap.Frame{}); got != 7 {
		t.Errorf("sysGetppid() = %d, want 7", got)
	}
}

func TestSysKillUnknownPidReturnsESRCH(t *testing.T) {
	got := sysKill(&task.Task{}, &trap.Frame{A0: 999999})
	want := int64(errors.ToErrno(errors.NoSuchProcess))
	if got != want {
		t.Errorf("sysKill(unknown pid) = %d, want %d", got, want)
	}
}
