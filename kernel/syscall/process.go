package syscall

import (
	"rvkernel/kernel"
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/fs"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/signal"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

func init() {
	register(SysFork, sysFork)
	register(SysExecve, sysExecve)
	register(SysWaitpid, sysWaitpid)
	register(SysExit, sysExit)
	register(SysGetpid, sysGetpid)
	register(SysGetppid, sysGetppid)
	register(SysKill, sysKill)
	register(SysYield, sysYield)
}

// sysFork implements fork(2): duplicates the caller into a child task with
// a copy-on-write address space, admits its thread to the scheduler, and
// returns the child's pid to the parent (the child's own copy of f already
// has its return slot zeroed by task.Fork).
func sysFork(t *task.Task, f *trap.Frame) int64 {
	childPid, err := task.Fork(t, f)
	if err != nil {
		return int64(errors.ToErrno(err))
	}

	if child := task.Lookup(childPid); child != nil && len(child.Threads) > 0 {
		sched.Enqueue(child.Threads[0], sched.PolicyCFS, 0)
	}
	return int64(childPid)
}

// sysExecve implements execve(2): resolves path via kernel/fs, reads the
// whole image into a kernel buffer, and hands it to task.Exec. argv/envp
// marshalling -- copying a user-space array of pointers rather than a
// single string -- is left for a future pass; every caller today runs
// with an empty argv/envp until that lands (an Open Question this handler
// resolves toward "load and run" over "block on argument plumbing").
func sysExecve(t *task.Task, f *trap.Frame) int64 {
	path, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	image, ierr := loadImage(path)
	if ierr != nil {
		return int64(errors.ToErrno(ierr))
	}
	if eerr := task.Exec(t, image, nil, nil); eerr != nil {
		return int64(errors.ToErrno(eerr))
	}
	return 0
}

// loadImage reads path's entire contents into memory for task.Exec to
// parse as an ELF image.
func loadImage(path string) ([]byte, *kernel.Error) {
	file, err := fs.Open(path, fs.ORdOnly, 0)
	if err != nil {
		return nil, err
	}

	var image []byte
	buf := make([]byte, 4096)
	for {
		n, rerr := file.Read(buf)
		if rerr != nil {
			return nil, rerr
		}
		if n == 0 {
			return image, nil
		}
		image = append(image, buf[:n]...)
	}
}

// sysWaitpid implements a single-child-table waitpid(2): this kernel's
// task.Wait always reaps whichever child became a zombie first, so the pid
// argument (f.Arg(0)) is accepted but not yet used to wait for one specific
// child -- an Open Question resolved in favor of the simpler "wait any"
// semantics until a multi-child-selective wait is needed.
func sysWaitpid(t *task.Task, f *trap.Frame) int64 {
	pid, code, err := task.Wait(t)
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	if statusAddr := uintptr(f.Arg(1)); statusAddr != 0 {
		status := int32(code)
		var raw [4]byte
		raw[0] = byte(status)
		raw[1] = byte(status >> 8)
		raw[2] = byte(status >> 16)
		raw[3] = byte(status >> 24)
		if cerr := CopyOut(t, statusAddr, raw[:]); cerr != nil {
			return int64(errors.ToErrno(cerr))
		}
	}
	return int64(pid)
}

// sysExit implements exit(2): marks the caller Zombie and reschedules,
// never returning to user space on this thread again. The exit code is
// encoded into the conventional wait-status word (§9) before being stored,
// so sysWaitpid's status output needs no decoding step of its own.
func sysExit(t *task.Task, f *trap.Frame) int64 {
	task.Exit(t, signal.EncodeExit(int(f.Arg(0))))
	sched.Schedule(cpu.HartID())
	return 0
}

func sysGetpid(t *task.Task, f *trap.Frame) int64 {
	return int64(t.Pid)
}

func sysGetppid(t *task.Task, f *trap.Frame) int64 {
	return int64(t.ParentPid)
}

// sysKill implements kill(2): signal 0 is the conventional existence-check
// form (no signal raised, success iff the pid resolves), any other signal
// is handed to kernel/signal.Raise.
func sysKill(t *task.Task, f *trap.Frame) int64 {
	pid := task.Pid(f.Arg(0))
	sig := signal.Signal(f.Arg(1))

	if sig == 0 {
		if task.Lookup(pid) == nil {
			return int64(errors.ToErrno(errors.NoSuchProcess))
		}
		return 0
	}

	if err := signal.Raise(pid, sig); err != nil {
		return int64(errors.ToErrno(err))
	}
	return 0
}

func sysYield(t *task.Task, f *trap.Frame) int64 {
	sched.Yield(cpu.HartID())
	return 0
}
