package signal

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// Raise marks sig pending against pid's process-wide signal state (§4.10),
// or returns errors.NoSuchProcess if pid names no live task. A signal whose
// disposition is already DispositionIgnore is dropped immediately rather
// than queued -- ignored signals never accumulate, the conventional POSIX
// rule.
func Raise(pid task.Pid, sig Signal) *kernel.Error {
	if task.Lookup(pid) == nil {
		return errors.NoSuchProcess
	}
	if !valid(sig) {
		return errors.InvalidArgument
	}

	s := stateFor(pid)
	s.lock.Acquire()
	ignored := s.Dispositions[sig-1].Kind == DispositionIgnore
	if !ignored {
		s.Pending |= bit(sig)
	}
	s.lock.Release()

	if !ignored {
		s.pendingWaiters.WakeAll()
	}
	return nil
}

// SetDisposition installs d as pid's disposition for sig (sigaction(2)'s
// write half). SIGKILL and SIGSTOP reject any override attempt with
// errors.InvalidArgument -- the two signals POSIX never lets a process
// catch, block or ignore.
func SetDisposition(pid task.Pid, sig Signal, d Disposition) *kernel.Error {
	if !valid(sig) {
		return errors.InvalidArgument
	}
	if sig == SIGKILL || sig == SIGSTOP {
		return errors.InvalidArgument
	}

	s := stateFor(pid)
	s.lock.Acquire()
	s.Dispositions[sig-1] = d
	s.lock.Release()
	return nil
}

// GetDisposition returns pid's current disposition for sig.
func GetDisposition(pid task.Pid, sig Signal) Disposition {
	s := stateFor(pid)
	s.lock.Acquire()
	defer s.lock.Release()
	if !valid(sig) {
		return Disposition{}
	}
	return s.Dispositions[sig-1]
}

// sigprocmask(2)'s how argument, matching the conventional Linux values so
// a libc shim needs no translation.
const (
	SigBlock   = 0
	SigUnblock = 1
	SigSetmask = 2
)

// SetBlockedMask applies how/mask to pid's blocked set (sigprocmask(2)) and
// returns the mask as it stood beforehand. SIGKILL and SIGSTOP's bits are
// always cleared afterward -- blocking either is as meaningless as
// catching them, so masking them is silently dropped rather than rejected
// (sigprocmask has no per-bit error to report, unlike sigaction).
func SetBlockedMask(pid task.Pid, how int, mask uint32) (uint32, *kernel.Error) {
	s := stateFor(pid)
	s.lock.Acquire()
	defer s.lock.Release()

	old := s.Blocked
	switch how {
	case SigBlock:
		s.Blocked |= mask
	case SigUnblock:
		s.Blocked &^= mask
	case SigSetmask:
		s.Blocked = mask
	default:
		return 0, errors.InvalidArgument
	}
	s.Blocked &^= bit(SIGKILL) | bit(SIGSTOP)
	return old, nil
}

// CheckPending is invoked at every syscall return (kernel/syscall's
// Dispatch calls it right after writing the syscall's own result into f.A0,
// the closest this kernel comes to "checked on every trap-return-to-user"
// -- timer/external-interrupt returns don't carry a task reference through
// kernel/trap generically enough to add the same check there too, an Open
// Question resolved toward the syscall-return checkpoint alone since it is
// by far the most frequent one). It delivers at most one signal per call;
// a task with several pending signals sees the rest on its very next
// syscall return.
func CheckPending(t *task.Task, f *trap.Frame) {
	s := stateFor(t.Pid)

	s.lock.Acquire()
	deliverable := s.Pending &^ s.Blocked
	if deliverable == 0 {
		s.lock.Release()
		return
	}

	var sig Signal
	for i := Signal(1); i < NSIG; i++ {
		if deliverable&bit(i) != 0 {
			sig = i
			break
		}
	}
	s.Pending &^= bit(sig)
	disp := s.Dispositions[sig-1]
	s.lock.Release()

	switch disp.Kind {
	case DispositionIgnore:
		return
	case DispositionHandler:
		dispatchToHandler(t, f, sig, disp)
	default:
		applyDefault(t, sig)
	}
}

// dispatchToHandler redirects the about-to-resume user context to sig's
// handler: the frame that was live at delivery time (already carrying
// whatever syscall return value f.SetReturn wrote) is stashed for
// sigreturn, and f itself is rewritten so trap-return lands in the
// handler with the signal number in a0 and the sigreturn trampoline's
// fixed address as its return address. No siginfo/ucontext is staged on
// the user stack (see Disposition's doc comment); nothing here touches
// user memory, so unlike most of kernel/syscall's handlers this path has
// no raw-pointer-dereference wall blocking it from being tested directly.
func dispatchToHandler(t *task.Task, f *trap.Frame, sig Signal, disp Disposition) {
	s := stateFor(t.Pid)

	saved := *f
	s.lock.Acquire()
	s.SavedFrame = &saved
	s.lock.Release()

	f.A0 = uint64(sig)
	f.RA = uint64(vmm.SigreturnTrampolineAddr)
	f.Sepc = uint64(disp.Handler)
}

// Sigreturn restores the frame saved at the most recent dispatchToHandler
// call for t, implementing sigreturn(2) (§9: "restores the exact trap frame
// saved at delivery; thread resumes at the interrupted instruction").
// Returns errors.InvalidArgument if called while no handler is active.
func Sigreturn(t *task.Task, f *trap.Frame) *kernel.Error {
	s := stateFor(t.Pid)
	s.lock.Acquire()
	saved := s.SavedFrame
	s.SavedFrame = nil
	s.lock.Release()

	if saved == nil {
		return errors.InvalidArgument
	}
	*f = *saved
	return nil
}

// applyDefault carries out sig's default disposition (§4.10's POSIX table)
// when the process hasn't installed a handler or explicit ignore for it.
// Stop/continue are accepted but have no observable effect beyond
// consuming the pending bit: this kernel's ThreadState has no Stopped
// member, and adding one ripples into the scheduler's Ready/Blocked
// bookkeeping for a job-control feature nothing else here exercises (an
// Open Question resolved toward leaving job control unimplemented).
func applyDefault(t *task.Task, sig Signal) {
	switch DefaultCategory(sig) {
	case CategoryTerm:
		task.Exit(t, encodeTerminated(sig, false))
	case CategoryCore:
		task.Exit(t, encodeTerminated(sig, true))
	}
}

// encodeTerminated builds the wait-status word for a process killed by sig
// (§9: "encoding the signal number and core-dump flag"): the signal number
// in the low 7 bits, the core-dump flag in bit 7 -- the conventional
// wait(2) status layout, mirrored here so a user-space wait() shim needs no
// kernel-specific decoding.
func encodeTerminated(sig Signal, coreDump bool) int {
	status := int(sig) & 0x7f
	if coreDump {
		status |= 0x80
	}
	return status
}

// EncodeExit builds the wait-status word for a process that exited
// normally with the given 8-bit code (§9: "on graceful exit, it encodes the
// 8-bit exit code"), used by kernel/syscall's sys_exit.
func EncodeExit(code int) int {
	return (code & 0xff) << 8
}

// WaitForAny blocks the caller until its own process has at least one
// pending signal (pause(2)'s contract, §4.10/§9), looping the same way
// task.Wait does since WakeAll fires on every Raise and an unrelated
// signal's arrival could otherwise wake this call spuriously for a signal
// that's since been delivered and cleared by the time it re-checks.
func WaitForAny(t *task.Task) {
	s := stateFor(t.Pid)
	for {
		s.lock.Acquire()
		pending := s.Pending
		s.lock.Release()
		if pending != 0 {
			return
		}
		s.pendingWaiters.Wait(t)
	}
}
