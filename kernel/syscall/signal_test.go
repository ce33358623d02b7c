package syscall

import (
	"testing"

	"rvkernel/kernel/errors"
	"rvkernel/kernel/signal"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// sysPause's genuinely-blocking path (no signal pending yet) is excluded
// for the usual kernel/sync.WaitQueue.Wait reason: with no scheduler hooks
// installed in a hosted test binary, blockFn is nil and Wait never parks,
// so it would spin forever. The already-pending case below returns
// immediately and is safe to exercise.

func TestSysSigactionInstallsAHandler(t *testing.T) {
	tk := task.NewInit(nil)
	got := sysSigaction(tk, &trap.Frame{A0: uint64(signal.SIGUSR1), A1: 0x5000, A2: 1})
	if got != 0 {
		t.Fatalf("sysSigaction() = %d, want 0", got)
	}
	disp := signal.GetDisposition(tk.Pid, signal.SIGUSR1)
	if disp.Kind != signal.DispositionHandler || disp.Handler != 0x5000 || disp.Flags != 1 {
		t.Errorf("GetDisposition() = %+v, want handler 0x5000 flags 1", disp)
	}
}

func TestSysSigactionSIGDFLAndSIGIGN(t *testing.T) {
	tk := task.NewInit(nil)
	sysSigaction(tk, &trap.Frame{A0: uint64(signal.SIGUSR1), A1: 1})
	if got := signal.GetDisposition(tk.Pid, signal.SIGUSR1).Kind; got != signal.DispositionIgnore {
		t.Errorf("disposition after A1=1 = %v, want DispositionIgnore", got)
	}

	sysSigaction(tk, &trap.Frame{A0: uint64(signal.SIGUSR1), A1: 0})
	if got := signal.GetDisposition(tk.Pid, signal.SIGUSR1).Kind; got != signal.DispositionDefault {
		t.Errorf("disposition after A1=0 = %v, want DispositionDefault", got)
	}
}

func TestSysSigactionRejectsSIGKILL(t *testing.T) {
	tk := task.NewInit(nil)
	got := sysSigaction(tk, &trap.Frame{A0: uint64(signal.SIGKILL), A1: 1})
	want := int64(errors.ToErrno(errors.InvalidArgument))
	if got != want {
		t.Errorf("sysSigaction(SIGKILL) = %d, want %d", got, want)
	}
}

func TestSysSigprocmaskAppliesTheRequestedMask(t *testing.T) {
	tk := task.NewInit(nil)
	got := sysSigprocmask(tk, &trap.Frame{A0: uint64(signal.SigSetmask), A1: uint64(1 << (signal.SIGUSR1 - 1))})
	if got != 0 {
		t.Fatalf("sysSigprocmask() = %d, want 0", got)
	}
	signal.Raise(tk.Pid, signal.SIGUSR1)
	f := &trap.Frame{}
	signal.CheckPending(tk, f)
	if f.Sepc != 0 {
		t.Error("a signal blocked via sysSigprocmask was still delivered")
	}
}

func TestSysSigreturnRestoresTheSavedFrame(t *testing.T) {
	tk := task.NewInit(nil)
	sysSigaction(tk, &trap.Frame{A0: uint64(signal.SIGUSR1), A1: 0x9000})
	signal.Raise(tk.Pid, signal.SIGUSR1)

	f := &trap.Frame{A0: 42, Sepc: 0x1000}
	signal.CheckPending(tk, f)
	if f.Sepc != 0x9000 {
		t.Fatalf("signal.CheckPending() did not redirect to the handler")
	}

	sysSigreturn(tk, f)
	if f.A0 != 42 || f.Sepc != 0x1000 {
		t.Errorf("sysSigreturn() did not restore the pre-dispatch frame: a0=%d sepc=%#x", f.A0, f.Sepc)
	}
}

func TestSysSigreturnWithNoActiveHandlerReturnsEINVAL(t *testing.T) {
	tk := task.NewInit(nil)
	got := sysSigreturn(tk, &trap.Frame{})
	want := int64(errors.ToErrno(errors.InvalidArgument))
	if got != want {
		t.Errorf("sysSigreturn() = %d, want %d", got, want)
	}
}

func TestSysPauseReturnsImmediatelyWhenAlreadyPending(t *testing.T) {
	tk := task.NewInit(nil)
	signal.Raise(tk.Pid, signal.SIGUSR1)

	got := sysPause(tk, &trap.Frame{})
	want := int64(errors.ToErrno(errors.Interrupted))
	if got != want {
		t.Errorf("sysPause() = %d, want %d", got, want)
	}
}
