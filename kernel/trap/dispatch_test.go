package trap

import "testing"

func resetHandlers(t *testing.T) {
	origSyscall, origTimer, origSoftware := syscallHandler, timerHandler, softwareHandler
	syscallHandler, timerHandler, softwareHandler = nil, nil, nil
	t.Cleanup(func() {
		syscallHandler, timerHandler, softwareHandler = origSyscall, origTimer, origSoftware
	})
}

func TestFrameArg(t *testing.T) {
	f := &Frame{A0: 1, A1: 2, A2: 3, A3: 4, A4: 5, A5: 6}
	for i, want := range []uint64{1, 2, 3, 4, 5, 6} {
		if got := f.Arg(i); got != want {
			t.Errorf("Arg(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestFrameArgOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Arg(6) did not panic")
		}
	}()
	(&Frame{}).Arg(6)
}

func TestFrameSetReturn(t *testing.T) {
	f := &Frame{}
	f.SetReturn(-14)
	if int64(f.A0) != -14 {
		t.Errorf("A0 = %d, want -14", int64(f.A0))
	}
}

func TestDispatchRoutesEcallToSyscallHandler(t *testing.T) {
	resetHandlers(t)

	var called bool
	var gotSepc uint64
	SetSyscallHandler(func(f *Frame) {
		called = true
		gotSepc = f.Sepc
	})

	f := &Frame{Sepc: 0x1000, Scause: uint64(ExcEcallFromU)}
	Dispatch(f)

	if !called {
		t.Fatal("syscall handler was not invoked")
	}
	if gotSepc != 0x1004 {
		t.Errorf("handler saw Sepc = %x, want 0x1004 (post-ecall advance)", gotSepc)
	}
	if f.Sepc != 0x1004 {
		t.Errorf("Sepc = %x, want 0x1004", f.Sepc)
	}
}

func TestDispatchEcallWithNoHandlerIsFatal(t *testing.T) {
	resetHandlers(t)

	defer func() {
		if recover() == nil {
			t.Fatal("Dispatch did not panic with no syscall handler registered")
		}
	}()
	Dispatch(&Frame{Scause: uint64(ExcEcallFromU)})
}

func TestDispatchRoutesTimerInterrupt(t *testing.T) {
	resetHandlers(t)

	var called bool
	SetTimerHandler(func() { called = true })

	Dispatch(&Frame{Scause: uint64(causeInterruptBit | IntSupervisorTimer)})

	if !called {
		t.Fatal("timer handler was not invoked")
	}
}

func TestDispatchRoutesSoftwareInterrupt(t *testing.T) {
	resetHandlers(t)

	var called bool
	SetSoftwareInterruptHandler(func() { called = true })

	Dispatch(&Frame{Scause: uint64(causeInterruptBit | IntSupervisorSoftware)})

	if !called {
		t.Fatal("software interrupt handler was not invoked")
	}
}

func TestDispatchExternalInterruptIsANoOpWithoutAHandler(t *testing.T) {
	resetHandlers(t)

	// Must not panic: PLIC claim/complete is a board collaborator's job,
	// not the core trap path's (§6 Non-goals).
	Dispatch(&Frame{Scause: uint64(causeInterruptBit | IntSupervisorExternal)})
}

func TestDispatchUnhandledExceptionIsFatal(t *testing.T) {
	resetHandlers(t)

	defer func() {
		if recover() == nil {
			t.Fatal("Dispatch did not panic on an unrecognized exception cause")
		}
	}()
	Dispatch(&Frame{Scause: uint64(ExcIllegalInstruction)})
}
