package task

import (
	"bytes"
	"debug/elf"
	"rvkernel/kernel"
	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/trap"
)

const (
	// userStackPages is the number of pages reserved for a freshly exec'd
	// thread's initial stack.
	userStackPages = 8

	// userStackTop is the fixed virtual address every exec'd process's
	// stack starts immediately below. Chosen well clear of any ELF
	// segment FromELF maps (those come from the image's own, typically
	// low, link addresses) and well below the kernel's own canonical
	// upper-half reservations (§4.4), so the two never collide.
	userStackTop = uintptr(0x0000_003f_ff00_0000)
)

// ResetSignalDispositionsFn resets a task's signal disposition table to
// default while preserving its blocked mask (§4.6, §4.10). kernel/signal
// registers the real implementation via SetSignalResetHook; nil until
// then, in which case Exec simply carries no signal state to reset yet.
type ResetSignalDispositionsFn func(t *Task)

var resetSignalDispositions ResetSignalDispositionsFn

// SetSignalResetHook wires Exec to kernel/signal's disposition reset.
func SetSignalResetHook(fn ResetSignalDispositionsFn) {
	resetSignalDispositions = fn
}

// CopySignalDispositionsFn copies a parent's signal disposition table and
// blocked mask onto a freshly forked child (§4.6: "copies signal
// dispositions"). kernel/signal registers the real implementation via
// SetSignalForkHook; nil until then, in which case Fork simply carries no
// signal state over to the child yet.
type CopySignalDispositionsFn func(parent, child *Task)

var copySignalDispositions CopySignalDispositionsFn

// SetSignalForkHook wires Fork to kernel/signal's disposition/mask copy.
func SetSignalForkHook(fn CopySignalDispositionsFn) {
	copySignalDispositions = fn
}

// Exec replaces t's address space with one built from image and sets up
// its primary thread's initial user stack and entry point (§4.6): argv and
// envp are copied onto a fresh stack below userStackTop, close-on-exec
// file descriptors are discarded, and (once kernel/signal is wired in)
// dispositions reset to default while the blocked mask survives.
func Exec(t *Task, image []byte, argv, envp []string) *kernel.Error {
	newAS, err := vmm.FromELF(image)
	if err != nil {
		return err
	}

	entry, err := entryPointOf(image)
	if err != nil {
		return err
	}

	sp, err := layoutInitialStack(newAS, argv, envp)
	if err != nil {
		return err
	}

	t.lock.Acquire()
	t.AddressSpace = newAS
	t.Files = discardOnExec(t.Files)
	t.lock.Release()

	if resetSignalDispositions != nil {
		resetSignalDispositions(t)
	}

	frame := &trap.Frame{Sepc: uint64(entry), SP: uint64(sp)}
	t.Threads[0].TrapFrame = frame
	return nil
}

func discardOnExec(files []*FileDescriptor) []*FileDescriptor {
	kept := make([]*FileDescriptor, len(files))
	for i, fd := range files {
		if fd == nil || fd.CloseOnExec {
			continue
		}
		kept[i] = fd
	}
	return kept
}

var errMalformedImage = &kernel.Error{Module: "task", Message: "malformed or unsupported ELF image"}

func entryPointOf(image []byte) (uintptr, *kernel.Error) {
	f, ferr := elf.NewFile(bytes.NewReader(image))
	if ferr != nil {
		return 0, errMalformedImage
	}
	return uintptr(f.Entry), nil
}
