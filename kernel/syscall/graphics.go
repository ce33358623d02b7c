package syscall

import (
	"rvkernel/kernel/errors"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// Graphics-domain handlers are permanent ENOSYS stubs: a concrete VirtIO GPU
// driver is an external collaborator out of this kernel core's scope (see
// the Non-goals). They are numbered here only so user-space code probing
// for framebuffer support gets a well-defined "not supported" rather than
// an undefined trap.
func init() {
	register(SysFBInfo, sysUnimplementedGraphics)
	register(SysFBFlush, sysUnimplementedGraphics)
}

func sysUnimplementedGraphics(t *task.Task, f *trap.Frame) int64 {
	return int64(errors.ToErrno(errors.Unsupported))
}
