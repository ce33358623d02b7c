package task

// switchContext saves the caller's Context into from, restores to, and
// returns into the restored thread (§4.6: "saves the callee-saved register
// set ... loads the next thread's context, switches kernel stack
// pointer"). Paging is switched separately, by the caller, only when the
// two threads' address spaces differ. Implemented in arch-specific
// assembly and declared here without a body, following the same pattern
// the rest of the kernel uses for anything that cannot be expressed in
// portable Go.
func switchContext(from, to *Context)

// SwitchContext is switchContext's exported form, called by kernel/sched
// at every scheduling point. Kept as a thin wrapper rather than exporting
// switchContext itself so every other file in this package keeps using the
// unexported name internally.
func SwitchContext(from, to *Context) {
	switchContext(from, to)
}
