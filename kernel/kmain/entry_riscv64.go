package kmain

// secondaryEntryAddr returns the physical address of the compiled
// secondary-HART entry stub: a small assembly preamble, one per
// non-bootstrap HART, that sets up a private boot stack and sscratch value
// and then jumps straight into SecondaryMain -- the same role the
// bootstrap HART's own firmware-invoked entry stub plays for Kmain.
// Implemented in arch-specific assembly and declared here without a body,
// following the same pattern kernel/trap and kernel/signal use for their
// own fixed trampolines.
func secondaryEntryAddr() uintptr
