package sync

import "sync/atomic"

// archAcquireSpinlock busy-waits until it swaps state from 0 to 1. After
// attemptsBeforeYielding failed swaps it calls yieldFn (when set) so the
// scheduler can run something else on this HART instead of spinning forever;
// rv64gc's base ISA has no dedicated spin-wait hint, so this is a plain CAS
// loop rather than a PAUSE-style instruction as on amd64.
func archAcquireSpinlock(state *uint32, attemptsBeforeYielding uint32) {
	var attempts uint32
	for !atomic.CompareAndSwapUint32(state, 0, 1) {
		attempts++
		if attempts >= attemptsBeforeYielding {
			attempts = 0
			if yieldFn != nil {
				yieldFn()
			}
		}
	}
}
