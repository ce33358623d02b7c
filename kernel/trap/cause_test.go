package trap

import "testing"

func TestCauseIsInterrupt(t *testing.T) {
	specs := []struct {
		name string
		c    Cause
		want bool
	}{
		{"timer interrupt", Cause(causeInterruptBit | IntSupervisorTimer), true},
		{"software interrupt", Cause(causeInterruptBit | IntSupervisorSoftware), true},
		{"ecall exception", ExcEcallFromU, false},
		{"page fault exception", ExcLoadPageFault, false},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			if got := spec.c.IsInterrupt(); got != spec.want {
				t.Errorf("IsInterrupt() = %v, want %v", got, spec.want)
			}
		})
	}
}

func TestCauseCodeMasksInterruptBit(t *testing.T) {
	c := Cause(causeInterruptBit | IntSupervisorExternal)
	if got := c.Code(); got != IntSupervisorExternal {
		t.Errorf("Code() = %d, want %d", got, IntSupervisorExternal)
	}
}

func TestCauseCodeOfException(t *testing.T) {
	if got := ExcStorePageFault.Code(); got != 15 {
		t.Errorf("Code() = %d, want 15", got)
	}
}
