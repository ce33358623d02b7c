package cpu

import "testing"

func TestHartMask(t *testing.T) {
	specs := []struct {
		hartID uint64
		exp    uint64
	}{
		{0, 0x1},
		{3, 0x8},
		{MaxHarts - 1, 1 << (MaxHarts - 1)},
		{MaxHarts, 0},
		{MaxHarts + 10, 0},
	}

	for specIndex, spec := range specs {
		if got := HartMask(spec.hartID); got != spec.exp {
			t.Errorf("[spec %d] expected HartMask(%d) to be 0x%x; got 0x%x", specIndex, spec.hartID, spec.exp, got)
		}
	}
}

func TestBootHartID(t *testing.T) {
	defer func() { bootHartID = 0 }()

	SetBootHartID(2)
	if got := BootHartID(); got != 2 {
		t.Errorf("expected BootHartID() to return 2; got %d", got)
	}
}
