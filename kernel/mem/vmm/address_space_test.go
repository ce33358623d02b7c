package vmm

import (
	"rvkernel/kernel"
	"rvkernel/kernel/mem"
	"testing"
)

func TestVMAFlagToPTEFlags(t *testing.T) {
	specs := []struct {
		name string
		in   VMAFlag
		want PageTableEntryFlag
	}{
		{"read-only", VMARead, FlagRead},
		{"read-write", VMARead | VMAWrite, FlagRead | FlagWrite},
		{"exec", VMARead | VMAExec, FlagRead | FlagExec},
		{"user read-write", VMARead | VMAWrite | VMAUser, FlagRead | FlagWrite | FlagUser},
		{"shared carries no PTE bit of its own", VMARead | VMAShared, FlagRead},
		{"empty", 0, 0},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			if got := spec.in.toPTEFlags(); got != spec.want {
				t.Errorf("toPTEFlags() = %v, want %v", got, spec.want)
			}
		})
	}
}

func TestVMAContains(t *testing.T) {
	v := VMA{Start: 0x1000, End: 0x3000, Flags: VMARead}

	cases := []struct {
		addr uintptr
		want bool
	}{
		{0x0fff, false},
		{0x1000, true},
		{0x2000, true},
		{0x2fff, true},
		{0x3000, false},
	}

	for _, c := range cases {
		if got := v.Contains(c.addr); got != c.want {
			t.Errorf("Contains(0x%x) = %v, want %v", c.addr, got, c.want)
		}
	}
}

func TestVMAForReturnsCoveringVMA(t *testing.T) {
	as := &AddressSpace{}
	as.AddVMA(VMA{Start: 0x1000, End: 0x2000, Flags: VMARead})
	as.AddVMA(VMA{Start: 0x5000, End: 0x6000, Flags: VMARead | VMAWrite})

	got, err := as.VMAFor(0x5400)
	if err != nil {
		t.Fatalf("VMAFor returned unexpected error: %v", err)
	}
	if got.Start != 0x5000 || got.End != 0x6000 {
		t.Errorf("VMAFor returned wrong VMA: %+v", got)
	}
}

func TestVMAForNoMatch(t *testing.T) {
	as := &AddressSpace{}
	as.AddVMA(VMA{Start: 0x1000, End: 0x2000, Flags: VMARead})

	if _, err := as.VMAFor(0x9000); err != errNoVMACoversAddress {
		t.Errorf("VMAFor() error = %v, want errNoVMACoversAddress", err)
	}
}

func TestAddVMAAppendsInOrder(t *testing.T) {
	as := &AddressSpace{}
	as.AddVMA(VMA{Start: 0x1000, End: 0x2000})
	as.AddVMA(VMA{Start: 0x2000, End: 0x3000})

	if len(as.vmas) != 2 {
		t.Fatalf("len(vmas) = %d, want 2", len(as.vmas))
	}
	if as.vmas[0].Start != 0x1000 || as.vmas[1].Start != 0x2000 {
		t.Errorf("vmas recorded out of order: %+v", as.vmas)
	}
}

func TestSetTrampolineFrame(t *testing.T) {
	orig := TrampolineFrame
	defer func() { TrampolineFrame = orig }()

	SetTrampolineFrame(mem.Frame(7))
	if TrampolineFrame != mem.Frame(7) {
		t.Errorf("TrampolineFrame = %v, want 7", TrampolineFrame)
	}
}

func TestSetSigreturnTrampolineFrame(t *testing.T) {
	orig := SigreturnTrampolineFrame
	defer func() { SigreturnTrampolineFrame = orig }()

	SetSigreturnTrampolineFrame(mem.Frame(9))
	if SigreturnTrampolineFrame != mem.Frame(9) {
		t.Errorf("SigreturnTrampolineFrame = %v, want 9", SigreturnTrampolineFrame)
	}
}

func TestNewEmptyPropagatesFrameAllocationFailure(t *testing.T) {
	wantErr := &kernel.Error{Module: "test", Message: "out of frames"}
	mem.SetFrameAllocator(func() (mem.Frame, *kernel.Error) {
		return mem.InvalidFrame, wantErr
	})

	if _, err := NewEmpty(); err != wantErr {
		t.Errorf("NewEmpty() error = %v, want %v", err, wantErr)
	}
}

func TestMapFixedRegionsPropagatesTrapContextFrameFailure(t *testing.T) {
	origTrampoline := TrampolineFrame
	defer func() { TrampolineFrame = origTrampoline }()
	TrampolineFrame = mem.InvalidFrame

	wantErr := &kernel.Error{Module: "test", Message: "out of frames"}
	mem.SetFrameAllocator(func() (mem.Frame, *kernel.Error) {
		return mem.InvalidFrame, wantErr
	})

	as := &AddressSpace{}
	if err := as.mapFixedRegions(); err != wantErr {
		t.Errorf("mapFixedRegions() error = %v, want %v", err, wantErr)
	}
}

func TestFromELFRejectsMalformedImage(t *testing.T) {
	if _, err := FromELF([]byte("not an ELF image")); err != errMalformedELF {
		t.Errorf("FromELF() error = %v, want errMalformedELF", err)
	}
}

// Unmap's page-table walk (pdt.Unmap) touches real hardware state and is
// outside this package's test harness, like the rest of pdt.go's Map/Unmap
// primitives. The cases below only reach paths that never invoke it: an
// address space with nothing mapped, and a range that doesn't overlap any
// recorded VMA.

func TestUnmapOnEmptyAddressSpaceIsNoOp(t *testing.T) {
	as := &AddressSpace{}
	if err := as.Unmap(0x1000, 0x2000); err != nil {
		t.Errorf("Unmap() error = %v, want nil", err)
	}
	if len(as.vmas) != 0 {
		t.Errorf("vmas = %+v, want empty", as.vmas)
	}
}

func TestUnmapLeavesNonOverlappingVMAIntact(t *testing.T) {
	as := &AddressSpace{}
	as.AddVMA(VMA{Start: 0x1000, End: 0x2000, Flags: VMARead})

	if err := as.Unmap(0x5000, 0x6000); err != nil {
		t.Errorf("Unmap() error = %v, want nil", err)
	}
	if len(as.vmas) != 1 || as.vmas[0].Start != 0x1000 || as.vmas[0].End != 0x2000 {
		t.Errorf("vmas = %+v, want the original VMA untouched", as.vmas)
	}
}

func TestVMASliceTrimsFrameListToSubrange(t *testing.T) {
	pageSize := uintptr(mem.PageSize)
	v := VMA{
		Start:  0x1000,
		End:    0x1000 + 4*pageSize,
		Flags:  VMARead | VMAWrite,
		Kind:   VMAKindFramed,
		Frames: []mem.Frame{10, 11, 12, 13},
	}

	got := v.slice(0x1000+pageSize, 0x1000+3*pageSize, pageSize)

	if got.Start != 0x1000+pageSize || got.End != 0x1000+3*pageSize {
		t.Errorf("slice() range = [0x%x, 0x%x), want [0x%x, 0x%x)", got.Start, got.End, 0x1000+pageSize, 0x1000+3*pageSize)
	}
	want := []mem.Frame{11, 12}
	if len(got.Frames) != len(want) || got.Frames[0] != want[0] || got.Frames[1] != want[1] {
		t.Errorf("slice() Frames = %v, want %v", got.Frames, want)
	}
}

func TestVMASliceOnIdentityVMALeavesFramesNil(t *testing.T) {
	v := VMA{Start: 0x1000, End: 0x3000, Kind: VMAKindIdentity}

	got := v.slice(0x1000, 0x2000, uintptr(mem.PageSize))
	if got.Frames != nil {
		t.Errorf("slice() Frames = %v, want nil", got.Frames)
	}
}
