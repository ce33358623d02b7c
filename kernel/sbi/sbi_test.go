package sbi

import "testing"

func withFakeSBICall(t *testing.T, fake func(ext, fid, arg0, arg1, arg2 uintptr) (uintptr, uintptr)) {
	orig := sbiCallFn
	sbiCallFn = fake
	t.Cleanup(func() { sbiCallFn = orig })
}

func TestPutCharIssuesConsolePutCharExtension(t *testing.T) {
	var gotExt, gotArg0 uintptr
	withFakeSBICall(t, func(ext, fid, arg0, arg1, arg2 uintptr) (uintptr, uintptr) {
		gotExt, gotArg0 = ext, arg0
		return 0, 0
	})

	PutChar('A')

	if gotExt != extConsolePutChar {
		t.Errorf("ext = %#x, want %#x", gotExt, uintptr(extConsolePutChar))
	}
	if gotArg0 != uintptr('A') {
		t.Errorf("arg0 = %d, want %d", gotArg0, uintptr('A'))
	}
}

func TestGetCharReturnsByteOnSuccess(t *testing.T) {
	withFakeSBICall(t, func(ext, fid, arg0, arg1, arg2 uintptr) (uintptr, uintptr) {
		return uintptr('z'), 0
	})

	c, ok := GetChar()
	if !ok || c != 'z' {
		t.Errorf("GetChar() = (%v, %v), want ('z', true)", c, ok)
	}
}

func TestGetCharReturnsFalseWhenNoByteAvailable(t *testing.T) {
	withFakeSBICall(t, func(ext, fid, arg0, arg1, arg2 uintptr) (uintptr, uintptr) {
		return ^uintptr(0), 0 // -1 as uintptr
	})

	_, ok := GetChar()
	if ok {
		t.Error("GetChar() ok = true, want false when the firmware reports no byte")
	}
}

func TestShutdownIssuesShutdownExtension(t *testing.T) {
	var gotExt uintptr
	withFakeSBICall(t, func(ext, fid, arg0, arg1, arg2 uintptr) (uintptr, uintptr) {
		gotExt = ext
		return 0, 0
	})

	Shutdown()

	if gotExt != extShutdown {
		t.Errorf("ext = %#x, want %#x", gotExt, uintptr(extShutdown))
	}
}

func TestSetTimerIssuesSetTimerExtensionWithDeadline(t *testing.T) {
	var gotExt, gotArg0 uintptr
	withFakeSBICall(t, func(ext, fid, arg0, arg1, arg2 uintptr) (uintptr, uintptr) {
		gotExt, gotArg0 = ext, arg0
		return 0, 0
	})

	SetTimer(0x1234)

	if gotExt != extSetTimer {
		t.Errorf("ext = %#x, want %#x", gotExt, uintptr(extSetTimer))
	}
	if gotArg0 != 0x1234 {
		t.Errorf("arg0 = %#x, want %#x", gotArg0, uintptr(0x1234))
	}
}
