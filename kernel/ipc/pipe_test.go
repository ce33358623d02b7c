package ipc

import (
	"testing"

	"rvkernel/kernel/errors"
)

// These tests exercise only the non-blocking paths: kernel/sync.WaitQueue's
// Wait is a no-op until kernel/sched installs real scheduler hooks via
// SetSchedulerHooks, so a scenario that actually needs to block (empty pipe,
// no writer yet; full pipe, no reader draining it) would busy-spin forever
// in a hosted test rather than park. The same limitation applies to
// kernel/syscall's uaccess tests for the analogous reason.

func TestPipeWriteThenReadRoundTrips(t *testing.T) {
	p := NewPipe()
	n, err := p.Write(nil, []byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write() = (%d, %v), want (5, nil)", n, err)
	}

	buf := make([]byte, 5)
	n, err = p.Read(nil, buf)
	if err != nil || string(buf[:n]) != "hello" {
		t.Errorf("Read() = (%q, %v), want (\"hello\", nil)", buf[:n], err)
	}
}

func TestPipeReadReturnsPartialBufferedData(t *testing.T) {
	p := NewPipe()
	p.Write(nil, []byte("abc"))

	buf := make([]byte, 10)
	n, err := p.Read(nil, buf)
	if err != nil || n != 3 {
		t.Fatalf("Read() = (%d, %v), want (3, nil)", n, err)
	}
}

func TestPipeReadAfterWriterClosedReturnsEOF(t *testing.T) {
	p := NewPipe()
	p.CloseWriter()

	n, err := p.Read(nil, make([]byte, 4))
	if err != nil || n != 0 {
		t.Errorf("Read() after CloseWriter = (%d, %v), want (0, nil)", n, err)
	}
}

func TestPipeWriteAfterReaderClosedReturnsBrokenPipe(t *testing.T) {
	p := NewPipe()
	p.CloseReader()

	_, err := p.Write(nil, []byte("x"))
	if err != errors.BrokenPipe {
		t.Errorf("Write() after CloseReader = %v, want BrokenPipe", err)
	}
}

func TestPipeWriteFillsWithoutExceedingCapacity(t *testing.T) {
	p := NewPipe()
	data := make([]byte, PipeCapacity)
	n, err := p.Write(nil, data)
	if err != nil || n != PipeCapacity {
		t.Fatalf("Write() full capacity = (%d, %v), want (%d, nil)", n, err, PipeCapacity)
	}
	if p.size != PipeCapacity {
		t.Errorf("p.size = %d, want %d", p.size, PipeCapacity)
	}
}

func TestPipeRingBufferWrapsAround(t *testing.T) {
	p := NewPipe()
	p.Write(nil, make([]byte, PipeCapacity-2))
	p.Read(nil, make([]byte, PipeCapacity-2))

	n, err := p.Write(nil, []byte("wraptest"))
	if err != nil || n != 8 {
		t.Fatalf("Write() after wrap = (%d, %v), want (8, nil)", n, err)
	}
	buf := make([]byte, 8)
	n, err = p.Read(nil, buf)
	if err != nil || string(buf[:n]) != "wraptest" {
		t.Errorf("Read() after wrap = (%q, %v), want (\"wraptest\", nil)", buf[:n], err)
	}
}
