package ipc

import (
	"testing"

	"rvkernel/kernel/errors"
)

func TestDatagramSocketPreservesMessageBoundaries(t *testing.T) {
	d := NewDatagramSocket()
	d.Write(nil, []byte("abc"))
	d.Write(nil, []byte("de"))

	buf := make([]byte, 10)
	n, err := d.Read(nil, buf)
	if err != nil || string(buf[:n]) != "abc" {
		t.Fatalf("first Read() = (%q, %v), want (\"abc\", nil)", buf[:n], err)
	}
	n, err = d.Read(nil, buf)
	if err != nil || string(buf[:n]) != "de" {
		t.Fatalf("second Read() = (%q, %v), want (\"de\", nil)", buf[:n], err)
	}
}

func TestDatagramSocketTruncatesToShortBuffer(t *testing.T) {
	d := NewDatagramSocket()
	d.Write(nil, []byte("abcdef"))

	buf := make([]byte, 3)
	n, err := d.Read(nil, buf)
	if err != nil || string(buf[:n]) != "abc" {
		t.Fatalf("Read() into short buffer = (%q, %v), want (\"abc\", nil)", buf[:n], err)
	}
}

func TestDatagramSocketReadAfterWriterClosedReturnsEOF(t *testing.T) {
	d := NewDatagramSocket()
	d.CloseWriter()

	n, err := d.Read(nil, make([]byte, 4))
	if err != nil || n != 0 {
		t.Errorf("Read() after CloseWriter = (%d, %v), want (0, nil)", n, err)
	}
}

func TestDatagramSocketWriteAfterReaderClosedReturnsBrokenPipe(t *testing.T) {
	d := NewDatagramSocket()
	d.CloseReader()

	if _, err := d.Write(nil, []byte("x")); err != errors.BrokenPipe {
		t.Errorf("Write() after CloseReader = %v, want BrokenPipe", err)
	}
}

func TestDatagramListenerAcceptCrossWiresEndpoints(t *testing.T) {
	l := NewDatagramListener(1)
	pc := &pendingDatagramConn{}
	l.pending = append(l.pending, pc)

	serverConn, err := l.Accept(nil)
	if err != nil {
		t.Fatalf("Accept() = %v", err)
	}
	clientConn := pc.conn

	clientConn.Write(nil, []byte("ping"))
	buf := make([]byte, 8)
	n, err := serverConn.Read(nil, buf)
	if err != nil || string(buf[:n]) != "ping" {
		t.Fatalf("serverConn.Read() = (%q, %v), want (\"ping\", nil)", buf[:n], err)
	}
}
