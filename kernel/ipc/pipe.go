// Package ipc implements pipes and UNIX-domain sockets as inode-backed
// objects (§4.10). There is no teacher precedent (gopher-os never grew
// IPC), so the ring-buffer/wait-queue shape is grounded directly on
// spec.md §4.10 and wired through the same kernel/sync primitives
// kernel/fs and kernel/sched already build on: a Spinlock guarding the
// buffer, one WaitQueue per direction.
package ipc

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sync"
)

// PipeCapacity is the ring buffer's power-of-two capacity (§4.10: "a
// bounded ring buffer (power-of-two capacity)").
const PipeCapacity = 4096

// Pipe is one pipe(2) pair's shared buffer. Both ends hold a pointer to
// the same Pipe; ReaderEnd/WriterEnd close their own half independently.
type Pipe struct {
	lock sync.Spinlock
	buf  [PipeCapacity]byte
	head int // next byte to read
	tail int // next byte to write
	size int // bytes currently buffered

	readers int
	writers int

	readWaiters  sync.WaitQueue
	writeWaiters sync.WaitQueue
}

// NewPipe creates a pipe with one reader and one writer reference, the
// state pipe(2) hands back as a connected pair.
func NewPipe() *Pipe {
	return &Pipe{readers: 1, writers: 1}
}

// CloseReader drops this Pipe's one reader reference. Once it reaches
// zero, a blocked Write unblocks and reports errors.BrokenPipe (§4.10).
func (p *Pipe) CloseReader() {
	p.lock.Acquire()
	p.readers--
	p.lock.Release()
	p.writeWaiters.WakeAll()
}

// CloseWriter drops this Pipe's one writer reference. Once it reaches
// zero, a blocked Read returns 0 (EOF) per §4.10.
func (p *Pipe) CloseWriter() {
	p.lock.Acquire()
	p.writers--
	p.lock.Release()
	p.readWaiters.WakeAll()
}

// Read copies up to len(buf) bytes out of the ring buffer, blocking the
// caller (via the read wait queue) while the pipe is empty and at least
// one writer remains open; returns (0, nil) once every writer has closed
// (§4.10: "read blocks when empty unless all write-ends are closed (then
// returns 0)").
func (p *Pipe) Read(w sync.Waiter, buf []byte) (int, *kernel.Error) {
	for {
		p.lock.Acquire()
		if p.size > 0 {
			n := p.readLocked(buf)
			p.lock.Release()
			p.writeWaiters.Wake()
			return n, nil
		}
		if p.writers == 0 {
			p.lock.Release()
			return 0, nil
		}
		p.lock.Release()
		p.readWaiters.Wait(w)
	}
}

func (p *Pipe) readLocked(buf []byte) int {
	n := len(buf)
	if n > p.size {
		n = p.size
	}
	for i := 0; i < n; i++ {
		buf[i] = p.buf[p.head]
		p.head = (p.head + 1) % PipeCapacity
	}
	p.size -= n
	return n
}

// Write copies buf into the ring buffer, blocking while it is full and at
// least one reader remains open; a partial write is permitted once at
// least one byte can be delivered (§4.10). Once every reader has closed,
// Write reports errors.BrokenPipe instead of blocking. This package raises
// no signal; kernel/syscall's sysWrite raises SIGPIPE on BrokenPipe.
func (p *Pipe) Write(w sync.Waiter, buf []byte) (int, *kernel.Error) {
	total := 0
	for total < len(buf) {
		p.lock.Acquire()
		if p.readers == 0 {
			p.lock.Release()
			if total > 0 {
				return total, nil
			}
			return 0, errors.BrokenPipe
		}
		free := PipeCapacity - p.size
		if free == 0 {
			p.lock.Release()
			p.writeWaiters.Wait(w)
			continue
		}
		n := len(buf) - total
		if n > free {
			n = free
		}
		for i := 0; i < n; i++ {
			p.buf[p.tail] = buf[total+i]
			p.tail = (p.tail + 1) % PipeCapacity
		}
		p.size += n
		total += n
		p.lock.Release()
		p.readWaiters.Wake()
	}
	return total, nil
}
