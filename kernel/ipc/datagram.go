package ipc

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sync"
)

// DatagramQueueDepth bounds how many undelivered messages a DatagramSocket
// holds (SPEC_FULL.md §C.9: "a bounded queue-of-messages rather than the
// stream pipe's ring buffer").
const DatagramQueueDepth = 64

// DatagramSocket is one direction of a SOCK_DGRAM UNIX-domain pair: a
// bounded FIFO of whole messages, each Read returning exactly one Write's
// worth of bytes regardless of the caller's buffer size -- the ring
// buffer's byte-stream coalescing would destroy message boundaries.
type DatagramSocket struct {
	lock sync.Spinlock
	msgs [][]byte

	readers int
	writers int

	readWaiters  sync.WaitQueue
	writeWaiters sync.WaitQueue
}

// NewDatagramSocket creates one direction of a connected datagram pair.
func NewDatagramSocket() *DatagramSocket {
	return &DatagramSocket{readers: 1, writers: 1}
}

func (d *DatagramSocket) CloseReader() {
	d.lock.Acquire()
	d.readers--
	d.lock.Release()
	d.writeWaiters.WakeAll()
}

func (d *DatagramSocket) CloseWriter() {
	d.lock.Acquire()
	d.writers--
	d.lock.Release()
	d.readWaiters.WakeAll()
}

// Read dequeues the oldest pending message. If buf is shorter than the
// message, the excess is discarded (POSIX's recv(2) datagram-truncation
// behavior) rather than split across two Read calls.
func (d *DatagramSocket) Read(w sync.Waiter, buf []byte) (int, *kernel.Error) {
	for {
		d.lock.Acquire()
		if len(d.msgs) > 0 {
			msg := d.msgs[0]
			d.msgs = d.msgs[1:]
			d.lock.Release()
			n := copy(buf, msg)
			d.writeWaiters.Wake()
			return n, nil
		}
		if d.writers == 0 {
			d.lock.Release()
			return 0, nil
		}
		d.lock.Release()
		d.readWaiters.Wait(w)
	}
}

// Write enqueues buf as a single message, blocking while the queue is full
// and at least one reader remains. Unlike Pipe.Write, a message is never
// split: the whole of buf is enqueued as one unit or none of it is.
func (d *DatagramSocket) Write(w sync.Waiter, buf []byte) (int, *kernel.Error) {
	msg := append([]byte(nil), buf...)
	for {
		d.lock.Acquire()
		if d.readers == 0 {
			d.lock.Release()
			return 0, errors.BrokenPipe
		}
		if len(d.msgs) < DatagramQueueDepth {
			d.msgs = append(d.msgs, msg)
			d.lock.Release()
			d.readWaiters.Wake()
			return len(buf), nil
		}
		d.lock.Release()
		d.writeWaiters.Wait(w)
	}
}

// DatagramConn is a connected SOCK_DGRAM endpoint, mirroring Conn's
// In/Out shape for the stream variant.
type DatagramConn struct {
	In  *DatagramSocket
	Out *DatagramSocket
}

func (c *DatagramConn) Read(w sync.Waiter, buf []byte) (int, *kernel.Error) {
	return c.In.Read(w, buf)
}

func (c *DatagramConn) Write(w sync.Waiter, buf []byte) (int, *kernel.Error) {
	return c.Out.Write(w, buf)
}

func (c *DatagramConn) Close() {
	c.In.CloseWriter()
	c.Out.CloseReader()
}

// DatagramListener parallels Listener for SOCK_DGRAM, handing back connected
// DatagramConn pairs instead of stream Conn pairs.
type DatagramListener struct {
	lock           sync.Spinlock
	backlog        int
	pending        []*pendingDatagramConn
	acceptWaiters  sync.WaitQueue
	connectWaiters sync.WaitQueue
}

type pendingDatagramConn struct {
	conn  *DatagramConn
	ready bool
}

func NewDatagramListener(backlog int) *DatagramListener {
	return &DatagramListener{backlog: backlog}
}

func (l *DatagramListener) Connect(w sync.Waiter) (*DatagramConn, *kernel.Error) {
	pc := &pendingDatagramConn{}

	l.lock.Acquire()
	if len(l.pending) >= l.backlog && l.backlog > 0 {
		l.lock.Release()
		return nil, errors.WouldBlock
	}
	l.pending = append(l.pending, pc)
	l.lock.Release()
	l.acceptWaiters.Wake()

	for {
		l.lock.Acquire()
		ready := pc.ready
		l.lock.Release()
		if ready {
			return pc.conn, nil
		}
		l.connectWaiters.Wait(w)
	}
}

func (l *DatagramListener) Accept(w sync.Waiter) (*DatagramConn, *kernel.Error) {
	for {
		l.lock.Acquire()
		if len(l.pending) > 0 {
			pc := l.pending[0]
			l.pending = l.pending[1:]
			l.lock.Release()

			clientToServer := NewDatagramSocket()
			serverToClient := NewDatagramSocket()
			serverConn := &DatagramConn{In: clientToServer, Out: serverToClient}
			pc.conn = &DatagramConn{In: serverToClient, Out: clientToServer}
			pc.ready = true
			l.connectWaiters.WakeAll()
			return serverConn, nil
		}
		l.lock.Release()
		l.acceptWaiters.Wait(w)
	}
}
