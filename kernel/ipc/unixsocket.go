package ipc

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sync"
)

// Conn is one connected UNIX-domain socket endpoint: a pair of pipe-like
// buffers, one per direction (§4.10: "a connected pair of endpoints
// sharing two pipe-like buffers (one per direction)").
type Conn struct {
	In  *Pipe // reads come from here
	Out *Pipe // writes go here
}

// Read reads from this endpoint's inbound buffer.
func (c *Conn) Read(w sync.Waiter, buf []byte) (int, *kernel.Error) {
	return c.In.Read(w, buf)
}

// Write writes to this endpoint's outbound buffer.
func (c *Conn) Write(w sync.Waiter, buf []byte) (int, *kernel.Error) {
	return c.Out.Write(w, buf)
}

// Close releases this endpoint's reference to both directions, unblocking
// whatever the peer is doing against them.
func (c *Conn) Close() {
	c.In.CloseWriter()
	c.Out.CloseReader()
}

// NewConnPair builds two already-connected endpoints directly, without a
// Listener in between -- the shape socketpair(2) needs, where both
// descriptors come back to the same caller with no connect/accept
// handshake at all.
func NewConnPair() (*Conn, *Conn) {
	a := NewPipe()
	b := NewPipe()
	return &Conn{In: a, Out: b}, &Conn{In: b, Out: a}
}

type pendingConn struct {
	conn  *Conn
	ready bool
}

// Listener is a path-bound listening socket (§4.10: "path-bound inode in
// the VFS"); this package leaves binding the Listener to a name to
// whatever syscall registers it (kernel/syscall's sysBind keeps listeners
// in a name table, not in VFS inodes) and only implements the
// connect/accept queueing itself.
type Listener struct {
	lock           sync.Spinlock
	backlog        int
	pending        []*pendingConn
	acceptWaiters  sync.WaitQueue
	connectWaiters sync.WaitQueue
}

// NewListener creates a listening socket with room for backlog pending
// connections. Once backlog connections are pending, Connect fails
// immediately with errors.WouldBlock instead of blocking; a backlog of 0
// or less sets no bound.
func NewListener(backlog int) *Listener {
	return &Listener{backlog: backlog}
}

// Connect enqueues a pending connection and blocks until some Accept call
// dequeues it, returning the client's connected endpoint (§4.10: "connect
// locates the listener, enqueues a pending connection, and blocks").
func (l *Listener) Connect(w sync.Waiter) (*Conn, *kernel.Error) {
	pc := &pendingConn{}

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

// Accept dequeues one pending connection and returns the server's
// connected endpoint, blocking while none are pending (§4.10: "accept
// dequeues one and returns a connected pair of endpoints").
func (l *Listener) Accept(w sync.Waiter) (*Conn, *kernel.Error) {
	for {
		l.lock.Acquire()
		if len(l.pending) > 0 {
			pc := l.pending[0]
			l.pending = l.pending[1:]
			l.lock.Release()

			clientToServer := NewPipe()
			serverToClient := NewPipe()
			serverConn := &Conn{In: clientToServer, Out: serverToClient}
			pc.conn = &Conn{In: serverToClient, Out: clientToServer}
			pc.ready = true
			l.connectWaiters.WakeAll()
			return serverConn, nil
		}
		l.lock.Release()
		l.acceptWaiters.Wait(w)
	}
}
