package syscall

import (
	"rvkernel/kernel/errors"
	"rvkernel/kernel/ipc"
	"rvkernel/kernel/sync"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// IPC-domain handlers implement UNIX-domain sockets over kernel/ipc's
// Listener/Conn types. Path-bound listeners live in a simple name
// registry here rather than as real VFS inodes (§4.9's mount/inode
// machinery has no notion of a socket-typed inode yet); SPEC_FULL.md names
// "path-bound inode in the VFS" as the eventual shape, and replacing this
// registry with a devfs-style inode lookup is a drop-in change once
// kernel/fs grows a socket InodeOps.
func init() {
	register(SysSocketpair, sysSocketpair)
	register(SysBind, sysBind)
	register(SysConnect, sysConnect)
	register(SysAccept, sysAccept)
	register(SysSend, sysSend)
	register(SysRecv, sysRecv)
}

var (
	listenerLock sync.Spinlock
	listeners    = map[string]*ipc.Listener{}
)

const socketListenerBacklog = 16

// sysSocketpair creates a connected pair of endpoints directly, with no
// path or handshake involved -- socketpair(2)'s own contract.
func sysSocketpair(t *task.Task, f *trap.Frame) int64 {
	a, b := ipc.NewConnPair()
	fd0 := allocFd(t, a)
	fd1 := allocFd(t, b)

	var raw [8]byte
	putUint32LE(raw[0:4], uint32(fd0))
	putUint32LE(raw[4:8], uint32(fd1))
	if cerr := CopyOut(t, uintptr(f.Arg(0)), raw[:]); cerr != nil {
		return int64(errors.ToErrno(cerr))
	}
	return 0
}

// sysBind registers a new listening socket under the given name, failing
// with errors.AlreadyExists if one is already bound there (mirroring
// bind(2)'s EADDRINUSE). There is no separate listen(2) number in this
// ABI (§6's enumeration names bind/connect/accept/send/recv, not listen),
// so bind immediately makes the socket acceptable.
func sysBind(t *task.Task, f *trap.Frame) int64 {
	name, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}

	listenerLock.Acquire()
	defer listenerLock.Release()
	if _, exists := listeners[name]; exists {
		return int64(errors.ToErrno(errors.AlreadyExists))
	}
	listeners[name] = ipc.NewListener(socketListenerBacklog)
	return 0
}

func lookupListener(name string) *ipc.Listener {
	listenerLock.Acquire()
	defer listenerLock.Release()
	return listeners[name]
}

// sysConnect resolves the named listener and blocks until some sysAccept
// call against it completes the handshake.
func sysConnect(t *task.Task, f *trap.Frame) int64 {
	name, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	l := lookupListener(name)
	if l == nil {
		return int64(errors.ToErrno(errors.NotFound))
	}
	conn, cerr := l.Connect(t)
	if cerr != nil {
		return int64(errors.ToErrno(cerr))
	}
	return allocFd(t, conn)
}

// sysAccept resolves the caller's own bound listener (a0 is a user pointer
// to the name sysBind registered it under) and dequeues the next pending
// connection, blocking while none is pending.
func sysAccept(t *task.Task, f *trap.Frame) int64 {
	name, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	l := lookupListener(name)
	if l == nil {
		return int64(errors.ToErrno(errors.NotFound))
	}
	conn, aerr := l.Accept(t)
	if aerr != nil {
		return int64(errors.ToErrno(aerr))
	}
	return allocFd(t, conn)
}

// sysSend and sysRecv are send(2)/recv(2) over an already-connected
// socket fd, identical in shape to sys_write/sys_read but named
// separately since this ABI numbers them in the IPC domain rather than
// the file domain (§6).
func sysSend(t *task.Task, f *trap.Frame) int64 {
	obj := fdObject(t, int64(f.Arg(0)))
	if obj == nil {
		return int64(errors.ToErrno(errors.BadFileDescriptor))
	}
	buf, err := CopyIn(t, uintptr(f.Arg(1)), uintptr(f.Arg(2)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	n, werr := writeTo(t, obj, buf)
	if werr != nil {
		return int64(errors.ToErrno(werr))
	}
	return int64(n)
}

func sysRecv(t *task.Task, f *trap.Frame) int64 {
	addr := uintptr(f.Arg(1))
	length := uintptr(f.Arg(2))
	obj := fdObject(t, int64(f.Arg(0)))
	if obj == nil {
		return int64(errors.ToErrno(errors.BadFileDescriptor))
	}
	if verr := validateUserRange(t, addr, length, true); verr != nil {
		return int64(errors.ToErrno(verr))
	}
	buf := make([]byte, length)
	n, rerr := readFrom(t, obj, buf)
	if rerr != nil {
		return int64(errors.ToErrno(rerr))
	}
	if cerr := CopyOut(t, addr, buf[:n]); cerr != nil {
		return int64(errors.ToErrno(cerr))
	}
	return int64(n)
}
