package syscall

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/fs"
	"rvkernel/kernel/ipc"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/signal"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// File-domain handlers (§4.9) operate against a Task's fd table
// (t.Files), whose slots this file is the only reader/writer of outside
// kernel/task itself -- kernel/fs and kernel/ipc supply the objects a slot
// holds (*fs.File, *pipeEnd, *ipc.Conn, *ipc.DatagramConn) but never see
// the table.
func init() {
	register(SysOpen, sysOpen)
	register(SysClose, sysClose)
	register(SysRead, sysRead)
	register(SysWrite, sysWrite)
	register(SysLseek, sysLseek)
	register(SysStat, sysStat)
	register(SysMkdir, sysMkdir)
	register(SysUnlink, sysUnlink)
	register(SysRmdir, sysRmdir)
	register(SysRename, sysRename)
	register(SysDup, sysDup)
	register(SysDup2, sysDup2)
	register(SysPipe, sysPipe)
	register(SysMmap, sysMmap)
	register(SysMunmap, sysMunmap)
	register(SysBrk, sysBrk)
	// ioctl/poll have no kernel/fs or kernel/ipc counterpart to wire to:
	// neither spec.md nor SPEC_FULL.md names a device ioctl protocol or a
	// multiplexed-wait primitive, so both stay ENOSYS rather than guessing
	// at a shape nothing downstream needs yet.
	register(SysIoctl, sysUnimplementedFile)
	register(SysPoll, sysUnimplementedFile)
	register(SysFcntl, sysFcntl)
}

func sysUnimplementedFile(t *task.Task, f *trap.Frame) int64 {
	return int64(errors.ToErrno(errors.Unsupported))
}

// pipeEnd restricts a *ipc.Pipe to the single direction one fd of a
// pipe(2) pair is allowed to use; ipc.Pipe itself exposes both Read and
// Write since the two ends share one buffer.
type pipeEnd struct {
	pipe  *ipc.Pipe
	write bool
}

// allocFd installs obj in the first free slot of t's open-file table,
// growing it if none is free (POSIX's "lowest available fd" rule).
func allocFd(t *task.Task, obj interface{}) int64 {
	for i, fd := range t.Files {
		if fd == nil {
			t.Files[i] = &task.FileDescriptor{File: obj}
			return int64(i)
		}
	}
	t.Files = append(t.Files, &task.FileDescriptor{File: obj})
	return int64(len(t.Files) - 1)
}

func fdObject(t *task.Task, fd int64) interface{} {
	if fd < 0 || int(fd) >= len(t.Files) || t.Files[fd] == nil {
		return nil
	}
	return t.Files[fd].File
}

func readFrom(t *task.Task, obj interface{}, buf []byte) (int, *kernel.Error) {
	switch v := obj.(type) {
	case *fs.File:
		return v.Read(buf)
	case *pipeEnd:
		if v.write {
			return 0, errors.BadFileDescriptor
		}
		return v.pipe.Read(t, buf)
	case *ipc.Conn:
		return v.Read(t, buf)
	case *ipc.DatagramConn:
		return v.Read(t, buf)
	default:
		return 0, errors.BadFileDescriptor
	}
}

func writeTo(t *task.Task, obj interface{}, buf []byte) (int, *kernel.Error) {
	switch v := obj.(type) {
	case *fs.File:
		return v.Write(buf)
	case *pipeEnd:
		if !v.write {
			return 0, errors.BadFileDescriptor
		}
		return v.pipe.Write(t, buf)
	case *ipc.Conn:
		return v.Write(t, buf)
	case *ipc.DatagramConn:
		return v.Write(t, buf)
	default:
		return 0, errors.BadFileDescriptor
	}
}

func closeObject(t *task.Task, obj interface{}) {
	switch v := obj.(type) {
	case *fs.File:
		v.Close(int64(t.Pid))
	case *pipeEnd:
		if v.write {
			v.pipe.CloseWriter()
		} else {
			v.pipe.CloseReader()
		}
	case *ipc.Conn:
		v.Close()
	case *ipc.DatagramConn:
		v.Close()
	}
}

func sysOpen(t *task.Task, f *trap.Frame) int64 {
	path, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	file, ferr := fs.Open(path, uint32(f.Arg(1)), uint32(f.Arg(2)))
	if ferr != nil {
		return int64(errors.ToErrno(ferr))
	}
	return allocFd(t, file)
}

func sysClose(t *task.Task, f *trap.Frame) int64 {
	fd := int64(f.Arg(0))
	obj := fdObject(t, fd)
	if obj == nil {
		return int64(errors.ToErrno(errors.BadFileDescriptor))
	}
	closeObject(t, obj)
	t.Files[fd] = nil
	return 0
}

func sysRead(t *task.Task, f *trap.Frame) int64 {
	fd := int64(f.Arg(0))
	addr := uintptr(f.Arg(1))
	length := uintptr(f.Arg(2))
	obj := fdObject(t, fd)
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

func sysWrite(t *task.Task, f *trap.Frame) int64 {
	fd := int64(f.Arg(0))
	obj := fdObject(t, fd)
	if obj == nil {
		return int64(errors.ToErrno(errors.BadFileDescriptor))
	}
	buf, err := CopyIn(t, uintptr(f.Arg(1)), uintptr(f.Arg(2)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	n, werr := writeTo(t, obj, buf)
	if werr != nil {
		if werr == errors.BrokenPipe {
			signal.Raise(t.Pid, signal.SIGPIPE)
		}
		return int64(errors.ToErrno(werr))
	}
	return int64(n)
}

func sysLseek(t *task.Task, f *trap.Frame) int64 {
	fd := int64(f.Arg(0))
	file, ok := fdObject(t, fd).(*fs.File)
	if !ok {
		return int64(errors.ToErrno(errors.BadFileDescriptor))
	}
	pos, err := file.Seek(int64(f.Arg(1)), int(f.Arg(2)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	return pos
}

// statBufSize is the layout sysStat copies out: an 8-byte little-endian
// size, a 4-byte little-endian mode, and a 1-byte type tag, matching the
// fields fs.Inode itself carries (§4.9 doesn't specify a stat(2) struct
// layout, so this one exposes only what the VFS core actually tracks
// rather than padding out a full POSIX struct stat this kernel can't back).
const statBufSize = 16

func sysStat(t *task.Task, f *trap.Frame) int64 {
	path, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	ino, serr := fs.Stat(path)
	if serr != nil {
		return int64(errors.ToErrno(serr))
	}
	var raw [statBufSize]byte
	putUint64LE(raw[0:8], uint64(ino.Size))
	putUint32LE(raw[8:12], ino.Mode)
	raw[12] = byte(ino.Type)
	if cerr := CopyOut(t, uintptr(f.Arg(1)), raw[:]); cerr != nil {
		return int64(errors.ToErrno(cerr))
	}
	return 0
}

func sysMkdir(t *task.Task, f *trap.Frame) int64 {
	path, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	if merr := fs.Mkdir(path, uint32(f.Arg(1))); merr != nil {
		return int64(errors.ToErrno(merr))
	}
	return 0
}

func sysUnlink(t *task.Task, f *trap.Frame) int64 {
	path, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	if uerr := fs.Unlink(path); uerr != nil {
		return int64(errors.ToErrno(uerr))
	}
	return 0
}

func sysRmdir(t *task.Task, f *trap.Frame) int64 {
	path, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	if rerr := fs.Rmdir(path); rerr != nil {
		return int64(errors.ToErrno(rerr))
	}
	return 0
}

func sysRename(t *task.Task, f *trap.Frame) int64 {
	oldPath, err := CopyInString(t, uintptr(f.Arg(0)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	newPath, err := CopyInString(t, uintptr(f.Arg(1)))
	if err != nil {
		return int64(errors.ToErrno(err))
	}
	if rerr := fs.Rename(oldPath, newPath); rerr != nil {
		return int64(errors.ToErrno(rerr))
	}
	return 0
}

func sysDup(t *task.Task, f *trap.Frame) int64 {
	obj := fdObject(t, int64(f.Arg(0)))
	if obj == nil {
		return int64(errors.ToErrno(errors.BadFileDescriptor))
	}
	return allocFd(t, obj)
}

func sysDup2(t *task.Task, f *trap.Frame) int64 {
	oldFd := int64(f.Arg(0))
	newFd := int64(f.Arg(1))
	obj := fdObject(t, oldFd)
	if obj == nil {
		return int64(errors.ToErrno(errors.BadFileDescriptor))
	}
	if newFd == oldFd {
		return newFd
	}
	for int64(len(t.Files)) <= newFd {
		t.Files = append(t.Files, nil)
	}
	if existing := t.Files[newFd]; existing != nil {
		closeObject(t, existing.File)
	}
	t.Files[newFd] = &task.FileDescriptor{File: obj}
	return newFd
}

func sysPipe(t *task.Task, f *trap.Frame) int64 {
	p := ipc.NewPipe()
	rfd := allocFd(t, &pipeEnd{pipe: p, write: false})
	wfd := allocFd(t, &pipeEnd{pipe: p, write: true})

	var raw [8]byte
	putUint32LE(raw[0:4], uint32(rfd))
	putUint32LE(raw[4:8], uint32(wfd))
	if cerr := CopyOut(t, uintptr(f.Arg(0)), raw[:]); cerr != nil {
		return int64(errors.ToErrno(cerr))
	}
	return 0
}

// mmapBase is where this task's first anonymous mapping lands; each
// further mmap call bumps MmapNext forward by the requested (page-rounded)
// length. There is no unmapped-region search and no file-backed mapping:
// spec.md/SPEC_FULL.md name mmap/munmap/brk as part of the syscall surface
// without detailing VMA placement policy, and a bump allocator is the
// simplest policy that satisfies "hand back an address the caller can use"
// without inventing a free-list this kernel has no other use for.
const mmapBase = 0x10_0000_0000

func sysMmap(t *task.Task, f *trap.Frame) int64 {
	length := uintptr(f.Arg(1))
	if length == 0 {
		return int64(errors.ToErrno(errors.InvalidArgument))
	}
	prot := uint32(f.Arg(2))
	fd := int64(f.Arg(4))
	if fd >= 0 {
		// File-backed mappings would need page-cache-style integration
		// between kernel/fs and kernel/mem/vmm that doesn't exist; only
		// the MAP_ANONYMOUS path (fd == -1, the conventional encoding) is
		// supported.
		return int64(errors.ToErrno(errors.Unsupported))
	}

	pageSize := uintptr(mem.PageSize)
	length = (length + pageSize - 1) &^ (pageSize - 1)

	if t.MmapNext == 0 {
		t.MmapNext = mmapBase
	}
	start := t.MmapNext
	t.MmapNext += length

	flags := vmm.VMAUser
	if prot&protRead != 0 {
		flags |= vmm.VMARead
	}
	if prot&protWrite != 0 {
		flags |= vmm.VMAWrite
	}
	if prot&protExec != 0 {
		flags |= vmm.VMAExec
	}

	if merr := t.AddressSpace.MapArea(start, start+length, flags, vmm.VMAKindFramed); merr != nil {
		return int64(errors.ToErrno(merr))
	}
	return int64(start)
}

// protRead/protWrite/protExec mirror mmap(2)'s PROT_* bit assignment.
const (
	protRead  = 1
	protWrite = 2
	protExec  = 4
)

func sysMunmap(t *task.Task, f *trap.Frame) int64 {
	start := uintptr(f.Arg(0))
	length := uintptr(f.Arg(1))
	if length == 0 {
		return int64(errors.ToErrno(errors.InvalidArgument))
	}

	if merr := t.AddressSpace.Unmap(start, start+length); merr != nil {
		return int64(errors.ToErrno(merr))
	}
	return 0
}

// fcntl commands, matching the conventional F_GETLK/F_SETLK/F_SETLKW
// numbering closely enough for a user-space libc to pass through
// unchanged, the same rationale errors.Errno's own doc comment gives for
// its ordering.
const (
	FGetLk  = 5
	FSetLk  = 6
	FSetLkw = 7
)

// flock lock-type tags, matching F_UNLCK/F_RDLCK/F_WRLCK.
const (
	lockTypeUnlock = 0
	lockTypeRead   = 1
	lockTypeWrite  = 2
)

// flockBufSize is the layout sysFcntl copies in/out for F_GETLK/F_SETLK*:
// a 4-byte little-endian lock type, 4 bytes of padding, and two 8-byte
// little-endian range bounds (§4.9 names byte-range locks without
// specifying a wire struct, so this exposes exactly the fields
// fs.byteRangeLock itself tracks).
const flockBufSize = 24

// sysFcntl implements the lock-related fcntl(2) commands (§4.9's "acquire
// (blocking or non-blocking) / release / test"; §6's syscall ABI). Every
// other fcntl command (F_DUPFD, F_GETFD, ...) is out of scope: SysDup/
// SysDup2 already cover descriptor duplication.
func sysFcntl(t *task.Task, f *trap.Frame) int64 {
	cmd := int64(f.Arg(1))
	switch cmd {
	case FGetLk, FSetLk, FSetLkw:
	default:
		return int64(errors.ToErrno(errors.Unsupported))
	}

	file, ok := fdObject(t, int64(f.Arg(0))).(*fs.File)
	if !ok {
		return int64(errors.ToErrno(errors.BadFileDescriptor))
	}

	raw, cerr := CopyIn(t, uintptr(f.Arg(2)), flockBufSize)
	if cerr != nil {
		return int64(errors.ToErrno(cerr))
	}
	lockType := getUint32LE(raw[0:4])
	start := int64(getUint64LE(raw[8:16]))
	end := int64(getUint64LE(raw[16:24]))
	owner := int64(t.Pid)

	if cmd == FGetLk {
		conflict := fs.TestRange(file.Inode, owner, start, end, lockType == lockTypeWrite)
		out := append([]byte(nil), raw...)
		if conflict {
			putUint32LE(out[0:4], lockTypeWrite)
		} else {
			putUint32LE(out[0:4], lockTypeUnlock)
		}
		if cerr := CopyOut(t, uintptr(f.Arg(2)), out); cerr != nil {
			return int64(errors.ToErrno(cerr))
		}
		return 0
	}

	if lockType == lockTypeUnlock {
		fs.UnlockRange(file.Inode, owner, start, end)
		return 0
	}

	exclusive := lockType == lockTypeWrite
	var lerr *kernel.Error
	if cmd == FSetLkw {
		lerr = fs.AcquireLock(file.Inode, t, owner, start, end, exclusive)
	} else {
		lerr = fs.LockRange(file.Inode, owner, start, end, exclusive)
	}
	if lerr != nil {
		return int64(errors.ToErrno(lerr))
	}
	return 0
}

// brkBase is where a task's heap starts growing from; chosen well clear of
// a typical static ELF's load segments and far below mmapBase.
const brkBase = 0x0020_0000_0000

func sysBrk(t *task.Task, f *trap.Frame) int64 {
	requested := uintptr(f.Arg(0))
	if t.Brk == 0 {
		t.Brk = brkBase
	}
	if requested == 0 {
		return int64(t.Brk)
	}

	pageSize := uintptr(mem.PageSize)
	oldTop := (t.Brk + pageSize - 1) &^ (pageSize - 1)
	newTop := (requested + pageSize - 1) &^ (pageSize - 1)

	if requested < t.Brk {
		if newTop < oldTop {
			if merr := t.AddressSpace.Unmap(newTop, oldTop); merr != nil {
				return int64(errors.ToErrno(merr))
			}
		}
		t.Brk = requested
		return int64(t.Brk)
	}

	flags := vmm.VMARead | vmm.VMAWrite | vmm.VMAUser
	pteFlags := vmaFlagsToPTEFlags(flags)
	for addr := oldTop; addr < newTop; addr += pageSize {
		frame, ferr := mem.AllocFrame()
		if ferr != nil {
			return int64(errors.ToErrno(ferr))
		}
		if merr := t.AddressSpace.Map(mem.PageFromAddress(addr), frame, pteFlags); merr != nil {
			return int64(errors.ToErrno(merr))
		}
	}
	if newTop > oldTop {
		t.AddressSpace.AddVMA(vmm.VMA{Start: oldTop, End: newTop, Flags: flags})
	}
	t.Brk = requested
	return int64(t.Brk)
}

// vmaFlagsToPTEFlags mirrors vmm.VMAFlag's own (unexported) PTE-flag
// translation, since sys_mmap/sys_brk live outside that package but need
// the same mapping from protection bits to page-table-entry flags.
func vmaFlagsToPTEFlags(flags vmm.VMAFlag) vmm.PageTableEntryFlag {
	pteFlags := vmm.FlagPresent
	if flags&vmm.VMARead != 0 {
		pteFlags |= vmm.FlagRead
	}
	if flags&vmm.VMAWrite != 0 {
		pteFlags |= vmm.FlagWrite
	}
	if flags&vmm.VMAExec != 0 {
		pteFlags |= vmm.FlagExec
	}
	if flags&vmm.VMAUser != 0 {
		pteFlags |= vmm.FlagUser
	}
	return pteFlags
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
