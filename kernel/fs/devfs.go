package fs

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sync"
)

// DeviceOps is the capability a driver exposes to back one DevFS node
// (§4.9: "device nodes whose operations dispatch to registered drivers").
// It is intentionally narrower than device.Driver: DevFS only needs the
// read/write half of a driver's behavior, not its probe/init lifecycle.
type DeviceOps interface {
	Read(off int64, buf []byte) (int, *kernel.Error)
	Write(off int64, buf []byte) (int, *kernel.Error)
}

// devDir is the in-memory directory representation backing DevFS's
// Inode.Private for every TypeDirectory inode.
type devDir struct {
	lock     sync.Spinlock
	children map[string]*Inode
}

// devFile is the in-memory byte buffer backing an ordinary (non-device)
// regular file created within DevFS, for the rare case something other
// than a registered driver wants a scratch file under /dev.
type devFile struct {
	data []byte
}

var devfsOps = &devfsOpsType{}

type devfsOpsType struct{}

var nextDevfsIno uint64 = 1

func allocDevfsIno() uint64 {
	nextDevfsIno++
	return nextDevfsIno
}

// NewDevFS creates an empty DevFS root directory, ready to MountRoot or
// MountAt.
func NewDevFS() *Inode {
	return &Inode{
		Number: 1,
		Type:   TypeDirectory,
		Mode:   0o755,
		Ops:    devfsOps,
		Private: &devDir{children: map[string]*Inode{}},
	}
}

// RegisterDevice adds a device node named name at the root of devfsRoot,
// dispatching its Read/Write to ops (§4.9's driver-backed device node).
// Mirrors device.RegisterDriver's init()-time side-effect registration
// idiom, one level up: a driver's own init() calls this once its DeviceOps
// adapter exists.
func RegisterDevice(devfsRoot *Inode, name string, ops DeviceOps) {
	dir := devfsRoot.Private.(*devDir)
	dir.lock.Acquire()
	defer dir.lock.Release()
	dir.children[name] = &Inode{
		Number:  allocDevfsIno(),
		Type:    TypeDevice,
		Mode:    0o666,
		Ops:     devfsOps,
		Parent:  devfsRoot,
		Private: ops,
	}
}

func (devfsOpsType) Lookup(dir *Inode, name string) (*Inode, *kernel.Error) {
	d, ok := dir.Private.(*devDir)
	if !ok {
		return nil, errors.NotADirectory
	}
	d.lock.Acquire()
	defer d.lock.Release()
	child, ok := d.children[name]
	if !ok {
		return nil, errors.NotFound
	}
	return child, nil
}

func (devfsOpsType) Readdir(dir *Inode) ([]DirEntry, *kernel.Error) {
	d, ok := dir.Private.(*devDir)
	if !ok {
		return nil, errors.NotADirectory
	}
	d.lock.Acquire()
	defer d.lock.Release()
	entries := make([]DirEntry, 0, len(d.children))
	for name, child := range d.children {
		entries = append(entries, DirEntry{Name: name, Ino: child.Number, Type: child.Type})
	}
	return entries, nil
}

func (devfsOpsType) Create(dir *Inode, name string, mode uint32) (*Inode, *kernel.Error) {
	d, ok := dir.Private.(*devDir)
	if !ok {
		return nil, errors.NotADirectory
	}
	d.lock.Acquire()
	defer d.lock.Release()
	if _, exists := d.children[name]; exists {
		return nil, errors.AlreadyExists
	}
	child := &Inode{
		Number:  allocDevfsIno(),
		Type:    TypeRegular,
		Mode:    mode,
		Ops:     devfsOps,
		Parent:  dir,
		Private: &devFile{},
	}
	d.children[name] = child
	return child, nil
}

func (devfsOpsType) Mkdir(dir *Inode, name string, mode uint32) (*Inode, *kernel.Error) {
	d, ok := dir.Private.(*devDir)
	if !ok {
		return nil, errors.NotADirectory
	}
	d.lock.Acquire()
	defer d.lock.Release()
	if _, exists := d.children[name]; exists {
		return nil, errors.AlreadyExists
	}
	child := &Inode{
		Number:  allocDevfsIno(),
		Type:    TypeDirectory,
		Mode:    mode,
		Ops:     devfsOps,
		Parent:  dir,
		Private: &devDir{children: map[string]*Inode{}},
	}
	d.children[name] = child
	return child, nil
}

func (devfsOpsType) Unlink(dir *Inode, name string) *kernel.Error {
	d, ok := dir.Private.(*devDir)
	if !ok {
		return errors.NotADirectory
	}
	d.lock.Acquire()
	defer d.lock.Release()
	child, ok := d.children[name]
	if !ok {
		return errors.NotFound
	}
	if child.Type == TypeDirectory {
		return errors.IsADirectory
	}
	delete(d.children, name)
	return nil
}

func (devfsOpsType) Rmdir(dir *Inode, name string) *kernel.Error {
	d, ok := dir.Private.(*devDir)
	if !ok {
		return errors.NotADirectory
	}
	d.lock.Acquire()
	defer d.lock.Release()
	child, ok := d.children[name]
	if !ok {
		return errors.NotFound
	}
	cd, ok := child.Private.(*devDir)
	if !ok {
		return errors.NotADirectory
	}
	if len(cd.children) > 0 {
		return errors.NotEmpty
	}
	delete(d.children, name)
	return nil
}

func (devfsOpsType) Rename(oldDir *Inode, name string, newDir *Inode, newName string) *kernel.Error {
	od, ok := oldDir.Private.(*devDir)
	if !ok {
		return errors.NotADirectory
	}
	nd, ok := newDir.Private.(*devDir)
	if !ok {
		return errors.NotADirectory
	}
	od.lock.Acquire()
	defer od.lock.Release()
	child, ok := od.children[name]
	if !ok {
		return errors.NotFound
	}
	if od != nd {
		nd.lock.Acquire()
		defer nd.lock.Release()
	}
	delete(od.children, name)
	nd.children[newName] = child
	child.Parent = newDir
	return nil
}

func (devfsOpsType) Read(ino *Inode, off int64, buf []byte) (int, *kernel.Error) {
	switch backing := ino.Private.(type) {
	case DeviceOps:
		return backing.Read(off, buf)
	case *devFile:
		if off >= int64(len(backing.data)) {
			return 0, nil
		}
		n := copy(buf, backing.data[off:])
		return n, nil
	default:
		return 0, errors.Unsupported
	}
}

func (devfsOpsType) Write(ino *Inode, off int64, buf []byte) (int, *kernel.Error) {
	switch backing := ino.Private.(type) {
	case DeviceOps:
		n, err := backing.Write(off, buf)
		return n, err
	case *devFile:
		end := off + int64(len(buf))
		if end > int64(len(backing.data)) {
			grown := make([]byte, end)
			copy(grown, backing.data)
			backing.data = grown
		}
		n := copy(backing.data[off:end], buf)
		ino.Size = int64(len(backing.data))
		return n, nil
	default:
		return 0, errors.Unsupported
	}
}

func (devfsOpsType) Truncate(ino *Inode, size int64) *kernel.Error {
	backing, ok := ino.Private.(*devFile)
	if !ok {
		return errors.Unsupported
	}
	if size < int64(len(backing.data)) {
		backing.data = backing.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, backing.data)
		backing.data = grown
	}
	ino.Size = size
	return nil
}
