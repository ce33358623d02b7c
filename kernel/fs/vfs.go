// Package fs implements the kernel's VFS core (§4.9): path-based operations
// resolved iteratively component by component, file objects layered over
// inodes, mount crossing, and per-inode advisory byte-range locks. There is
// no teacher precedent (gopher-os never grew a filesystem), so the
// inode/operations split is grounded on hanwen-go-fuse's capability-table
// Node/File interfaces (fuse/nodefs/api.go), narrowed from FUSE's full
// surface down to the set spec.md §4.9 actually names, and wired in the
// teacher's own idiom: kernel.Error sentinels, kernel/sync primitives.
package fs

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sync"
)

// InodeOps is the capability table a concrete filesystem (FAT32, EXT2,
// DevFS) implements to plug into the VFS, generalizing hanwen-go-fuse's
// Node interface down to spec.md §4.9's named operation set.
type InodeOps interface {
	// Lookup resolves name within a directory inode, returning the
	// child's Inode or errors.NotFound if it does not exist.
	Lookup(dir *Inode, name string) (*Inode, *kernel.Error)

	// Readdir returns the directory's entries in on-disk order.
	Readdir(dir *Inode) ([]DirEntry, *kernel.Error)

	// Create makes a new regular file named name inside dir.
	Create(dir *Inode, name string, mode uint32) (*Inode, *kernel.Error)

	// Mkdir makes a new subdirectory named name inside dir.
	Mkdir(dir *Inode, name string, mode uint32) (*Inode, *kernel.Error)

	// Unlink removes the directory entry name from dir.
	Unlink(dir *Inode, name string) *kernel.Error

	// Rmdir removes the empty subdirectory named name from dir.
	Rmdir(dir *Inode, name string) *kernel.Error

	// Rename moves name out of oldDir and into newDir under newName.
	Rename(oldDir *Inode, name string, newDir *Inode, newName string) *kernel.Error

	// Read copies up to len(buf) bytes from ino starting at off.
	Read(ino *Inode, off int64, buf []byte) (int, *kernel.Error)

	// Write copies buf into ino starting at off, growing the file if
	// off+len(buf) exceeds its current size.
	Write(ino *Inode, off int64, buf []byte) (int, *kernel.Error)

	// Truncate changes ino's size, zero-filling any newly exposed range.
	Truncate(ino *Inode, size int64) *kernel.Error
}

// DirEntry is one entry returned by InodeOps.Readdir.
type DirEntry struct {
	Name string
	Ino  uint64
	Type InodeType
}

// InodeType distinguishes what an inode names on disk.
type InodeType uint8

const (
	TypeRegular InodeType = iota
	TypeDirectory
	TypeDevice
	TypeSymlink
)

// Inode is one VFS node: the in-memory representation shared by every
// filesystem backend, holding only what path resolution, locking and the
// open-file table need and leaving everything filesystem-specific behind
// the Ops/Private indirection (the same Node/Inode split hanwen-go-fuse
// draws between its generic Inode and a backend's private data).
type Inode struct {
	Number uint64
	Type   InodeType
	Size   int64
	Mode   uint32

	Ops    InodeOps
	FS     *Mount
	Parent *Inode

	// Private is filesystem-specific bookkeeping (FAT cluster chain head,
	// EXT2 inode-table index, DevFS driver handle) opaque to this package,
	// the same way kernel/task.Thread.SchedEntity is left opaque to its
	// owner's policy state.
	Private interface{}

	lock  sync.Spinlock
	locks []byteRangeLock // advisory locks held against this inode (§4.9)

	// lockWaiters parks tasks blocked on AcquireLock until a conflicting
	// lock is released (UnlockRange/UnlockAll wake it) or the holder's
	// last reference closes.
	lockWaiters sync.WaitQueue

	RefCount int
}

// Mount binds a filesystem's root inode into the tree at a mount point.
type Mount struct {
	Root   *Inode
	MountedOn *Inode // the inode in the parent filesystem this replaces, or nil for the root mount
	Device string
}

var (
	rootMount *Mount
	mountLock sync.Spinlock
)

// MountRoot installs root as the filesystem root (§4.9: the first mount
// during boot, before any path resolution is possible).
func MountRoot(root *Inode, device string) {
	m := &Mount{Device: device}
	root.FS = m
	m.Root = root
	mountLock.Acquire()
	rootMount = m
	mountLock.Release()
}

// MountAt grafts the filesystem whose root inode is root onto mountPoint,
// so subsequent path resolution that reaches mountPoint continues into that
// filesystem instead.
func MountAt(mountPoint *Inode, root *Inode, device string) *kernel.Error {
	if mountPoint.Type != TypeDirectory {
		return errors.NotADirectory
	}
	m := &Mount{Root: root, MountedOn: mountPoint, Device: device}
	root.FS = m
	mountPoint.lock.Acquire()
	mountPoint.Private = m
	mountPoint.lock.Release()
	return nil
}

// Unmount detaches whatever filesystem was grafted onto mountPoint.
func Unmount(mountPoint *Inode) *kernel.Error {
	mountPoint.lock.Acquire()
	defer mountPoint.lock.Release()
	if _, ok := mountPoint.Private.(*Mount); !ok {
		return errors.NotMounted
	}
	mountPoint.Private = nil
	return nil
}

// maxSymlinkDepth bounds Resolve's symlink-following recursion (§4.9: "a
// bounded symlink-depth counter").
const maxSymlinkDepth = 8

// Resolve walks path component by component from the VFS root, crossing
// mounts and following symlinks up to maxSymlinkDepth times, per §4.9.
func Resolve(path string) (*Inode, *kernel.Error) {
	mountLock.Acquire()
	root := rootMount
	mountLock.Release()
	if root == nil {
		return nil, errors.NotMounted
	}
	return resolveFrom(root.Root, path, 0)
}

func resolveFrom(start *Inode, path string, depth int) (*Inode, *kernel.Error) {
	cur := start
	if len(path) > 0 && path[0] == '/' {
		mountLock.Acquire()
		cur = rootMount.Root
		mountLock.Release()
	}

	for _, comp := range splitPath(path) {
		switch comp {
		case ".":
			continue
		case "..":
			if cur.Parent != nil {
				cur = cur.Parent
			}
			continue
		}

		cur.lock.Acquire()
		if m, ok := cur.Private.(*Mount); ok {
			cur = m.Root
		}
		cur.lock.Release()

		if cur.Type != TypeDirectory {
			return nil, errors.NotADirectory
		}

		next, err := cur.Ops.Lookup(cur, comp)
		if err != nil {
			return nil, err
		}
		next.Parent = cur

		if next.Type == TypeSymlink {
			if depth >= maxSymlinkDepth {
				return nil, errors.TooManyLinks
			}
			target, err := readSymlink(next)
			if err != nil {
				return nil, err
			}
			resolved, err := resolveFrom(cur, target, depth+1)
			if err != nil {
				return nil, err
			}
			cur = resolved
			continue
		}
		cur = next
	}
	return cur, nil
}

func readSymlink(ino *Inode) (string, *kernel.Error) {
	buf := make([]byte, ino.Size)
	n, err := ino.Ops.Read(ino, 0, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// splitPath breaks path into its non-empty components.
func splitPath(path string) []string {
	var comps []string
	start := -1
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if start >= 0 {
				comps = append(comps, path[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		comps = append(comps, path[start:])
	}
	return comps
}
