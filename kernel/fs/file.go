package fs

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
)

// Open-flag bits, the subset §4.9's file-object operations need. Matches
// the conventional POSIX bit assignment closely enough for a user-space
// libc to pass through unchanged, the same rationale errors.Errno's own
// doc comment gives for its ordering.
const (
	ORdOnly uint32 = 0
	OWrOnly uint32 = 1
	ORdWr   uint32 = 2
	OCreate uint32 = 0o100
	OAppend uint32 = 0o2000
	OTrunc  uint32 = 0o1000
)

// File is one open file description: an inode plus the cursor and flags
// private to this particular open() call (§4.9's "file-object operations").
// Several File values may reference the same Inode, the way two processes
// sharing a fd table (threads of one task) or independent opens of the
// same path both do.
type File struct {
	Inode *Inode
	Flags uint32
	off   int64
}

// Open resolves path and returns a new file object over it, creating a new
// regular file in its parent directory first if OCreate is set and no
// entry exists yet.
func Open(path string, flags uint32, mode uint32) (*File, *kernel.Error) {
	ino, err := Resolve(path)
	if err == nil {
		if flags&OTrunc != 0 && ino.Type == TypeRegular {
			if terr := ino.Ops.Truncate(ino, 0); terr != nil {
				return nil, terr
			}
		}
		return &File{Inode: ino, Flags: flags}, nil
	}
	if err != errors.NotFound || flags&OCreate == 0 {
		return nil, err
	}

	dirPath, name := splitDirAndName(path)
	dir, derr := Resolve(dirPath)
	if derr != nil {
		return nil, derr
	}
	if dir.Type != TypeDirectory {
		return nil, errors.NotADirectory
	}
	created, cerr := dir.Ops.Create(dir, name, mode)
	if cerr != nil {
		return nil, cerr
	}
	created.Parent = dir
	return &File{Inode: created, Flags: flags}, nil
}

func splitDirAndName(path string) (string, string) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return "/", ""
	}
	name := comps[len(comps)-1]
	dir := "/"
	for _, c := range comps[:len(comps)-1] {
		dir += c + "/"
	}
	return dir, name
}

// Read copies up to len(buf) bytes from the file's current offset,
// advancing it by the amount actually read.
func (f *File) Read(buf []byte) (int, *kernel.Error) {
	if f.Inode.Type == TypeDirectory {
		return 0, errors.IsADirectory
	}
	n, err := f.Inode.Ops.Read(f.Inode, f.off, buf)
	if err != nil {
		return 0, err
	}
	f.off += int64(n)
	return n, nil
}

// Write copies buf to the file's current offset (or the end of the file,
// if OAppend is set), advancing the offset by the amount written.
func (f *File) Write(buf []byte) (int, *kernel.Error) {
	if f.Inode.Type == TypeDirectory {
		return 0, errors.IsADirectory
	}
	off := f.off
	if f.Flags&OAppend != 0 {
		off = f.Inode.Size
	}
	n, err := f.Inode.Ops.Write(f.Inode, off, buf)
	if err != nil {
		return 0, err
	}
	f.off = off + int64(n)
	return n, nil
}

// Seek whence values, matching lseek(2)'s conventional assignment.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// Seek repositions the file's cursor per lseek(2)'s whence convention.
func (f *File) Seek(offset int64, whence int) (int64, *kernel.Error) {
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = f.off
	case SeekEnd:
		base = f.Inode.Size
	default:
		return 0, errors.InvalidArgument
	}
	pos := base + offset
	if pos < 0 {
		return 0, errors.InvalidArgument
	}
	f.off = pos
	return pos, nil
}

// Readdir returns the directory's entries, or errors.NotADirectory if the
// file does not refer to one.
func (f *File) Readdir() ([]DirEntry, *kernel.Error) {
	if f.Inode.Type != TypeDirectory {
		return nil, errors.NotADirectory
	}
	return f.Inode.Ops.Readdir(f.Inode)
}

// Close releases every advisory lock owner holds on the file's inode
// (§4.9 invariant: "released on its last close of the file"). This package
// has no reference-count view of other open File values over the same
// Inode, so callers (kernel/task's fd table) are responsible for only
// calling Close when this was genuinely the last descriptor referencing
// the inode.
func (f *File) Close(owner int64) {
	UnlockAll(f.Inode, owner)
}
