package fs

import "rvkernel/kernel"

// Mkdir resolves path's parent directory and creates a new subdirectory
// named by path's final component.
func Mkdir(path string, mode uint32) *kernel.Error {
	dirPath, name := splitDirAndName(path)
	dir, err := Resolve(dirPath)
	if err != nil {
		return err
	}
	_, err = dir.Ops.Mkdir(dir, name, mode)
	return err
}

// Unlink resolves path's parent directory and removes the entry named by
// path's final component.
func Unlink(path string) *kernel.Error {
	dirPath, name := splitDirAndName(path)
	dir, err := Resolve(dirPath)
	if err != nil {
		return err
	}
	return dir.Ops.Unlink(dir, name)
}

// Rmdir resolves path's parent directory and removes the empty
// subdirectory named by path's final component.
func Rmdir(path string) *kernel.Error {
	dirPath, name := splitDirAndName(path)
	dir, err := Resolve(dirPath)
	if err != nil {
		return err
	}
	return dir.Ops.Rmdir(dir, name)
}

// Rename moves oldPath to newPath, which must name the same filesystem
// (§4.9 names rename among the VFS's path-based operations without
// specifying cross-filesystem behavior). This function resolves both
// parents and hands the request to the old parent's InodeOps; it does not
// itself check that both parents lie on one filesystem. DevFS moves the
// entry whenever both parents are DevFS directories and returns
// errors.NotADirectory for any other new parent; FAT32 and EXT2 return
// errors.Unsupported for every rename.
func Rename(oldPath, newPath string) *kernel.Error {
	oldDirPath, oldName := splitDirAndName(oldPath)
	newDirPath, newName := splitDirAndName(newPath)

	oldDir, err := Resolve(oldDirPath)
	if err != nil {
		return err
	}
	newDir, err := Resolve(newDirPath)
	if err != nil {
		return err
	}
	return oldDir.Ops.Rename(oldDir, oldName, newDir, newName)
}

// Stat resolves path and returns its inode's metadata view.
func Stat(path string) (*Inode, *kernel.Error) {
	return Resolve(path)
}
