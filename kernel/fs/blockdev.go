package fs

import "rvkernel/kernel"

// BlockDevice is the narrow interface FAT32 and EXT2 need from whatever
// storage driver backs them (a virtio-blk driver, not built in this core
// per the Non-goals -- concrete block-device drivers are the same kind of
// external collaborator a VirtIO GPU driver is for the framebuffer
// syscalls). Keeping filesystems coded against this interface rather than
// a concrete driver type is what lets them be written and tested today
// against an in-memory fake.
type BlockDevice interface {
	ReadBlock(lba uint64, buf []byte) *kernel.Error
	WriteBlock(lba uint64, buf []byte) *kernel.Error
	BlockSize() int
}
