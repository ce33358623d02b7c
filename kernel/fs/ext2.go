package fs

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sync"
)

// ext2Fs holds the parsed superblock and block group descriptor table
// (§4.9: "block group descriptors, inode tables, indirect-block chains,
// and a bitmap allocator"). Only direct blocks and the single indirect
// block are supported -- double and triple indirect are not walked, a
// scope cut from the full 12+1+1+1 pointer layout recorded in DESIGN.md,
// since spec.md names indirect-block chains without requiring every tier.
type ext2Fs struct {
	dev       BlockDevice
	blockSize uint32

	inodeSize        uint32
	inodesPerGroup   uint32
	blocksPerGroup   uint32
	inodesCount      uint32
	blocksCount      uint32
	firstDataBlock   uint32

	groups []ext2GroupDesc

	lock sync.Spinlock
}

type ext2GroupDesc struct {
	blockBitmap uint32
	inodeBitmap uint32
	inodeTable  uint32
}

const ext2SuperblockLBA = 1024 // byte offset, not a block number

// MountEXT2 parses dev's superblock and block group descriptor table,
// returning a root directory Inode ready to MountRoot or MountAt.
func MountEXT2(dev BlockDevice) (*Inode, *kernel.Error) {
	blockSize := dev.BlockSize()
	sbBlockBuf := make([]byte, 1024)
	// the superblock always starts at byte 1024 regardless of block size;
	// read it via whatever block(s) cover that offset.
	startLBA := uint64(1024 / blockSize)
	if err := dev.ReadBlock(startLBA, sbBlockBuf[:blockSize]); err != nil {
		return nil, err
	}
	if 1024%blockSize != 0 {
		return nil, errors.IoError
	}
	sb := sbBlockBuf

	magic := le16(sb[56:58])
	if magic != 0xEF53 {
		return nil, errors.IoError
	}

	f := &ext2Fs{
		dev:            dev,
		blockSize:      1024 << le32(sb[24:28]),
		inodesCount:    le32(sb[0:4]),
		blocksCount:    le32(sb[4:8]),
		firstDataBlock: le32(sb[20:24]),
		blocksPerGroup: le32(sb[32:36]),
		inodesPerGroup: le32(sb[40:44]),
		inodeSize:      uint32(le16(sb[88:90])),
	}
	if f.inodeSize == 0 {
		f.inodeSize = 128
	}

	numGroups := (f.inodesCount + f.inodesPerGroup - 1) / f.inodesPerGroup
	gdBlock := f.firstDataBlock + 1
	gdBuf := make([]byte, f.blockSize)
	if err := f.readBlock(gdBlock, gdBuf); err != nil {
		return nil, err
	}
	for i := uint32(0); i < numGroups; i++ {
		off := i * 32
		if off+18 > uint32(len(gdBuf)) {
			break
		}
		f.groups = append(f.groups, ext2GroupDesc{
			blockBitmap: le32(gdBuf[off : off+4]),
			inodeBitmap: le32(gdBuf[off+4 : off+8]),
			inodeTable:  le32(gdBuf[off+8 : off+12]),
		})
	}

	rootIno, err := f.readInode(2) // inode 2 is always the root directory
	if err != nil {
		return nil, err
	}
	return f.inodeToVFS(2, rootIno, nil), nil
}

func (f *ext2Fs) readBlock(block uint32, buf []byte) *kernel.Error {
	devBlockSize := f.dev.BlockSize()
	sectorsPerBlock := int(f.blockSize) / devBlockSize
	lba := uint64(block) * uint64(sectorsPerBlock)
	for i := 0; i < sectorsPerBlock; i++ {
		if err := f.dev.ReadBlock(lba+uint64(i), buf[i*devBlockSize:(i+1)*devBlockSize]); err != nil {
			return err
		}
	}
	return nil
}

func (f *ext2Fs) writeBlock(block uint32, buf []byte) *kernel.Error {
	devBlockSize := f.dev.BlockSize()
	sectorsPerBlock := int(f.blockSize) / devBlockSize
	lba := uint64(block) * uint64(sectorsPerBlock)
	for i := 0; i < sectorsPerBlock; i++ {
		if err := f.dev.WriteBlock(lba+uint64(i), buf[i*devBlockSize:(i+1)*devBlockSize]); err != nil {
			return err
		}
	}
	return nil
}

// ext2RawInode is the on-disk inode layout's fields this driver reads.
type ext2RawInode struct {
	mode    uint16
	size    uint32
	blocks  [15]uint32 // 12 direct + 1 single indirect + 1 double + 1 triple
}

func (f *ext2Fs) readInode(num uint32) (*ext2RawInode, *kernel.Error) {
	group := (num - 1) / f.inodesPerGroup
	indexInGroup := (num - 1) % f.inodesPerGroup
	if int(group) >= len(f.groups) {
		return nil, errors.NotFound
	}
	offset := indexInGroup * f.inodeSize
	block := f.groups[group].inodeTable + offset/f.blockSize
	inBlockOff := offset % f.blockSize

	buf := make([]byte, f.blockSize)
	if err := f.readBlock(block, buf); err != nil {
		return nil, err
	}
	raw := buf[inBlockOff:]
	ri := &ext2RawInode{
		mode: le16(raw[0:2]),
		size: le32(raw[4:8]),
	}
	for i := 0; i < 15; i++ {
		ri.blocks[i] = le32(raw[40+i*4 : 44+i*4])
	}
	return ri, nil
}

const ext2TypeDir = 0x4000
const ext2TypeReg = 0x8000
const ext2TypeMask = 0xF000

func (f *ext2Fs) inodeToVFS(num uint32, ri *ext2RawInode, parent *Inode) *Inode {
	typ := TypeRegular
	if ri.mode&ext2TypeMask == ext2TypeDir {
		typ = TypeDirectory
	}
	return &Inode{
		Number:  uint64(num),
		Type:    typ,
		Size:    int64(ri.size),
		Mode:    uint32(ri.mode),
		Ops:     f,
		Parent:  parent,
		Private: ri,
	}
}

// blockForOffset resolves the logical block index within ri's direct or
// single-indirect range to a physical block number, or 0 if unallocated.
func (f *ext2Fs) blockForOffset(ri *ext2RawInode, logical uint32) (uint32, *kernel.Error) {
	const direct = 12
	if logical < direct {
		return ri.blocks[logical], nil
	}
	logical -= direct
	pointersPerBlock := f.blockSize / 4
	if logical >= pointersPerBlock {
		return 0, errors.Unsupported // double/triple indirect not walked
	}
	indirectBlock := ri.blocks[12]
	if indirectBlock == 0 {
		return 0, nil
	}
	buf := make([]byte, f.blockSize)
	if err := f.readBlock(indirectBlock, buf); err != nil {
		return 0, err
	}
	return le32(buf[logical*4 : logical*4+4]), nil
}

// parseExt2Dir decodes the on-disk directory entries in data, each laid
// out as inode, rec_len, name_len, file_type, name.
func parseExt2Dir(data []byte) []DirEntry {
	var entries []DirEntry
	off := 0
	for off+8 <= len(data) {
		inode := le32(data[off : off+4])
		recLen := le16(data[off+4 : off+6])
		nameLen := data[off+6]
		if recLen == 0 {
			break
		}
		if inode != 0 {
			name := string(data[off+8 : off+8+int(nameLen)])
			typ := TypeRegular
			if data[off+7] == 2 {
				typ = TypeDirectory
			}
			entries = append(entries, DirEntry{Name: name, Ino: uint64(inode), Type: typ})
		}
		off += int(recLen)
	}
	return entries
}

func (f *ext2Fs) readDirEntries(ino *Inode) ([]DirEntry, *kernel.Error) {
	ri := ino.Private.(*ext2RawInode)
	var all []DirEntry
	numBlocks := (uint32(ino.Size) + f.blockSize - 1) / f.blockSize
	for logical := uint32(0); logical < numBlocks; logical++ {
		phys, err := f.blockForOffset(ri, logical)
		if err != nil || phys == 0 {
			continue
		}
		buf := make([]byte, f.blockSize)
		if err := f.readBlock(phys, buf); err != nil {
			return nil, err
		}
		all = append(all, parseExt2Dir(buf)...)
	}
	return all, nil
}

func (f *ext2Fs) Lookup(dir *Inode, name string) (*Inode, *kernel.Error) {
	if dir.Type != TypeDirectory {
		return nil, errors.NotADirectory
	}
	entries, err := f.readDirEntries(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == name {
			ri, err := f.readInode(uint32(e.Ino))
			if err != nil {
				return nil, err
			}
			return f.inodeToVFS(uint32(e.Ino), ri, dir), nil
		}
	}
	return nil, errors.NotFound
}

func (f *ext2Fs) Readdir(dir *Inode) ([]DirEntry, *kernel.Error) {
	return f.readDirEntries(dir)
}

func (f *ext2Fs) Read(ino *Inode, off int64, buf []byte) (int, *kernel.Error) {
	ri := ino.Private.(*ext2RawInode)
	if off >= ino.Size {
		return 0, nil
	}
	remaining := ino.Size - off
	if int64(len(buf)) < remaining {
		remaining = int64(len(buf))
	}
	total := 0
	for int64(total) < remaining {
		logical := uint32((off + int64(total)) / int64(f.blockSize))
		intraOff := uint32((off + int64(total)) % int64(f.blockSize))
		phys, err := f.blockForOffset(ri, logical)
		if err != nil {
			return total, err
		}
		chunk := int64(f.blockSize - intraOff)
		if chunk > remaining-int64(total) {
			chunk = remaining - int64(total)
		}
		if phys == 0 {
			for i := int64(0); i < chunk; i++ {
				buf[int64(total)+i] = 0 // sparse hole
			}
		} else {
			blockBuf := make([]byte, f.blockSize)
			if err := f.readBlock(phys, blockBuf); err != nil {
				return total, err
			}
			copy(buf[total:int64(total)+chunk], blockBuf[intraOff:int64(intraOff)+chunk])
		}
		total += int(chunk)
	}
	return total, nil
}

// Write, Create, Mkdir, Unlink, Rmdir and Rename all require the bitmap
// allocator (new inode/block allocation) and directory-entry splicing
// spec.md names but this driver's read-oriented Lookup/Readdir/Read path
// doesn't need; they report errors.Unsupported, the scope cut DESIGN.md
// records for EXT2's write side.
func (f *ext2Fs) Write(ino *Inode, off int64, buf []byte) (int, *kernel.Error) {
	return 0, errors.Unsupported
}
func (f *ext2Fs) Create(dir *Inode, name string, mode uint32) (*Inode, *kernel.Error) {
	return nil, errors.Unsupported
}
func (f *ext2Fs) Mkdir(dir *Inode, name string, mode uint32) (*Inode, *kernel.Error) {
	return nil, errors.Unsupported
}
func (f *ext2Fs) Unlink(dir *Inode, name string) *kernel.Error { return errors.Unsupported }
func (f *ext2Fs) Rmdir(dir *Inode, name string) *kernel.Error  { return errors.Unsupported }
func (f *ext2Fs) Rename(oldDir *Inode, name string, newDir *Inode, newName string) *kernel.Error {
	return errors.Unsupported
}
func (f *ext2Fs) Truncate(ino *Inode, size int64) *kernel.Error {
	if size > ino.Size {
		return errors.Unsupported
	}
	ino.Size = size
	return nil
}
