package kmain

import (
	"bytes"
	"testing"

	"rvkernel/kernel/errors"
	"rvkernel/kernel/fs"
)

// Kmain/SecondaryMain/bootSecondaries themselves are not exercised here:
// they drive the frame allocator, vmm, the Go runtime bootstrap and a real
// SBI hart-start ecall, none of which a hosted test binary can safely
// touch (the same class of untestable boot-time side effects documented
// throughout kernel/mem/pmm and kernel/mem/vmm). loadInitImage is plain Go
// logic layered over kernel/fs's already-tested Open/Read, so it is
// covered directly.

func freshRoot(t *testing.T) *fs.Inode {
	root := fs.NewDevFS()
	fs.MountRoot(root, "kmain-test")
	return root
}

func TestLoadInitImageReturnsNotFoundWhenNoShellIsMounted(t *testing.T) {
	freshRoot(t)

	if _, err := loadInitImage(initShellPath); err != errors.NotFound {
		t.Errorf("loadInitImage() error = %v, want errors.NotFound", err)
	}
}

func TestLoadInitImageReadsTheWholeFileAcrossMultipleChunks(t *testing.T) {
	freshRoot(t)

	want := bytes.Repeat([]byte("A"), 4096*2+17)
	fs.Mkdir("/bin", 0o755)
	f, err := fs.Open(initShellPath, fs.OCreate, 0o644)
	if err != nil {
		t.Fatalf("Open(OCreate) = %v", err)
	}
	if _, err := f.Write(want); err != nil {
		t.Fatalf("Write() = %v", err)
	}

	got, err := loadInitImage(initShellPath)
	if err != nil {
		t.Fatalf("loadInitImage() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("loadInitImage() returned %d bytes, want %d matching bytes", len(got), len(want))
	}
}
