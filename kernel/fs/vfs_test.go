package fs

import (
	"testing"

	"rvkernel/kernel/errors"
)

func freshDevFSRoot(t *testing.T) *Inode {
	root := NewDevFS()
	MountRoot(root, "devfs-test")
	t.Cleanup(func() { rootMount = nil })
	return root
}

func TestResolveRootPath(t *testing.T) {
	root := freshDevFSRoot(t)
	got, err := Resolve("/")
	if err != nil || got != root {
		t.Fatalf("Resolve(/) = (%v, %v), want (%v, nil)", got, err, root)
	}
}

func TestResolveSingleComponent(t *testing.T) {
	root := freshDevFSRoot(t)
	RegisterDevice(root, "console", &fakeDevice{})

	ino, err := Resolve("/console")
	if err != nil {
		t.Fatalf("Resolve(/console) = %v", err)
	}
	if ino.Type != TypeDevice {
		t.Errorf("resolved inode Type = %v, want TypeDevice", ino.Type)
	}
}

func TestResolveNestedPath(t *testing.T) {
	root := freshDevFSRoot(t)
	sub, _ := root.Ops.Mkdir(root, "sub", 0o755)
	sub.Parent = root
	_, err := sub.Ops.Create(sub, "f", 0o644)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	ino, err := Resolve("/sub/f")
	if err != nil {
		t.Fatalf("Resolve(/sub/f) = %v", err)
	}
	if ino.Type != TypeRegular {
		t.Errorf("resolved inode Type = %v, want TypeRegular", ino.Type)
	}
}

func TestResolveDotDotWalksToParent(t *testing.T) {
	root := freshDevFSRoot(t)
	root.Ops.Mkdir(root, "sub", 0o755)

	ino, err := Resolve("/sub/..")
	if err != nil {
		t.Fatalf("Resolve(/sub/..) = %v", err)
	}
	if ino != root {
		t.Error("Resolve(/sub/..) did not return the root inode")
	}
}

func TestResolveUnknownPathReturnsNotFound(t *testing.T) {
	freshDevFSRoot(t)
	if _, err := Resolve("/nope"); err != errors.NotFound {
		t.Errorf("Resolve(/nope) = %v, want NotFound", err)
	}
}

func TestResolveNoMountReturnsNotMounted(t *testing.T) {
	rootMount = nil
	if _, err := Resolve("/anything"); err != errors.NotMounted {
		t.Errorf("Resolve() with no mount = %v, want NotMounted", err)
	}
}

func TestMountAtCrossesIntoSubFilesystem(t *testing.T) {
	root := freshDevFSRoot(t)
	mountPoint, _ := root.Ops.Mkdir(root, "mnt", 0o755)
	mountPoint.Parent = root

	subRoot := NewDevFS()
	if err := MountAt(mountPoint, subRoot, "inner"); err != nil {
		t.Fatalf("MountAt() = %v", err)
	}
	subRoot.Ops.Create(subRoot, "inner-file", 0o644)

	ino, err := Resolve("/mnt/inner-file")
	if err != nil {
		t.Fatalf("Resolve(/mnt/inner-file) = %v", err)
	}
	if ino.Type != TypeRegular {
		t.Errorf("resolved inode Type = %v, want TypeRegular", ino.Type)
	}
}

func TestUnmountDetachesSubFilesystem(t *testing.T) {
	root := freshDevFSRoot(t)
	mountPoint, _ := root.Ops.Mkdir(root, "mnt", 0o755)
	mountPoint.Parent = root
	subRoot := NewDevFS()
	MountAt(mountPoint, subRoot, "inner")

	if err := Unmount(mountPoint); err != nil {
		t.Fatalf("Unmount() = %v", err)
	}
	if _, ok := mountPoint.Private.(*Mount); ok {
		t.Error("mountPoint.Private still holds a *Mount after Unmount")
	}
}

func TestSplitPathIgnoresRepeatedSlashes(t *testing.T) {
	got := splitPath("/a//b/c/")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitPath() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitPath()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
