// Package kmain implements the kernel's boot sequencing (§C.11): it is the
// only Go symbol the firmware hand-off stub calls directly, and it is
// never expected to return. This generalizes the teacher's
// terminal → allocator → vmm → goruntime → idle-loop Kmain to the SV39
// SBI hand-off (§5 Boot entry: hart id in a0, device tree blob pointer in
// a1, paging disabled) and to this kernel's much larger subsystem set
// (trap path, scheduler, syscall dispatcher, signals, VFS), plus per-HART
// SMP bring-up the teacher, being single-CPU-only, never needed.
package kmain

import (
	"rvkernel/kernel"
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/fs"
	"rvkernel/kernel/goruntime"
	"rvkernel/kernel/hal"
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/mem/pmm"
	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/sbi"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/signal"
	"rvkernel/kernel/syscall"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// defaultRAMStart/defaultRAMSize describe the single contiguous RAM window
// this kernel assumes until a board collaborator parses the real
// flattened device tree at sbi.DeviceTreeAddr() (§1: board/device-tree
// parsing is an external collaborator, not a core subject) -- the QEMU
// "virt" machine's well-known physical load window.
const (
	defaultRAMStart = 0x8000_0000
	defaultRAMSize  = 128 * mem.Mb
)

// initShellPath is where the init process looks for the shell binary to
// exec once a root filesystem is mounted (§5: "Boot → init → shell: kernel
// entry with hart 0 → init process (pid 1) spawns the shell binary from
// /bin/shell").
const initShellPath = "/bin/shell"

// Kmain is the only Go symbol visible to the firmware hand-off stub. It
// runs once, on the bootstrap HART, with the two registers SBI firmware
// hands a S-mode kernel at entry plus the physical frame range the
// kernel's own image occupies, supplied by the linker script the same way
// the teacher's rt0 already did for kernelStart/kernelEnd.
//
//go:noinline
func Kmain(hartID uint64, dtbAddr, kernelStart, kernelEnd uintptr) {
	cpu.SetBootHartID(hartID)
	sbi.SetBootArgs(hartID, dtbAddr)

	hal.DetectHardware()
	kfmt.Printf("booting rvkernel on hart %d\n", hartID)

	regions := []pmm.Region{{
		StartFrame: mem.FrameFromAddress(defaultRAMStart),
		EndFrame:   mem.FrameFromAddress(defaultRAMStart + uintptr(defaultRAMSize) - 1),
	}}

	var err *kernel.Error
	if err = pmm.Init(regions, mem.FrameFromAddress(kernelStart), mem.FrameFromAddress(kernelEnd)); err != nil {
		kfmt.Panic(err)
	} else if err = vmm.Init(); err != nil {
		kfmt.Panic(err)
	} else if err = goruntime.Init(); err != nil {
		kfmt.Panic(err)
	}

	trap.Init()
	trap.InstallTrampoline()
	signal.InstallTrampoline()
	sched.Init()
	syscall.Init()

	bootSecondaries()
	mountRoot()
	spawnInit()

	// From here on this HART's own stack becomes, in effect, its idle
	// thread's body (sched.newIdleThread's doc comment: "never does
	// anything but cpu.Halt in a loop") -- the first call to
	// sched.Schedule below context-switches away from it, and control
	// only resumes here once every other thread on this HART has
	// blocked or exited. Kmain is not expected to return past this loop.
	sched.Schedule(cpu.HartID())
	for {
		cpu.Halt()
	}
}

// bootSecondaries starts every HART beyond the bootstrap one via the SBI
// HSM extension (§5: "SMP, up to 8 HARTs"). kernel/sched.Init has already
// built a runqueue and idle thread for every slot up to cpu.MaxHarts, so a
// hart that does not physically exist simply never pulls work from one.
func bootSecondaries() {
	entry := secondaryEntryAddr()
	for hart := uint64(1); hart < cpu.MaxHarts; hart++ {
		cpu.BootSecondary(hart, entry, 0)
	}
}

// SecondaryMain is the Go entry point every secondary HART's own compiled
// entry stub jumps to after setting up a private boot stack and sscratch
// value, mirroring the role Kmain plays for the bootstrap HART. It installs
// this HART's trap vector and falls into the scheduler the same way Kmain's
// own trailing loop does.
//
//go:noinline
func SecondaryMain(opaque uintptr) {
	trap.Init()
	sched.Schedule(cpu.HartID())
	for {
		cpu.Halt()
	}
}

// mountRoot attaches a device filesystem at the VFS root. A disk-backed
// root filesystem needs a concrete VirtIO block driver and a filesystem
// image, both external collaborators (§1: "build system and
// filesystem-image tooling", "concrete VirtIO device drivers"); until one
// is wired up, devfs alone is mounted so device nodes are at least
// reachable by path.
func mountRoot() {
	fs.MountRoot(fs.NewDevFS(), "devfs")
}

// spawnInit creates pid 1 and execs the shell binary into it. If no shell
// image is reachable yet (no real root filesystem mounted, see mountRoot),
// init is still enqueued, with an empty address space, rather than panicking --
// a kernel that cannot yet find a shell to run still finished booting.
func spawnInit() {
	initTask := task.NewInit(nil)

	image, err := loadInitImage(initShellPath)
	if err != nil {
		kfmt.Printf("kmain: %s unavailable (%s), init has nothing to exec yet\n", initShellPath, err.Message)
		sched.Enqueue(initTask.Threads[0], sched.PolicyCFS, 0)
		return
	}

	if err := task.Exec(initTask, image, nil, nil); err != nil {
		kfmt.Printf("kmain: exec %s failed: %s\n", initShellPath, err.Message)
	}
	sched.Enqueue(initTask.Threads[0], sched.PolicyCFS, 0)
}

// loadInitImage reads path's entire contents into memory for task.Exec to
// parse as an ELF image, the same read-loop kernel/syscall's own execve
// handler uses.
func loadInitImage(path string) ([]byte, *kernel.Error) {
	file, ferr := fs.Open(path, fs.ORdOnly, 0)
	if ferr != nil {
		return nil, ferr
	}

	var image []byte
	buf := make([]byte, 4096)
	for {
		n, rerr := file.Read(buf)
		if rerr != nil {
			return nil, rerr
		}
		if n == 0 {
			return image, nil
		}
		image = append(image, buf[:n]...)
	}
}
