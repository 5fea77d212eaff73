// Package kmain brings up the interrupt and system call core and hands the
// CPU to the initial task.
package kmain

import (
	"io"

	"github.com/whampson/ohwes/device/chardev"
	"github.com/whampson/ohwes/device/tty"
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/cpu"
	"github.com/whampson/ohwes/kernel/desc"
	"github.com/whampson/ohwes/kernel/gate"
	"github.com/whampson/ohwes/kernel/hal"
	"github.com/whampson/ohwes/kernel/irq"
	"github.com/whampson/ohwes/kernel/kfmt"
	"github.com/whampson/ohwes/kernel/syscall"
	"github.com/whampson/ohwes/kernel/task"
	"github.com/whampson/ohwes/kernel/usermem"

	// Drivers register themselves with the HAL when imported.
	_ "github.com/whampson/ohwes/device/kbd"
)

const (
	// DefaultKernelStack is the ring 0 stack top loaded on privilege
	// changes when the boot code does not provide one.
	DefaultKernelStack = 0x00090000

	// DefaultUserLimit is the size of the identity mapped user address
	// space.
	DefaultUserLimit = 0x00400000

	// InitTaskID is the ID of the first user task.
	InitTaskID = 1
)

// Config describes the environment the core is brought up in.
type Config struct {
	// KernelStack is the stack top stored in TSS.ESP0.
	KernelStack uint32

	// UserMem is the address space of the initial task. If nil, a flat
	// identity mapped space of DefaultUserLimit bytes is used.
	UserMem usermem.IO

	// Console receives kernel output. If nil, output stays buffered until
	// a console is attached.
	Console io.Writer
}

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errNoConsole     = &kernel.Error{Module: "kmain", Message: "no console device for the initial task"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	enableInterruptsFn = cpu.EnableInterrupts
	waitFn             = cpu.WaitForInterrupt
)

// Boot initializes the descriptor tables, the interrupt controller, the
// system call layer and the device drivers, creates the initial task with
// descriptors 0, 1 and 2 open on the console terminal and enables
// interrupts. Boot returns the first error encountered; interrupts stay
// disabled in that case.
func Boot(cfg Config) *kernel.Error {
	if cfg.KernelStack == 0 {
		cfg.KernelStack = DefaultKernelStack
	}
	if cfg.UserMem == nil {
		cfg.UserMem = usermem.Flat{Limit: DefaultUserLimit}
	}
	if cfg.Console != nil {
		hal.AttachConsole(cfg.Console)
	}

	var err *kernel.Error
	if err = desc.InitGDT(); err != nil {
		return err
	} else if err = desc.InitLDT(); err != nil {
		return err
	} else if err = desc.InitTSS(cfg.KernelStack); err != nil {
		return err
	} else if err = gate.Init(); err != nil {
		return err
	}

	irq.Init()

	if err = syscall.Init(); err != nil {
		return err
	}

	hal.DetectHardware()

	t, err := StartTask(InitTaskID, cfg.UserMem)
	if err != nil {
		return err
	}
	task.SetCurrent(t)

	kfmt.Printf("[kmain] task %d ready, irq mask 0x%4x\n", t.ID, irq.GetMask())
	enableInterruptsFn()
	return nil
}

// StartTask creates a task with the console terminal open on its standard
// descriptors. The task does not become current.
func StartTask(id uint32, mem usermem.IO) (*task.Task, *kernel.Error) {
	major, minor, ok := chardev.ResolveNode(tty.NodePath)
	if !ok {
		return nil, errNoConsole
	}
	dev := chardev.Lookup(major)
	if dev == nil || dev.Open(minor, abi.O_RDWR) != nil {
		return nil, errNoConsole
	}

	t := task.New(id, mem)
	t.Files.Install(task.NewFile(major, minor, abi.O_RDWR, dev))
	t.Files.Dup(0)
	t.Files.Dup(0)
	return t, nil
}

// Kmain is invoked by the rt0 code after it has set up a stack and a minimal
// g0 struct. It boots the core and idles while the initial task is alive.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(kernelStackTop uintptr) {
	if err := Boot(Config{KernelStack: uint32(kernelStackTop)}); err != nil {
		kfmt.Panic(err)
		return
	}

	for t := task.Current(); t != nil && !t.Exited; t = task.Current() {
		waitFn()
	}

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	kfmt.Panic(errKmainReturned)
}
