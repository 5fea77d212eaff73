// Package task holds the state of the task that owns the CPU: its file
// descriptors, its address space and its exit status. Scheduling is not
// handled here; a scheduler replaces the exit and wait hooks.
package task

import (
	"github.com/whampson/ohwes/kernel/cpu"
	"github.com/whampson/ohwes/kernel/kfmt"
	"github.com/whampson/ohwes/kernel/usermem"
)

// Task is a user task.
type Task struct {
	ID    uint32
	Files FileTable
	Mem   usermem.IO

	Exited     bool
	ExitStatus int32
}

var (
	current *Task

	// exitFn is invoked after a task has terminated. Without a scheduler
	// there is nothing left to run, so the default halts the CPU.
	exitFn = func(t *Task) {
		kfmt.Printf("[task] task %d exited with status %d\n", t.ID, t.ExitStatus)
		cpuHaltFn()
	}

	// waitFn idles the CPU until the next interrupt.
	waitFn = waitForInterrupt

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	cpuHaltFn              = cpu.Halt
	cpuWaitForInterruptFn  = cpu.WaitForInterrupt
	interruptsEnabledFn    = cpu.InterruptsEnabled
	cpuDisableInterruptsFn = cpu.DisableInterrupts
)

// New returns a task with an empty descriptor table.
func New(id uint32, mem usermem.IO) *Task {
	return &Task{ID: id, Mem: mem}
}

// Current returns the task that owns the CPU or nil during boot.
func Current() *Task {
	return current
}

// SetCurrent makes t the task that owns the CPU.
func SetCurrent(t *Task) {
	current = t
}

// SetExitHook replaces the function invoked when a task terminates and
// returns the previous one.
func SetExitHook(fn func(*Task)) func(*Task) {
	prev := exitFn
	exitFn = fn
	return prev
}

// SetWaitHook replaces the function used by Wait and returns the previous
// one.
func SetWaitHook(fn func()) func() {
	prev := waitFn
	waitFn = fn
	return prev
}

// Terminate records status, closes all descriptors and hands the task to
// the exit hook. Terminating an exited task has no effect.
func (t *Task) Terminate(status int32) {
	if t.Exited {
		return
	}

	t.Exited = true
	t.ExitStatus = status
	t.Files.CloseAll()
	exitFn(t)
}

// Wait blocks the task until something happens that may change the outcome
// of the operation it is waiting on. Callers re-check their condition
// afterwards.
func (t *Task) Wait() {
	waitFn()
}

// waitForInterrupt is the default wait hook. The CPU idles with interrupts
// enabled; if they were disabled on entry, as they are inside a system
// call, they are disabled again before returning to the caller.
func waitForInterrupt() {
	enabled := interruptsEnabledFn()
	cpuWaitForInterruptFn()
	if !enabled {
		cpuDisableInterruptsFn()
	}
}
