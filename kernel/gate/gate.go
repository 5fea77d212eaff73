// Package gate owns the interrupt descriptor table entry points and the
// common trap dispatcher. Every vector enters through a small stub that
// saves the interrupted context and calls Dispatch, which routes exceptions
// to their handlers (or applies the fault policy), hardware interrupts to
// the irq package and the system call vector to the installed system call
// handler.
package gate

import (
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/desc"
	"github.com/whampson/ohwes/kernel/irq"
	"github.com/whampson/ohwes/kernel/kfmt"
	"github.com/whampson/ohwes/kernel/task"
)

// Phase is the stage a trap event is in.
type Phase uint8

// Trap event phases.
const (
	PhaseIdle Phase = iota
	PhaseEntered
	PhaseClassified
	PhaseHandled
	PhaseReturned
)

var phaseNames = [...]string{"idle", "entered", "classified", "handled", "returned"}

// String returns the phase name.
func (p Phase) String() string {
	if int(p) >= len(phaseNames) {
		return "invalid"
	}
	return phaseNames[p]
}

// Event describes a phase transition of a trap. It is passed to the trace
// hook.
type Event struct {
	Phase    Phase
	Vector   uint8
	Class    Class
	Depth    uint8
	FromUser bool
}

var (
	handlers    [abi.NumVectors]func(*Registers)
	entryPoints [abi.NumVectors]uintptr

	// depth counts the traps currently being serviced; exceptionDepth
	// only counts exceptions.
	depth          uint8
	exceptionDepth uint8
	phase          Phase

	traceFn func(Event)

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	irqDispatchFn = irq.Dispatch
	panicFn       = kfmt.Panic
	currentTaskFn = task.Current

	errBadVector   = &kernel.Error{Module: "gate", Message: "handlers can only be installed for exception and system call vectors"}
	errDoubleFault = &kernel.Error{Module: "gate", Message: "double fault"}
	errKernelFault = &kernel.Error{Module: "gate", Message: "unhandled exception in kernel mode"}
	errNestedFault = &kernel.Error{Module: "gate", Message: "exception while handling an exception"}
	errUnassigned  = &kernel.Error{Module: "gate", Message: "unassigned interrupt vector"}
	errNoTask      = &kernel.Error{Module: "gate", Message: "user mode exception without a current task"}
)

// Init sets up the entry stubs for all vectors and loads the IDT. The GDT,
// LDT and TSS must have been initialized.
func Init() *kernel.Error {
	initEntryPoints(&entryPoints)

	for i := range handlers {
		handlers[i] = nil
	}
	depth, exceptionDepth, phase = 0, 0, PhaseIdle

	return desc.InitIDT(EntryPoint)
}

// EntryPoint returns the address of the entry stub for vector.
func EntryPoint(vector uint8) uintptr {
	return entryPoints[vector]
}

// VectorForEntry maps an entry stub address back to its vector.
func VectorForEntry(addr uintptr) (uint8, bool) {
	for vector, entry := range entryPoints {
		if entry == addr && entry != 0 {
			return uint8(vector), true
		}
	}
	return 0, false
}

// HandleInterrupt ensures that the provided handler will be invoked when a
// particular exception or the system call vector is raised. Hardware
// interrupts are always routed through the irq package. Passing a nil
// handler restores the default behavior for the vector.
func HandleInterrupt(intNumber InterruptNumber, handler func(*Registers)) *kernel.Error {
	switch Classify(uint8(intNumber)) {
	case ClassException, ClassSyscall:
		handlers[intNumber] = handler
		return nil
	}
	return errBadVector
}

// SetTraceHook installs fn as an observer of trap phase transitions and
// returns the previous hook. fn runs in interrupt context.
func SetTraceHook(fn func(Event)) func(Event) {
	prev := traceFn
	traceFn = fn
	return prev
}

// CurrentPhase returns the phase of the innermost trap being serviced.
func CurrentPhase() Phase {
	return phase
}

// Depth returns the number of traps currently being serviced.
func Depth() uint8 {
	return depth
}

func enterPhase(p Phase, vector uint8, class Class, fromUser bool) {
	phase = p
	if traceFn != nil {
		traceFn(Event{Phase: p, Vector: vector, Class: class, Depth: depth, FromUser: fromUser})
	}
}

// Dispatch services the trap described by regs. It is invoked by the entry
// stubs with interrupts disabled; any changes to regs are restored into the
// interrupted context on return.
func Dispatch(regs *Registers) {
	var (
		vector   = uint8(regs.Vector)
		fromUser = regs.FromUser()
	)

	depth++
	enterPhase(PhaseEntered, vector, ClassUnassigned, fromUser)

	class := Classify(vector)
	enterPhase(PhaseClassified, vector, class, fromUser)

	switch class {
	case ClassIRQ:
		line, _ := irq.LineForVector(vector)
		irqDispatchFn(line)
	case ClassSyscall:
		if h := handlers[vector]; h != nil {
			h(regs)
		} else {
			regs.SetReturn(abi.ENOSYS.Ret())
		}
	case ClassException:
		exceptionDepth++
		handleException(regs)
		exceptionDepth--
	default:
		fatal(regs, errUnassigned)
	}

	enterPhase(PhaseHandled, vector, class, fromUser)
	depth--
	enterPhase(PhaseReturned, vector, class, fromUser)
	if depth == 0 {
		phase = PhaseIdle
	}
}

// handleException applies the fault policy: double faults and faults raised
// while another exception is being handled are fatal; installed handlers get
// the first chance at everything else; unhandled faults terminate the
// offending task if they came from user mode and are fatal otherwise.
func handleException(regs *Registers) {
	vector := InterruptNumber(regs.Vector)

	switch {
	case vector == DoubleFault:
		fatal(regs, errDoubleFault)
	case exceptionDepth > 1:
		fatal(regs, errNestedFault)
	case handlers[vector] != nil:
		handlers[vector](regs)
	case !regs.FromUser():
		fatal(regs, errKernelFault)
	default:
		t := currentTaskFn()
		if t == nil {
			fatal(regs, errNoTask)
			return
		}

		kfmt.Printf("[gate] task %d: %s (error 0x%x) at eip 0x%8x; terminating\n", t.ID, vector.String(), regs.ErrorCode, regs.EIP)
		t.Terminate(128 + int32(vector))
	}
}

// fatal prints a diagnostic dump of the trap and panics.
func fatal(regs *Registers, err *kernel.Error) {
	vector := InterruptNumber(regs.Vector)

	kfmt.Printf("\n[gate] fatal trap: vector %d (%s) error 0x%x depth %d\n", uint8(vector), vector.String(), regs.ErrorCode, depth)
	regs.DumpTo(kfmt.GetOutputSink())
	panicFn(err)
}
