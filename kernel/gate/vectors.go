package gate

import "github.com/whampson/ohwes/kernel/abi"

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// Debug is raised by debug registers and single stepping.
	Debug = InterruptNumber(1)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems.
	NMI = InterruptNumber(2)

	// Breakpoint is raised by the INT3 instruction.
	Breakpoint = InterruptNumber(3)

	// Overflow is raised by INTO when the overflow flag is set.
	Overflow = InterruptNumber(4)

	// BoundRangeExceeded occurs when the BOUND instruction is invoked with
	// an index out of range.
	BoundRangeExceeded = InterruptNumber(5)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DeviceNotAvailable occurs when the CPU attempts to execute an FPU
	// instruction while no FPU is available.
	DeviceNotAvailable = InterruptNumber(7)

	// DoubleFault occurs when an exception occurs while the CPU is trying
	// to deliver another exception.
	DoubleFault = InterruptNumber(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = InterruptNumber(10)

	// SegmentNotPresent occurs when a segment or gate with a cleared
	// present bit is used.
	SegmentNotPresent = InterruptNumber(11)

	// StackSegmentFault occurs when the stack segment limit check fails.
	StackSegmentFault = InterruptNumber(12)

	// GPFException occurs when a general protection fault occurs, e.g. when
	// ring 3 code raises a vector whose gate has DPL 0.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page is not present or a protection
	// check fails.
	PageFaultException = InterruptNumber(14)

	// FloatingPointException is raised by an unmasked x87 exception.
	FloatingPointException = InterruptNumber(16)

	// AlignmentCheck occurs when alignment checks are enabled and an
	// unaligned memory access is performed.
	AlignmentCheck = InterruptNumber(17)

	// MachineCheck occurs when the CPU detects internal errors.
	MachineCheck = InterruptNumber(18)

	// SIMDFloatingPointException is raised by an unmasked SSE exception.
	SIMDFloatingPointException = InterruptNumber(19)

	// Syscall is the system call gate.
	Syscall = InterruptNumber(abi.SyscallVector)
)

var exceptionNames = [abi.NumExceptions]string{
	"divide error", "debug", "nmi", "breakpoint", "overflow", "bound range exceeded",
	"invalid opcode", "device not available", "double fault", "coprocessor segment overrun",
	"invalid tss", "segment not present", "stack segment fault", "general protection fault",
	"page fault", "reserved", "x87 floating point", "alignment check", "machine check",
	"simd floating point", "virtualization", "control protection", "reserved", "reserved",
	"reserved", "reserved", "reserved", "reserved", "hypervisor injection",
	"vmm communication", "security", "reserved",
}

// String returns a short description of the vector.
func (n InterruptNumber) String() string {
	switch Classify(uint8(n)) {
	case ClassException:
		return exceptionNames[n]
	case ClassIRQ:
		return "irq"
	case ClassSyscall:
		return "syscall"
	}
	return "unassigned"
}

// HasErrorCode returns true for the exceptions that make the CPU push an
// error code.
func (n InterruptNumber) HasErrorCode() bool {
	switch n {
	case DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault, GPFException, PageFaultException, AlignmentCheck, 21, 29, 30:
		return true
	}
	return false
}

// Class is the category of a vector.
type Class uint8

// Vector classes.
const (
	ClassUnassigned Class = iota
	ClassException
	ClassIRQ
	ClassSyscall
)

var classNames = [...]string{"unassigned", "exception", "irq", "syscall"}

// String returns the class name.
func (c Class) String() string {
	if int(c) >= len(classNames) {
		return classNames[ClassUnassigned]
	}
	return classNames[c]
}

// Classify returns the class of vector.
func Classify(vector uint8) Class {
	switch {
	case vector < abi.NumExceptions:
		return ClassException
	case vector >= abi.IRQBase && vector < abi.IRQBase+abi.NumIRQs:
		return ClassIRQ
	case vector == abi.SyscallVector:
		return ClassSyscall
	}
	return ClassUnassigned
}
