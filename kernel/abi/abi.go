// Package abi defines the numbers shared between user space and the kernel:
// trap vectors, system call numbers, error codes, open flags and ioctl
// commands. Nothing in here may change without breaking user programs.
package abi

// Trap vector layout of the IDT.
const (
	// NumExceptions is the number of vectors reserved for CPU exceptions.
	NumExceptions = 32

	// IRQBase is the vector the master PIC is remapped to. The slave PIC
	// follows at IRQBase+8.
	IRQBase = 0x20

	// NumIRQs is the number of hardware interrupt lines.
	NumIRQs = 16

	// SyscallVector is the only vector that user code may raise with INT.
	SyscallVector = 0x80

	// NumVectors is the number of IDT slots.
	NumVectors = 256
)

// System call numbers. Arguments are passed in EBX, ECX and EDX, the number
// in EAX; the result (or a negated Errno) is returned in EAX.
const (
	SysExit = iota
	SysRead
	SysWrite
	SysOpen
	SysClose
	SysIoctl
	SysDup
	SysDup2

	// NRSyscalls is the size of the system call table.
	NRSyscalls
)

var syscallNames = [NRSyscalls]string{
	SysExit:  "_exit",
	SysRead:  "read",
	SysWrite: "write",
	SysOpen:  "open",
	SysClose: "close",
	SysIoctl: "ioctl",
	SysDup:   "dup",
	SysDup2:  "dup2",
}

// SyscallName returns the name of system call nr or "invalid" if nr is out of
// range.
func SyscallName(nr uint32) string {
	if nr >= NRSyscalls {
		return "invalid"
	}
	return syscallNames[nr]
}

// Flags accepted by open.
const (
	O_RDONLY   = 0x0
	O_WRONLY   = 0x1
	O_RDWR     = 0x2
	O_ACCMODE  = 0x3
	O_NONBLOCK = 0x800
)

// Ioctl commands understood by the console and keyboard drivers.
const (
	// KDGKBMODE stores the current keyboard mode at the address passed as
	// the argument.
	KDGKBMODE = 0x4b44

	// KDSKBMODE sets the keyboard mode to the value of the argument.
	KDSKBMODE = 0x4b45

	// FIONREAD stores the number of bytes ready to be read at the address
	// passed as the argument.
	FIONREAD = 0x541b
)

// Keyboard modes for KDGKBMODE/KDSKBMODE.
const (
	// K_RAW delivers scancodes exactly as produced by the controller.
	K_RAW = 0x00

	// K_XLATE delivers translated characters.
	K_XLATE = 0x01

	// K_MEDIUMRAW delivers key codes (scancodes with prefixes folded in).
	K_MEDIUMRAW = 0x02
)
