// Package cpu wraps the privileged x86 instructions used by the kernel:
// interrupt flag control, port I/O, halting and loading the descriptor table
// registers. On 386 these are implemented in assembly; on every other GOARCH
// they are forwarded to a machine model attached with Attach.
package cpu

import "encoding/binary"

// FlagInterruptEnable is the IF bit of EFLAGS.
const FlagInterruptEnable = 1 << 9

// postPort is an unused port that can be written to in order to give slow
// devices (e.g. the 8259A) time to settle between consecutive commands.
const postPort = 0x80

// DescriptorTableRegister is the 6-byte pseudo-descriptor operand of the
// LGDT and LIDT instructions: a 16-bit limit followed by a 32-bit linear base
// address.
type DescriptorTableRegister [6]byte

// NewDescriptorTableRegister packs base and limit into a pseudo-descriptor.
func NewDescriptorTableRegister(base uint32, limit uint16) DescriptorTableRegister {
	var r DescriptorTableRegister
	binary.LittleEndian.PutUint16(r[0:2], limit)
	binary.LittleEndian.PutUint32(r[2:6], base)
	return r
}

// Base returns the linear base address of the table.
func (r *DescriptorTableRegister) Base() uint32 {
	return binary.LittleEndian.Uint32(r[2:6])
}

// Limit returns the table size in bytes minus one.
func (r *DescriptorTableRegister) Limit() uint16 {
	return binary.LittleEndian.Uint16(r[0:2])
}

// InterruptsEnabled returns true if the CPU currently accepts maskable
// interrupts.
func InterruptsEnabled() bool {
	return Flags()&FlagInterruptEnable != 0
}

// SaveAndDisableInterrupts clears the interrupt flag and returns its previous
// state so that it can be handed to RestoreInterrupts.
func SaveAndDisableInterrupts() bool {
	enabled := InterruptsEnabled()
	DisableInterrupts()
	return enabled
}

// RestoreInterrupts re-enables interrupts if enabled is true.
func RestoreInterrupts(enabled bool) {
	if enabled {
		EnableInterrupts()
	}
}

// IOWait performs a write to an unused port which takes long enough for
// legacy devices to process the previous command.
func IOWait() {
	PortWriteByte(postPort, 0)
}
