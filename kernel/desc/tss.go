package desc

import (
	"io"

	"github.com/whampson/ohwes/kernel/kfmt"
)

// TSS mirrors the 32-bit hardware task state segment. Only the ring 0 stack
// fields are used; the kernel does not rely on hardware task switching.
type TSS struct {
	PrevTask uint16
	_        uint16
	ESP0     uint32
	SS0      uint16
	_        uint16
	ESP1     uint32
	SS1      uint16
	_        uint16
	ESP2     uint32
	SS2      uint16
	_        uint16

	CR3    uint32
	EIP    uint32
	EFlags uint32
	EAX    uint32
	ECX    uint32
	EDX    uint32
	EBX    uint32
	ESP    uint32
	EBP    uint32
	ESI    uint32
	EDI    uint32

	ES  uint16
	_   uint16
	CS  uint16
	_   uint16
	SS  uint16
	_   uint16
	DS  uint16
	_   uint16
	FS  uint16
	_   uint16
	GS  uint16
	_   uint16
	LDT uint16
	_   uint16

	Trap      uint16
	IOMapBase uint16
}

// CurrentTSS returns the task state segment at its fixed location.
func CurrentTSS() *TSS {
	return (*TSS)(ptrTo(TSSBase))
}

// SetKernelStack sets the stack loaded by the CPU when an interrupt or system
// call raises the privilege level to ring 0.
func SetKernelStack(esp0 uint32) {
	CurrentTSS().ESP0 = esp0
}

// DumpTo writes the privilege transition fields of the TSS to w.
func (t *TSS) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "TSS base=0x%8x ss0=0x%4x esp0=0x%8x ldt=0x%4x iomap=0x%4x\n", uint32(TSSBase), t.SS0, t.ESP0, t.LDT, t.IOMapBase)
}
