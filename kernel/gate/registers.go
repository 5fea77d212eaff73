package gate

import (
	"io"

	"github.com/whampson/ohwes/kernel/kfmt"
)

// Registers contains a snapshot of the register values when an exception,
// interrupt or system call occurs. The layout matches the frame built by the
// entry stubs: the PUSHAL block, the vector and error code pushed by the
// stub and the return frame pushed by the CPU.
type Registers struct {
	EDI       uint32
	ESI       uint32
	EBP       uint32
	KernelESP uint32 // ESP value saved by PUSHAL; ignored by POPAL
	EBX       uint32
	EDX       uint32
	ECX       uint32
	EAX       uint32

	// Vector is the IDT slot that was raised.
	Vector uint32

	// ErrorCode is the error code pushed by the CPU for some exceptions or
	// 0 for all other vectors.
	ErrorCode uint32

	// The return frame used by IRETL.
	EIP    uint32
	CS     uint32
	EFlags uint32

	// ESP and SS are only pushed by the CPU when the trap crossed from
	// ring 3 to ring 0.
	ESP uint32
	SS  uint32
}

// FromUser returns true if the trap interrupted code running in ring 3.
func (r *Registers) FromUser() bool {
	return r.CS&3 == 3
}

// SetReturn stores the system call result in EAX.
func (r *Registers) SetReturn(v int32) {
	r.EAX = uint32(v)
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "EAX = %8x EBX = %8x\n", r.EAX, r.EBX)
	kfmt.Fprintf(w, "ECX = %8x EDX = %8x\n", r.ECX, r.EDX)
	kfmt.Fprintf(w, "ESI = %8x EDI = %8x\n", r.ESI, r.EDI)
	kfmt.Fprintf(w, "EBP = %8x\n", r.EBP)
	kfmt.Fprintf(w, "VEC = %8x ERR = %8x\n", r.Vector, r.ErrorCode)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "EIP = %8x CS  = %8x\n", r.EIP, r.CS)
	if r.FromUser() {
		kfmt.Fprintf(w, "ESP = %8x SS  = %8x\n", r.ESP, r.SS)
	}
	kfmt.Fprintf(w, "EFL = %8x\n", r.EFlags)
}
