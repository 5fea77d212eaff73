//go:build !386

package cpu

// Backend is implemented by machine models that stand in for the hardware
// when the kernel packages are built for a hosted GOARCH.
type Backend interface {
	SetInterruptFlag(enabled bool)
	InterruptFlag() bool
	Halt()

	// WaitForInterrupt sets IF and idles until an interrupt has been
	// serviced. An interrupt that is already pending ends the wait.
	WaitForInterrupt()
	PortWriteByte(port uint16, val uint8)
	PortReadByte(port uint16) uint8
	LoadGDT(base uint32, limit uint16)
	LoadIDT(base uint32, limit uint16)
	LoadLDT(sel uint16)
	LoadTR(sel uint16)
	ReloadSegments(code, data uint16)
}

var backend Backend = detached{}

// Attach routes all instructions to b and returns the previously attached
// backend. Passing nil detaches the current backend.
func Attach(b Backend) Backend {
	prev := backend
	if b == nil {
		b = detached{}
	}
	backend = b
	return prev
}

// EnableInterrupts sets the interrupt flag.
func EnableInterrupts() { backend.SetInterruptFlag(true) }

// DisableInterrupts clears the interrupt flag.
func DisableInterrupts() { backend.SetInterruptFlag(false) }

// Flags returns the contents of the EFLAGS register. Only IF is modelled.
func Flags() uint32 {
	if backend.InterruptFlag() {
		return FlagInterruptEnable
	}
	return 0
}

// Halt clears the interrupt flag and stops instruction execution.
func Halt() {
	backend.SetInterruptFlag(false)
	backend.Halt()
}

// WaitForInterrupt enables interrupts and halts until the next interrupt has
// been serviced.
func WaitForInterrupt() {
	backend.WaitForInterrupt()
}

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8) { backend.PortWriteByte(port, val) }

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8 { return backend.PortReadByte(port) }

// LoadGDT loads the global descriptor table register.
func LoadGDT(r *DescriptorTableRegister) { backend.LoadGDT(r.Base(), r.Limit()) }

// LoadIDT loads the interrupt descriptor table register.
func LoadIDT(r *DescriptorTableRegister) { backend.LoadIDT(r.Base(), r.Limit()) }

// LoadLDT loads the local descriptor table register with a GDT selector.
func LoadLDT(sel uint16) { backend.LoadLDT(sel) }

// LoadTR loads the task register with a GDT selector.
func LoadTR(sel uint16) { backend.LoadTR(sel) }

// ReloadSegments reloads CS with code and the data segment registers with
// data.
func ReloadSegments(code, data uint16) { backend.ReloadSegments(code, data) }

// detached is used while no machine model is attached. Any attempt to execute
// a privileged instruction is a programming error in the caller.
type detached struct{}

func (detached) SetInterruptFlag(bool)         { panic(errDetached) }
func (detached) InterruptFlag() bool           { return false }
func (detached) Halt()                         { panic(errDetached) }
func (detached) WaitForInterrupt()             { panic(errDetached) }
func (detached) PortWriteByte(uint16, uint8)   { panic(errDetached) }
func (detached) PortReadByte(uint16) uint8     { panic(errDetached) }
func (detached) LoadGDT(uint32, uint16)        { panic(errDetached) }
func (detached) LoadIDT(uint32, uint16)        { panic(errDetached) }
func (detached) LoadLDT(uint16)                { panic(errDetached) }
func (detached) LoadTR(uint16)                 { panic(errDetached) }
func (detached) ReloadSegments(uint16, uint16) { panic(errDetached) }

const errDetached = "cpu: privileged instruction executed without an attached machine"
