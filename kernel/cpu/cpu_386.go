package cpu

// EnableInterrupts sets the interrupt flag.
func EnableInterrupts()

// DisableInterrupts clears the interrupt flag.
func DisableInterrupts()

// Flags returns the contents of the EFLAGS register.
func Flags() uint32

// Halt clears the interrupt flag and stops instruction execution.
func Halt()

// WaitForInterrupt enables interrupts and halts until the next interrupt has
// been serviced.
func WaitForInterrupt()

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// LoadGDT loads the global descriptor table register.
func LoadGDT(r *DescriptorTableRegister)

// LoadIDT loads the interrupt descriptor table register.
func LoadIDT(r *DescriptorTableRegister)

// LoadLDT loads the local descriptor table register with a GDT selector.
func LoadLDT(sel uint16)

// LoadTR loads the task register with a GDT selector.
func LoadTR(sel uint16)

// ReloadSegments reloads CS with code and the data segment registers with
// data. It must be called after LoadGDT for the new descriptors to take
// effect.
func ReloadSegments(code, data uint16)
