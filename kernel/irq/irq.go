// Package irq drives the legacy 8259A interrupt controller pair and routes
// hardware interrupts to the driver registered for each line.
//
// Each of the 16 lines has at most one handler. Registration state is only
// changed with interrupts disabled; Dispatch runs in interrupt context and
// always acknowledges the controller, even if nobody handles the line.
package irq

import (
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/kfmt"
)

// Line identifies one of the hardware interrupt lines.
type Line uint8

// The hardware interrupt lines of a PC/AT.
const (
	Timer Line = iota
	Keyboard
	Cascade
	COM2
	COM1
	LPT2
	Floppy
	LPT1
	RTC
	ACPI
	Free1
	Free2
	Mouse
	FPU
	PrimaryATA
	SecondaryATA

	// NumLines is the number of hardware interrupt lines.
	NumLines
)

var lineNames = [NumLines]string{
	"timer", "keyboard", "cascade", "com2", "com1", "lpt2", "floppy", "lpt1",
	"rtc", "acpi", "free1", "free2", "mouse", "fpu", "ata0", "ata1",
}

// String returns the name of the device wired to the line.
func (l Line) String() string {
	if l >= NumLines {
		return "invalid"
	}
	return lineNames[l]
}

// Vector returns the IDT vector the line is delivered on.
func (l Line) Vector() uint8 {
	return abi.IRQBase + uint8(l)
}

func (l Line) bit() uint16 {
	return 1 << l
}

// LineForVector returns the line delivered on vector. The second return value
// is false if vector is not an IRQ vector.
func LineForVector(vector uint8) (Line, bool) {
	if vector < abi.IRQBase || vector >= abi.IRQBase+uint8(NumLines) {
		return 0, false
	}
	return Line(vector - abi.IRQBase), true
}

// Handler services an interrupt on a hardware line. HandleIRQ runs with
// interrupts disabled and must not block. Implementations must be comparable
// (typically a pointer) so that UnregisterHandler can match them.
type Handler interface {
	HandleIRQ(line Line)
}

// Stats holds delivery counters for a line.
type Stats struct {
	// Delivered counts non-spurious interrupts.
	Delivered uint32

	// Unhandled counts interrupts that arrived with no handler bound.
	Unhandled uint32
}

var (
	handlers [NumLines]Handler
	stats    [NumLines]Stats
	spurious uint32

	errBadLine    = &kernel.Error{Module: "irq", Message: "invalid or reserved IRQ line"}
	errNilHandler = &kernel.Error{Module: "irq", Message: "nil IRQ handler"}
	errLineInUse  = &kernel.Error{Module: "irq", Message: "IRQ line already has a handler"}
)

// Init remaps the controllers to abi.IRQBase, masks every line except the
// cascade and drops all registrations.
func Init() {
	enabled := saveAndDisableInterruptsFn()
	programPIC()
	SetMask(0xffff &^ Cascade.bit())

	for i := range handlers {
		handlers[i] = nil
		stats[i] = Stats{}
	}
	spurious = 0
	restoreInterruptsFn(enabled)
}

// Register binds h to line and unmasks it. It fails if the line already has
// a handler; the existing binding is left untouched.
func Register(line Line, h Handler) *kernel.Error {
	if line >= NumLines || line == Cascade {
		return errBadLine
	}
	if h == nil {
		return errNilHandler
	}

	enabled := saveAndDisableInterruptsFn()
	if handlers[line] != nil {
		restoreInterruptsFn(enabled)
		return errLineInUse
	}

	handlers[line] = h
	Unmask(line)
	restoreInterruptsFn(enabled)
	return nil
}

// Unregister masks line and removes its handler. It is a no-op if the line
// has no handler.
func Unregister(line Line) {
	if line >= NumLines {
		return
	}

	enabled := saveAndDisableInterruptsFn()
	if handlers[line] != nil {
		Mask(line)
		handlers[line] = nil
	}
	restoreInterruptsFn(enabled)
}

// UnregisterHandler behaves like Unregister but only if h is the handler
// bound to line.
func UnregisterHandler(line Line, h Handler) {
	if line >= NumLines || h == nil {
		return
	}

	enabled := saveAndDisableInterruptsFn()
	if handlers[line] == h {
		Mask(line)
		handlers[line] = nil
	}
	restoreInterruptsFn(enabled)
}

// HandlerFor returns the handler bound to line or nil.
func HandlerFor(line Line) Handler {
	if line >= NumLines {
		return nil
	}
	return handlers[line]
}

// StatsFor returns the delivery counters of line.
func StatsFor(line Line) Stats {
	if line >= NumLines {
		return Stats{}
	}
	return stats[line]
}

// Spurious returns the number of spurious interrupts seen on lines 7 and 15.
func Spurious() uint32 {
	return spurious
}

// Dispatch services an interrupt on line. It is called by the trap
// dispatcher with interrupts disabled.
func Dispatch(line Line) {
	if line >= NumLines {
		return
	}

	// The lowest priority line of each controller is reported when a
	// request goes away before it is acknowledged. Such interrupts must
	// not be acknowledged on the controller that raised them.
	if (line == LPT1 || line == SecondaryATA) && !inService(line) {
		spurious++
		if line == SecondaryATA {
			End(Cascade)
		}
		return
	}

	stats[line].Delivered++
	if h := handlers[line]; h != nil {
		h.HandleIRQ(line)
	} else if stats[line].Unhandled++; stats[line].Unhandled == 1 {
		kfmt.Printf("[irq] unhandled interrupt on line %d (%s)\n", uint8(line), line.String())
	}

	End(line)
}
