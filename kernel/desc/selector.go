package desc

// Selector is a segment selector: a descriptor index, a table indicator (GDT
// or LDT) and a requested privilege level.
type Selector uint16

// Segment selectors for the fixed GDT and LDT layout.
const (
	KernelCS Selector = 0x08
	KernelDS Selector = 0x10
	UserCS   Selector = 0x1b
	UserDS   Selector = 0x23
	TSSSel   Selector = 0x28
	LDTSel   Selector = 0x30

	LDTUserCS Selector = 0x07
	LDTUserDS Selector = 0x0f
)

const (
	selectorRPLMask = 0x3
	selectorTIBit   = 1 << 2
	selectorShift   = 3
)

// MakeSelector assembles a selector for descriptor index in the GDT (or the
// LDT if ldt is true) with requested privilege level rpl.
func MakeSelector(index uint16, ldt bool, rpl uint8) Selector {
	s := Selector(index<<selectorShift) | Selector(rpl&selectorRPLMask)
	if ldt {
		s |= selectorTIBit
	}
	return s
}

// Index returns the descriptor index the selector refers to.
func (s Selector) Index() uint16 { return uint16(s) >> selectorShift }

// RPL returns the requested privilege level.
func (s Selector) RPL() uint8 { return uint8(s & selectorRPLMask) }

// TableIndicator returns true if the selector refers to the LDT.
func (s Selector) TableIndicator() bool { return s&selectorTIBit != 0 }

// IsNull returns true for the null selector of the GDT. Loading it into a
// segment register used for an access causes a general protection fault.
func (s Selector) IsNull() bool { return !s.TableIndicator() && s.Index() == 0 }
