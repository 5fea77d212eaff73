package desc

import (
	"io"

	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/kfmt"
)

// Kind identifies what a descriptor describes.
type Kind uint8

// The supported descriptor kinds.
const (
	KindInvalid Kind = iota
	KindCode
	KindData
	KindTSS
	KindLDT
	KindInterruptGate
	KindTrapGate
	KindCallGate
)

var kindNames = [...]string{
	KindInvalid:       "invalid",
	KindCode:          "code",
	KindData:          "data",
	KindTSS:           "tss",
	KindLDT:           "ldt",
	KindInterruptGate: "int-gate",
	KindTrapGate:      "trap-gate",
	KindCallGate:      "call-gate",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if int(k) >= len(kindNames) {
		return kindNames[KindInvalid]
	}
	return kindNames[k]
}

// IsGate returns true for the gate kinds.
func (k Kind) IsGate() bool {
	return k == KindInterruptGate || k == KindTrapGate || k == KindCallGate
}

// Field layout of the 8 byte descriptor formats.
const (
	limitLowMask   = 0xffff
	baseLowShift   = 16
	baseLowMask    = 0xffffff
	typeShift      = 40
	typeMask       = 0xf
	segmentBit     = 1 << 44
	dplShift       = 45
	dplMask        = 0x3
	presentBit     = 1 << 47
	limitHighShift = 48
	limitHighMask  = 0xf
	size32Bit      = 1 << 54
	granularityBit = 1 << 55
	baseHighShift  = 56

	gateSelectorShift = 16
	gateParamShift    = 32
	gateParamMask     = 0x1f
	gateOffsetShift   = 48

	// Type field values.
	typeData      = 0x2 // read/write
	typeCode      = 0xa // execute/read
	typeCodeFlag  = 0x8
	typeLDT       = 0x2
	typeTSS       = 0x9
	typeTSSBusy   = 0xb
	typeCallGate  = 0xc
	typeIntGate   = 0xe
	typeTrapGate  = 0xf
	maxLimit      = 0xfffff
	maxParamCount = 0x1f
)

var (
	errBaseRange    = &kernel.Error{Module: "desc", Message: "base address does not fit in 32 bits"}
	errLimitRange   = &kernel.Error{Module: "desc", Message: "segment limit does not fit in 20 bits"}
	errDPLRange     = &kernel.Error{Module: "desc", Message: "privilege level must be in [0, 3]"}
	errTSSLimit     = &kernel.Error{Module: "desc", Message: "TSS limit too small"}
	errBadKind      = &kernel.Error{Module: "desc", Message: "unsupported descriptor kind"}
	errOffsetRange  = &kernel.Error{Module: "desc", Message: "gate offset does not fit in 32 bits"}
	errGateSelector = &kernel.Error{Module: "desc", Message: "gate selector must be a non-null GDT selector"}
	errParamCount   = &kernel.Error{Module: "desc", Message: "invalid gate parameter count"}
)

// Descriptor is a GDT, LDT or IDT entry in the packed 8 byte format expected
// by the CPU. The zero value is a not-present descriptor.
type Descriptor uint64

// Present returns true if the present bit is set.
func (d Descriptor) Present() bool { return d&presentBit != 0 }

// DPL returns the descriptor privilege level.
func (d Descriptor) DPL() uint8 { return uint8(d>>dplShift) & dplMask }

func (d Descriptor) typ() uint8 { return uint8(d>>typeShift) & typeMask }

// Kind decodes the descriptor type.
func (d Descriptor) Kind() Kind {
	if d&segmentBit != 0 {
		if d.typ()&typeCodeFlag != 0 {
			return KindCode
		}
		return KindData
	}

	switch d.typ() {
	case typeLDT:
		return KindLDT
	case typeTSS, typeTSSBusy:
		return KindTSS
	case typeCallGate:
		return KindCallGate
	case typeIntGate:
		return KindInterruptGate
	case typeTrapGate:
		return KindTrapGate
	}
	return KindInvalid
}

// Base returns the linear base address of a segment descriptor.
func (d Descriptor) Base() uint32 {
	return uint32(d>>baseLowShift)&baseLowMask | uint32(d>>baseHighShift)<<24
}

// Limit returns the raw 20-bit limit of a segment descriptor.
func (d Descriptor) Limit() uint32 {
	return uint32(d)&limitLowMask | (uint32(d>>limitHighShift)&limitHighMask)<<16
}

// Granularity4K returns true if the limit is expressed in 4K pages.
func (d Descriptor) Granularity4K() bool { return d&granularityBit != 0 }

// Size32 returns true for 32-bit code and data segments.
func (d Descriptor) Size32() bool { return d&size32Bit != 0 }

// Selector returns the target code segment of a gate descriptor.
func (d Descriptor) Selector() Selector { return Selector(d >> gateSelectorShift) }

// Offset returns the entry point of a gate descriptor.
func (d Descriptor) Offset() uint32 {
	return uint32(d)&0xffff | uint32(d>>gateOffsetShift)<<16
}

// ParamCount returns the number of stack words copied by a call gate.
func (d Descriptor) ParamCount() uint8 { return uint8(d>>gateParamShift) & gateParamMask }

// DumpTo writes a human readable decoding of d to w.
func (d Descriptor) DumpTo(w io.Writer) {
	if !d.Present() {
		kfmt.Fprintf(w, "not present")
		return
	}

	kind := d.Kind()
	if kind.IsGate() {
		kfmt.Fprintf(w, "%9s sel=0x%4x off=0x%8x dpl=%d", kind.String(), uint16(d.Selector()), d.Offset(), d.DPL())
		if kind == KindCallGate {
			kfmt.Fprintf(w, " params=%d", d.ParamCount())
		}
		return
	}

	kfmt.Fprintf(w, "%9s base=0x%8x limit=0x%5x dpl=%d g=%t d=%t", kind.String(), d.Base(), d.Limit(), d.DPL(), d.Granularity4K(), d.Size32())
}

// SegmentSpec describes a code, data, TSS or LDT descriptor.
type SegmentSpec struct {
	Kind Kind

	// Base is the linear start address of the segment.
	Base uint64

	// Limit is the size of the segment minus one, in bytes or in 4K pages
	// if Granularity4K is set.
	Limit uint32

	DPL           uint8
	Granularity4K bool

	// Size32 selects 32-bit operand and address size. It only applies to
	// code and data segments.
	Size32 bool
}

// Build validates s and packs it into a present descriptor.
func (s SegmentSpec) Build() (Descriptor, *kernel.Error) {
	var typ uint64
	switch s.Kind {
	case KindCode:
		typ = typeCode
	case KindData:
		typ = typeData
	case KindTSS:
		typ = typeTSS
		if !s.Granularity4K && s.Limit < TSSSize-1 {
			return 0, errTSSLimit
		}
	case KindLDT:
		typ = typeLDT
	default:
		return 0, errBadKind
	}

	switch {
	case s.Base > 0xffffffff:
		return 0, errBaseRange
	case s.Limit > maxLimit:
		return 0, errLimitRange
	case s.DPL > dplMask:
		return 0, errDPLRange
	}

	d := uint64(s.Limit)&limitLowMask |
		(s.Base&baseLowMask)<<baseLowShift |
		typ<<typeShift |
		uint64(s.DPL)<<dplShift |
		presentBit |
		uint64(s.Limit>>16)&limitHighMask<<limitHighShift |
		(s.Base>>24)<<baseHighShift

	if s.Kind == KindCode || s.Kind == KindData {
		d |= segmentBit
		if s.Size32 {
			d |= size32Bit
		}
	}
	if s.Granularity4K {
		d |= granularityBit
	}

	return Descriptor(d), nil
}

// GateSpec describes an interrupt, trap or call gate.
type GateSpec struct {
	Kind     Kind
	Selector Selector
	Offset   uint64
	DPL      uint8

	// ParamCount is the number of stack words copied on a call through a
	// call gate. It must be zero for the other gate kinds.
	ParamCount uint8
}

// Build validates g and packs it into a present descriptor.
func (g GateSpec) Build() (Descriptor, *kernel.Error) {
	var typ uint64
	switch g.Kind {
	case KindInterruptGate:
		typ = typeIntGate
	case KindTrapGate:
		typ = typeTrapGate
	case KindCallGate:
		typ = typeCallGate
	default:
		return 0, errBadKind
	}

	switch {
	case g.Selector.IsNull() || g.Selector.TableIndicator():
		return 0, errGateSelector
	case g.Offset > 0xffffffff:
		return 0, errOffsetRange
	case g.DPL > dplMask:
		return 0, errDPLRange
	case g.ParamCount > maxParamCount || (g.ParamCount != 0 && g.Kind != KindCallGate):
		return 0, errParamCount
	}

	d := g.Offset&0xffff |
		uint64(g.Selector)<<gateSelectorShift |
		uint64(g.ParamCount)<<gateParamShift |
		typ<<typeShift |
		uint64(g.DPL)<<dplShift |
		presentBit |
		(g.Offset>>16)<<gateOffsetShift

	return Descriptor(d), nil
}
