package desc

import (
	"io"
	"unsafe"

	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/cpu"
	"github.com/whampson/ohwes/kernel/kfmt"
)

var (
	errTableOverflow = &kernel.Error{Module: "desc", Message: "descriptor index out of range"}

	// scratch is where tables are assembled before being committed to
	// their fixed location.
	scratch [IDTLen]Descriptor
)

// Table is one of the fixed-location descriptor tables.
type Table struct {
	name string
	base uint32
	len  int
}

var (
	gdt = Table{name: "GDT", base: GDTBase, len: GDTLen}
	ldt = Table{name: "LDT", base: LDTBase, len: LDTLen}
	idt = Table{name: "IDT", base: IDTBase, len: IDTLen}
)

// GDT returns the global descriptor table.
func GDT() *Table { return &gdt }

// LDT returns the local descriptor table.
func LDT() *Table { return &ldt }

// IDT returns the interrupt descriptor table.
func IDT() *Table { return &idt }

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Base returns the linear address of the first entry.
func (t *Table) Base() uint32 { return t.base }

// Len returns the number of entries.
func (t *Table) Len() int { return t.len }

// Limit returns the table size in bytes minus one, as loaded into the table
// register.
func (t *Table) Limit() uint16 { return uint16(t.len*DescriptorSize - 1) }

// Entry returns the committed descriptor at index i. Out of range indices
// yield a not-present descriptor.
func (t *Table) Entry(i int) Descriptor {
	if i < 0 || i >= t.len {
		return 0
	}
	return t.entries()[i]
}

// Register returns the pseudo-descriptor used to load the table.
func (t *Table) Register() cpu.DescriptorTableRegister {
	return cpu.NewDescriptorTableRegister(t.base, t.Limit())
}

// DumpTo writes every present entry of the table to w.
func (t *Table) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "%s base=0x%8x limit=0x%4x\n", t.name, t.base, t.Limit())
	for i, d := range t.entries() {
		if !d.Present() {
			continue
		}
		kfmt.Fprintf(w, "  %3d: ", i)
		d.DumpTo(w)
		kfmt.Fprintf(w, "\n")
	}
}

func (t *Table) entries() []Descriptor {
	return unsafe.Slice((*Descriptor)(ptrTo(t.base)), t.len)
}

// builder accumulates the entries of a table in the scratch area. Slots that
// are never set stay not-present.
type builder struct {
	table *Table
	err   *kernel.Error
}

func newBuilder(t *Table) builder {
	for i := 0; i < t.len; i++ {
		scratch[i] = 0
	}
	return builder{table: t}
}

// segment builds s into slot index.
func (b *builder) segment(index int, s SegmentSpec) {
	d, err := s.Build()
	b.set(index, d, err)
}

// gate builds g into slot index.
func (b *builder) gate(index int, g GateSpec) {
	d, err := g.Build()
	b.set(index, d, err)
}

// set records the outcome of a Build call for slot index. The first error
// sticks and causes commit to fail.
func (b *builder) set(index int, d Descriptor, err *kernel.Error) {
	if b.err != nil {
		return
	}

	switch {
	case err != nil:
		b.err = err
	case index < 0 || index >= b.table.len:
		b.err = errTableOverflow
	default:
		scratch[index] = d
	}
}

// commit copies the scratch area over the live table. Nothing is written if
// any entry failed to build so the live table never holds a partially built
// set of descriptors.
func (b *builder) commit() *kernel.Error {
	if b.err != nil {
		return b.err
	}
	copy(b.table.entries(), scratch[:b.table.len])
	return nil
}
