package desc

// Fixed physical layout of the descriptor tables. The tables live in low
// memory below the kernel image and are never relocated.
const (
	IDTBase = 0x0800
	GDTBase = 0x1000
	LDTBase = 0x1040
	TSSBase = 0x1050

	IDTLen = 256
	GDTLen = 8
	LDTLen = 2

	// TSSSize is the size of the hardware task state segment.
	TSSSize = 104

	// DescriptorSize is the size of a single table entry.
	DescriptorSize = 8

	layoutEnd = TSSBase + TSSSize
)

// GDT slots.
const (
	gdtNull = iota
	gdtKernelCode
	gdtKernelData
	gdtUserCode
	gdtUserData
	gdtTSS
	gdtLDT
	gdtUnused
)

// LDT slots.
const (
	ldtUserCode = iota
	ldtUserData
)
