//go:build !386

package desc

import "unsafe"

const regionSize = layoutEnd - IDTBase

// memory stands in for the low memory region holding the tables when the
// kernel packages run on a hosted GOARCH. Linear addresses encoded in
// descriptors and table registers are the same as on the real machine.
var memory [regionSize / DescriptorSize]uint64

// ptrTo returns a pointer to the table memory at linear address addr.
func ptrTo(addr uint32) unsafe.Pointer {
	if addr < IDTBase || addr >= layoutEnd {
		panic("desc: address outside of the descriptor table region")
	}
	return unsafe.Add(unsafe.Pointer(&memory[0]), addr-IDTBase)
}
