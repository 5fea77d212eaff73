package desc

import "unsafe"

// ptrTo returns a pointer to the table memory at linear address addr. The
// kernel runs identity mapped, so this is a plain conversion.
func ptrTo(addr uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr))
}
