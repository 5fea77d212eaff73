package gate

import (
	"unsafe"

	"github.com/whampson/ohwes/kernel/abi"
)

// initEntryPoints stores the address of each entry stub in table.
func initEntryPoints(table *[abi.NumVectors]uintptr) {
	fillEntryPoints(table)
}

// fillEntryPoints is implemented in entry_386.s.
func fillEntryPoints(table *[abi.NumVectors]uintptr)

// dispatch is called by the common entry code with a pointer to the saved
// frame on the kernel stack.
//
//go:nosplit
func dispatch(frame uintptr) {
	Dispatch((*Registers)(unsafe.Pointer(frame)))
}
