//go:build !386

package gate

import "github.com/whampson/ohwes/kernel/abi"

// Entry stubs do not exist on hosted builds. Each vector gets a synthetic,
// 32-bit addressable entry point laid out like the real stubs so that the
// IDT contents match the ones built on the target.
const (
	hostedEntryBase   = 0x00100000
	hostedEntryStride = 16
)

func initEntryPoints(table *[abi.NumVectors]uintptr) {
	for vector := range table {
		table[vector] = hostedEntryBase + uintptr(vector)*hostedEntryStride
	}
}
