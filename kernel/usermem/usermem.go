// Package usermem copies data between kernel buffers and the address space of
// the current task. System call handlers never dereference user pointers
// directly; every access goes through an IO so that bad addresses turn into
// EFAULT instead of a kernel-mode page fault.
package usermem

import (
	"unsafe"

	"github.com/whampson/ohwes/kernel/abi"
)

// IO provides access to a user address space.
type IO interface {
	// CopyIn copies len(dst) bytes starting at user address addr into dst.
	CopyIn(addr uint32, dst []byte) (int, error)

	// CopyOut copies src to user address addr.
	CopyOut(addr uint32, src []byte) (int, error)
}

// checkRange returns true if [addr, addr+n) does not wrap around and stays
// below limit.
func checkRange(addr uint32, n int, limit uint32) bool {
	end := uint64(addr) + uint64(n)
	return end <= uint64(limit) && addr != 0
}

// Flat is an identity-mapped user address space occupying the linear range
// [0, Limit). It matches the flat user segments set up at boot.
type Flat struct {
	Limit uint32
}

// CopyIn implements IO.
func (f Flat) CopyIn(addr uint32, dst []byte) (int, error) {
	if !checkRange(addr, len(dst), f.Limit) {
		return 0, abi.EFAULT
	}
	if len(dst) == 0 {
		return 0, nil
	}
	return copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(dst))), nil
}

// CopyOut implements IO.
func (f Flat) CopyOut(addr uint32, src []byte) (int, error) {
	if !checkRange(addr, len(src), f.Limit) {
		return 0, abi.EFAULT
	}
	if len(src) == 0 {
		return 0, nil
	}
	return copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(src)), src), nil
}

// BytesIO is an address space backed by a byte slice; user address a maps to
// Bytes[a-Base]. It is used by hosted machine models and tests.
type BytesIO struct {
	Base  uint32
	Bytes []byte
}

func (b *BytesIO) span(addr uint32, n int) ([]byte, error) {
	if addr < b.Base || addr == 0 {
		return nil, abi.EFAULT
	}

	off := uint64(addr - b.Base)
	if off+uint64(n) > uint64(len(b.Bytes)) {
		return nil, abi.EFAULT
	}
	return b.Bytes[off : off+uint64(n)], nil
}

// CopyIn implements IO.
func (b *BytesIO) CopyIn(addr uint32, dst []byte) (int, error) {
	src, err := b.span(addr, len(dst))
	if err != nil {
		return 0, err
	}
	return copy(dst, src), nil
}

// CopyOut implements IO.
func (b *BytesIO) CopyOut(addr uint32, src []byte) (int, error) {
	dst, err := b.span(addr, len(src))
	if err != nil {
		return 0, err
	}
	return copy(dst, src), nil
}

// CopyInString copies a NUL-terminated string of at most len(buf)-1 bytes from
// addr into buf and returns its length. It fails with EINVAL if no
// terminator is found within buf.
func CopyInString(io IO, addr uint32, buf []byte) (int, error) {
	var one [1]byte
	for n := 0; n < len(buf); n++ {
		if _, err := io.CopyIn(addr+uint32(n), one[:]); err != nil {
			return 0, err
		}

		if one[0] == 0 {
			return n, nil
		}
		buf[n] = one[0]
	}
	return 0, abi.EINVAL
}

// CopyOutUint32 stores v at addr in little-endian byte order.
func CopyOutUint32(io IO, addr uint32, v uint32) error {
	buf := [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	_, err := io.CopyOut(addr, buf[:])
	return err
}
