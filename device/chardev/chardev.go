// Package chardev maps major device numbers to character device drivers and
// device node paths to (major, minor) pairs. The open system call resolves a
// path through the node table and binds the resulting file descriptor to the
// driver registered for the major number.
package chardev

import (
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/sync"
	"github.com/whampson/ohwes/kernel/usermem"
)

// MaxDevices is the number of drivers that can be registered at once.
const MaxDevices = 8

// Device is the operation set of a character device driver. Errors returned
// to user space should be abi.Errno values; anything else is reported as
// EIO.
type Device interface {
	Open(minor uint8, flags uint32) error
	Close(minor uint8) error
	Read(minor uint8, p []byte) (int, error)
	Write(minor uint8, p []byte) (int, error)

	// Ioctl executes a device specific command. arg is either a value or
	// a user address; mem is the caller's address space.
	Ioctl(minor uint8, cmd, arg uint32, mem usermem.IO) (int, error)
}

type entry struct {
	major uint8
	name  string
	dev   Device
}

var (
	lock    sync.Spinlock
	entries [MaxDevices]entry
	count   int

	errNilDevice    = &kernel.Error{Module: "chardev", Message: "nil device"}
	errEmptyName    = &kernel.Error{Module: "chardev", Message: "device name must not be empty"}
	errMajorInUse   = &kernel.Error{Module: "chardev", Message: "major number already registered"}
	errRegistryFull = &kernel.Error{Module: "chardev", Message: "device registry is full"}
)

// find returns the slot index for major or -1. The caller must hold lock.
func find(major uint8) int {
	for i := 0; i < count; i++ {
		if entries[i].major == major {
			return i
		}
	}
	return -1
}

// Register binds dev to major. It fails if the major number is taken or the
// registry is full; an existing registration is never replaced.
func Register(major uint8, name string, dev Device) *kernel.Error {
	switch {
	case dev == nil:
		return errNilDevice
	case name == "":
		return errEmptyName
	}

	lock.Acquire()
	defer lock.Release()

	if find(major) >= 0 {
		return errMajorInUse
	}
	if count == MaxDevices {
		return errRegistryFull
	}

	entries[count] = entry{major: major, name: name, dev: dev}
	count++
	return nil
}

// Unregister removes the registration for major if it is bound to dev and
// reports whether anything was removed.
func Unregister(major uint8, dev Device) bool {
	lock.Acquire()
	defer lock.Release()

	i := find(major)
	if i < 0 || entries[i].dev != dev {
		return false
	}

	count--
	entries[i] = entries[count]
	entries[count] = entry{}
	return true
}

// Lookup returns the driver registered for major or nil.
func Lookup(major uint8) Device {
	lock.Acquire()
	defer lock.Release()

	if i := find(major); i >= 0 {
		return entries[i].dev
	}
	return nil
}

// LookupName returns the major number and driver registered under name.
func LookupName(name string) (uint8, Device, bool) {
	lock.Acquire()
	defer lock.Release()

	for i := 0; i < count; i++ {
		if entries[i].name == name {
			return entries[i].major, entries[i].dev, true
		}
	}
	return 0, nil, false
}

// Visit invokes fn for each registration until fn returns false. fn must not
// call back into the registry.
func Visit(fn func(major uint8, name string, dev Device) bool) {
	lock.Acquire()
	defer lock.Release()

	for i := 0; i < count; i++ {
		if !fn(entries[i].major, entries[i].name, entries[i].dev) {
			return
		}
	}
}
