// Package tty provides the console terminal device. Output is written to
// the kernel console sink; input and keyboard ioctls are forwarded to the
// keyboard device.
package tty

import (
	"io"

	"github.com/whampson/ohwes/device"
	"github.com/whampson/ohwes/device/chardev"
	"github.com/whampson/ohwes/device/kbd"
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/kfmt"
	"github.com/whampson/ohwes/kernel/usermem"
)

const (
	// Major is the character device major number of the console terminal.
	Major = 4

	// NodePath is the device node of the first console terminal.
	NodePath = "/dev/tty0"
)

// Console is the console terminal device.
type Console struct {
	opens uint32
}

// lookupInputFn returns the device that input is read from.
var lookupInputFn = func() chardev.Device { return chardev.Lookup(kbd.Major) }

// New returns a console terminal.
func New() *Console {
	return &Console{}
}

// DriverName returns the name of this driver.
func (c *Console) DriverName() string {
	return "tty"
}

// DriverVersion returns the version of this driver.
func (c *Console) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit registers the terminal character device and its node.
func (c *Console) DriverInit(w io.Writer) *kernel.Error {
	if err := chardev.Register(Major, c.DriverName(), c); err != nil {
		return err
	}
	if err := chardev.MakeNode(NodePath, Major, 0); err != nil {
		chardev.Unregister(Major, c)
		return err
	}

	if lookupInputFn() == nil {
		kfmt.Fprintf(w, "no input device; reads will fail\n")
	}
	return nil
}

// Opens returns the number of times the terminal is currently open.
func (c *Console) Opens() uint32 {
	return c.opens
}

// Open implements chardev.Device.
func (c *Console) Open(minor uint8, _ uint32) error {
	if minor != 0 {
		return abi.ENXIO
	}
	c.opens++
	return nil
}

// Close implements chardev.Device.
func (c *Console) Close(uint8) error {
	if c.opens > 0 {
		c.opens--
	}
	return nil
}

// Read implements chardev.Device by reading from the keyboard.
func (c *Console) Read(_ uint8, p []byte) (int, error) {
	in := lookupInputFn()
	if in == nil {
		return 0, abi.ENXIO
	}
	return in.Read(0, p)
}

// Write implements chardev.Device. Output goes to the console sink or, if
// none is attached yet, to the early console buffer.
func (c *Console) Write(_ uint8, p []byte) (int, error) {
	kfmt.Fprintf(kfmt.GetOutputSink(), "%s", p)
	return len(p), nil
}

// Ioctl implements chardev.Device. Keyboard requests are forwarded to the
// keyboard.
func (c *Console) Ioctl(_ uint8, cmd, arg uint32, mem usermem.IO) (int, error) {
	switch cmd {
	case abi.KDGKBMODE, abi.KDSKBMODE, abi.FIONREAD:
		in := lookupInputFn()
		if in == nil {
			return 0, abi.ENXIO
		}
		return in.Ioctl(0, cmd, arg, mem)
	}
	return 0, abi.ENOTTY
}

func probeForConsole() device.Driver {
	return New()
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderConsole,
		Probe: probeForConsole,
	})
}
