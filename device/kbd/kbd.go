// Package kbd drives a PS/2 keyboard attached to the 8042 controller. The
// interrupt handler queues incoming bytes in a ring buffer which is drained
// by reads of the keyboard character device.
package kbd

import (
	"io"

	"github.com/whampson/ohwes/device"
	"github.com/whampson/ohwes/device/chardev"
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/cpu"
	"github.com/whampson/ohwes/kernel/irq"
	"github.com/whampson/ohwes/kernel/kfmt"
	"github.com/whampson/ohwes/kernel/ringbuf"
	"github.com/whampson/ohwes/kernel/usermem"
)

const (
	// Major is the character device major number of the keyboard.
	Major = 13

	// NodePath is the device node created for the keyboard.
	NodePath = "/dev/kbd0"

	// BufferSize is the capacity of the input queue.
	BufferSize = 128

	dataPort   = 0x60
	statusPort = 0x64

	// statusOutputFull is set while a byte is waiting in the data port.
	statusOutputFull = 1 << 0

	// maxDrain bounds the number of stale bytes discarded during init.
	maxDrain = 16
)

// Translator converts scancodes into the bytes delivered to readers. It is
// consulted for every scancode unless the keyboard is in K_RAW mode.
// Translate stores the output in dst and returns its length; a zero length
// swallows the scancode.
type Translator interface {
	Translate(mode uint32, scancode byte, dst []byte) int
}

// Keyboard is a PS/2 keyboard driver.
type Keyboard struct {
	input   ringbuf.Buffer
	storage [BufferSize]byte

	mode       uint32
	translator Translator
	xlateBuf   [8]byte
}

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portReadByteFn = cpu.PortReadByte
	irqRegisterFn  = irq.Register

	translator Translator

	errNoController = &kernel.Error{Module: "kbd", Message: "keyboard controller did not respond"}
)

// SetTranslator installs the translator used by keyboards initialized after
// the call.
func SetTranslator(t Translator) {
	translator = t
}

// New returns a keyboard in K_RAW mode.
func New() *Keyboard {
	k := &Keyboard{mode: abi.K_RAW}
	k.input.Init(k.storage[:])
	return k
}

// DriverName returns the name of this driver.
func (k *Keyboard) DriverName() string {
	return "kbd"
}

// DriverVersion returns the version of this driver.
func (k *Keyboard) DriverVersion() (uint16, uint16, uint16) {
	return 1, 0, 0
}

// DriverInit discards any bytes left in the controller, hooks up the
// keyboard interrupt and registers the character device.
func (k *Keyboard) DriverInit(w io.Writer) *kernel.Error {
	var drained int
	for ; drained < maxDrain && portReadByteFn(statusPort)&statusOutputFull != 0; drained++ {
		portReadByteFn(dataPort)
	}
	if drained == maxDrain {
		return errNoController
	}

	if k.translator = translator; k.translator != nil {
		k.mode = abi.K_XLATE
	}

	if err := chardev.Register(Major, k.DriverName(), k); err != nil {
		return err
	}
	if err := chardev.MakeNode(NodePath, Major, 0); err != nil {
		chardev.Unregister(Major, k)
		return err
	}
	if err := irqRegisterFn(irq.Keyboard, k); err != nil {
		chardev.RemoveNode(NodePath)
		chardev.Unregister(Major, k)
		return err
	}

	kfmt.Fprintf(w, "irq %d, %d byte input queue, mode %d\n", uint8(irq.Keyboard), k.input.Cap(), k.mode)
	return nil
}

// HandleIRQ implements irq.Handler. It moves the byte waiting in the
// controller into the input queue.
func (k *Keyboard) HandleIRQ(irq.Line) {
	if portReadByteFn(statusPort)&statusOutputFull == 0 {
		return
	}
	k.Push(portReadByteFn(dataPort))
}

// Push queues a scancode as if it had been received from the controller.
// If the queue is full, the output is dropped.
func (k *Keyboard) Push(scancode byte) {
	if k.mode == abi.K_RAW || k.translator == nil {
		k.input.Put(scancode)
		return
	}

	n := k.translator.Translate(k.mode, scancode, k.xlateBuf[:])
	k.input.Write(k.xlateBuf[:n])
}

// Buffered returns the number of bytes waiting to be read.
func (k *Keyboard) Buffered() int {
	return k.input.Len()
}

// Dropped returns the number of bytes lost because the input queue was
// full.
func (k *Keyboard) Dropped() uint32 {
	return k.input.Dropped()
}

// Open implements chardev.Device.
func (k *Keyboard) Open(minor uint8, _ uint32) error {
	if minor != 0 {
		return abi.ENXIO
	}
	return nil
}

// Close implements chardev.Device.
func (k *Keyboard) Close(uint8) error {
	return nil
}

// Read implements chardev.Device. It returns EAGAIN if no input is queued.
func (k *Keyboard) Read(_ uint8, p []byte) (int, error) {
	n, _ := k.input.Read(p)
	if n == 0 && len(p) != 0 {
		return 0, abi.EAGAIN
	}
	return n, nil
}

// Write implements chardev.Device. The keyboard is not writable.
func (k *Keyboard) Write(uint8, []byte) (int, error) {
	return 0, abi.EINVAL
}

// Ioctl implements chardev.Device.
func (k *Keyboard) Ioctl(_ uint8, cmd, arg uint32, mem usermem.IO) (int, error) {
	switch cmd {
	case abi.KDGKBMODE:
		return 0, usermem.CopyOutUint32(mem, arg, k.mode)
	case abi.KDSKBMODE:
		switch arg {
		case abi.K_RAW, abi.K_XLATE, abi.K_MEDIUMRAW:
			k.mode = arg
			return 0, nil
		}
		return 0, abi.EINVAL
	case abi.FIONREAD:
		return 0, usermem.CopyOutUint32(mem, arg, uint32(k.input.Len()))
	}
	return 0, abi.ENOTTY
}

func probeForKeyboard() device.Driver {
	// A floating bus reads back as 0xff.
	if portReadByteFn(statusPort) == 0xff {
		return nil
	}
	return New()
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderInput,
		Probe: probeForKeyboard,
	})
}
