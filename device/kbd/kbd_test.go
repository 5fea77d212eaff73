package kbd

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/whampson/ohwes/device"
	"github.com/whampson/ohwes/device/chardev"
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/cpu"
	"github.com/whampson/ohwes/kernel/irq"
	"github.com/whampson/ohwes/kernel/usermem"
)

// controller models the output side of an 8042.
type controller struct {
	pending []byte
	status  uint8
}

func (c *controller) readPort(port uint16) uint8 {
	switch port {
	case statusPort:
		if c.status != 0 {
			return c.status
		}
		if len(c.pending) != 0 {
			return statusOutputFull
		}
		return 0
	case dataPort:
		if len(c.pending) == 0 {
			return 0
		}
		b := c.pending[0]
		c.pending = c.pending[1:]
		return b
	}
	return 0xff
}

func mockController(t *testing.T) *controller {
	c := new(controller)
	portReadByteFn = c.readPort
	t.Cleanup(func() {
		portReadByteFn = cpu.PortReadByte
		irqRegisterFn = irq.Register
		translator = nil
	})
	return c
}

// upcase translates scancodes that are lowercase ASCII letters and swallows
// everything else.
type upcase struct{}

func (upcase) Translate(mode uint32, scancode byte, dst []byte) int {
	if scancode < 'a' || scancode > 'z' {
		return 0
	}
	if mode == abi.K_MEDIUMRAW {
		dst[0], dst[1] = 0xe0, scancode
		return 2
	}
	dst[0] = scancode - 'a' + 'A'
	return 1
}

func TestProbe(t *testing.T) {
	c := mockController(t)

	c.status = 0xff
	if drv := probeForKeyboard(); drv != nil {
		t.Fatal("expected probe to fail without a controller")
	}

	c.status = 0
	if drv := probeForKeyboard(); drv == nil {
		t.Fatal("expected probe to detect the controller")
	}

	var found bool
	for _, info := range device.DriverList() {
		if info.Order == device.DetectOrderInput {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the keyboard driver to be registered")
	}
}

func TestDriverInit(t *testing.T) {
	c := mockController(t)
	c.pending = []byte{0xaa, 0xfa}

	var registered irq.Handler
	irqRegisterFn = func(line irq.Line, h irq.Handler) *kernel.Error {
		if line != irq.Keyboard {
			t.Errorf("expected registration on line %d; got %d", irq.Keyboard, line)
		}
		registered = h
		return nil
	}

	k := New()
	t.Cleanup(func() {
		chardev.RemoveNode(NodePath)
		chardev.Unregister(Major, k)
	})

	var buf bytes.Buffer
	if err := k.DriverInit(&buf); err != nil {
		t.Fatal(err)
	}

	if len(c.pending) != 0 {
		t.Fatalf("expected stale controller output to be drained; %d bytes left", len(c.pending))
	}
	if registered != k {
		t.Fatal("expected the keyboard to be registered as the IRQ handler")
	}
	if chardev.Lookup(Major) != k {
		t.Fatal("expected the keyboard character device to be registered")
	}
	if major, minor, ok := chardev.ResolveNode(NodePath); !ok || major != Major || minor != 0 {
		t.Fatalf("expected %s to resolve to (%d, 0); got (%d, %d, %t)", NodePath, Major, major, minor, ok)
	}
	if exp := "irq 1, 128 byte input queue, mode 0\n"; buf.String() != exp {
		t.Fatalf("expected init output %q; got %q", exp, buf.String())
	}
}

func TestDriverInitFailures(t *testing.T) {
	t.Run("stuck controller", func(t *testing.T) {
		c := mockController(t)
		c.status = statusOutputFull

		if err := New().DriverInit(&bytes.Buffer{}); err != errNoController {
			t.Fatalf("expected errNoController; got %v", err)
		}
	})

	t.Run("irq line busy", func(t *testing.T) {
		mockController(t)
		expErr := &kernel.Error{Module: "irq", Message: "busy"}
		irqRegisterFn = func(irq.Line, irq.Handler) *kernel.Error { return expErr }

		k := New()
		if err := k.DriverInit(&bytes.Buffer{}); err != expErr {
			t.Fatalf("expected %v; got %v", expErr, err)
		}
		if chardev.Lookup(Major) != nil {
			t.Fatal("expected the character device registration to be rolled back")
		}
		if _, _, ok := chardev.ResolveNode(NodePath); ok {
			t.Fatal("expected the device node to be removed")
		}
	})
}

func TestInterruptToRead(t *testing.T) {
	c := mockController(t)
	k := New()

	// Spurious interrupt without data.
	k.HandleIRQ(irq.Keyboard)
	if k.Buffered() != 0 {
		t.Fatal("expected nothing to be queued")
	}

	for _, b := range []byte{0x1e, 0x9e, 0x30} {
		c.pending = append(c.pending, b)
		k.HandleIRQ(irq.Keyboard)
	}

	buf := make([]byte, 2)
	n, err := k.Read(0, buf)
	if err != nil || n != 2 {
		t.Fatalf("expected to read 2 bytes; got %d, %v", n, err)
	}
	if diff := cmp.Diff([]byte{0x1e, 0x9e}, buf); diff != "" {
		t.Fatalf("unexpected data (-want +got):\n%s", diff)
	}

	if n, err = k.Read(0, buf); n != 1 || buf[0] != 0x30 {
		t.Fatalf("expected to read the remaining byte; got %d, %v", n, err)
	}

	if _, err = k.Read(0, buf); err != abi.EAGAIN {
		t.Fatalf("expected EAGAIN from an empty queue; got %v", err)
	}
}

func TestQueueOverflow(t *testing.T) {
	mockController(t)
	k := New()

	for i := 0; i < BufferSize+10; i++ {
		k.Push(byte(i))
	}

	if k.Buffered() != BufferSize || k.Dropped() != 10 {
		t.Fatalf("expected %d queued and 10 dropped; got %d queued and %d dropped", BufferSize, k.Buffered(), k.Dropped())
	}

	// The oldest input is preserved.
	var b [1]byte
	k.Read(0, b[:])
	if b[0] != 0 {
		t.Fatalf("expected the first byte pushed; got %d", b[0])
	}
}

func TestTranslation(t *testing.T) {
	c := mockController(t)
	SetTranslator(upcase{})
	irqRegisterFn = func(irq.Line, irq.Handler) *kernel.Error { return nil }

	k := New()
	t.Cleanup(func() {
		chardev.RemoveNode(NodePath)
		chardev.Unregister(Major, k)
	})
	if err := k.DriverInit(&bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	c.pending = []byte("hi!")
	for range c.pending {
		k.HandleIRQ(irq.Keyboard)
	}
	k.Ioctl(0, abi.KDSKBMODE, abi.K_MEDIUMRAW, nil)
	k.Push('x')
	k.Ioctl(0, abi.KDSKBMODE, abi.K_RAW, nil)
	k.Push('x')

	buf := make([]byte, 16)
	n, _ := k.Read(0, buf)
	if diff := cmp.Diff([]byte{'H', 'I', 0xe0, 'x', 'x'}, buf[:n]); diff != "" {
		t.Fatalf("unexpected translated input (-want +got):\n%s", diff)
	}
}

func TestIoctl(t *testing.T) {
	mockController(t)
	k := New()
	mem := &usermem.BytesIO{Base: 0x1000, Bytes: make([]byte, 16)}

	k.Push(1)
	k.Push(2)

	readWord := func() uint32 {
		var b [4]byte
		mem.CopyIn(0x1000, b[:])
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}

	specs := []struct {
		cmd, arg uint32
		expErr   error
		expWord  uint32
	}{
		{abi.KDGKBMODE, 0x1000, nil, abi.K_RAW},
		{abi.FIONREAD, 0x1000, nil, 2},
		{abi.KDSKBMODE, abi.K_XLATE, nil, 2},
		{abi.KDGKBMODE, 0x1000, nil, abi.K_XLATE},
		{abi.KDSKBMODE, 7, abi.EINVAL, abi.K_XLATE},
		{abi.KDGKBMODE, 0x2000, abi.EFAULT, abi.K_XLATE},
		{0x5401, 0x1000, abi.ENOTTY, abi.K_XLATE},
	}

	for specIndex, spec := range specs {
		if _, err := k.Ioctl(0, spec.cmd, spec.arg, mem); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
			continue
		}
		if got := readWord(); got != spec.expWord {
			t.Errorf("[spec %d] expected word %d; got %d", specIndex, spec.expWord, got)
		}
	}
}

func TestOpenWrite(t *testing.T) {
	k := New()

	if err := k.Open(0, abi.O_RDONLY); err != nil {
		t.Fatal(err)
	}
	if err := k.Open(1, abi.O_RDONLY); err != abi.ENXIO {
		t.Fatalf("expected ENXIO for minor 1; got %v", err)
	}
	if _, err := k.Write(0, []byte("x")); err != abi.EINVAL {
		t.Fatalf("expected writes to fail with EINVAL; got %v", err)
	}
}
