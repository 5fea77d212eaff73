//go:build !386

package kmain

import (
	"bytes"
	"strings"
	"testing"

	"github.com/whampson/ohwes/device/tty"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/cpu"
	"github.com/whampson/ohwes/kernel/desc"
	"github.com/whampson/ohwes/kernel/irq"
	"github.com/whampson/ohwes/kernel/kfmt"
	"github.com/whampson/ohwes/kernel/task"
)

// latchBackend reads back the last byte written to each port, which is
// enough for the PIC mask registers. The keyboard controller status reads
// as empty.
type latchBackend struct {
	ports   map[uint16]uint8
	ifFlag  bool
	halts   int
	idtBase uint32
}

func newLatchBackend() *latchBackend {
	return &latchBackend{ports: make(map[uint16]uint8)}
}

func (b *latchBackend) SetInterruptFlag(enabled bool)      { b.ifFlag = enabled }
func (b *latchBackend) InterruptFlag() bool                { return b.ifFlag }
func (b *latchBackend) Halt()                              { b.halts++ }
func (b *latchBackend) WaitForInterrupt()                  {}
func (b *latchBackend) PortWriteByte(port uint16, v uint8) { b.ports[port] = v }
func (b *latchBackend) PortReadByte(port uint16) uint8     { return b.ports[port] }
func (b *latchBackend) LoadGDT(uint32, uint16)             {}
func (b *latchBackend) LoadIDT(base uint32, _ uint16)      { b.idtBase = base }
func (b *latchBackend) LoadLDT(uint16)                     {}
func (b *latchBackend) LoadTR(uint16)                      {}
func (b *latchBackend) ReloadSegments(uint16, uint16)      {}

func TestBootAndKmain(t *testing.T) {
	backend := newLatchBackend()
	defer cpu.Attach(cpu.Attach(backend))
	defer func() {
		kfmt.SetOutputSink(nil)
		task.SetCurrent(nil)
		waitFn = cpu.WaitForInterrupt
	}()

	var console bytes.Buffer
	if err := Boot(Config{Console: &console}); err != nil {
		t.Fatal(err)
	}

	t.Run("descriptor tables", func(t *testing.T) {
		if !desc.Ready() {
			t.Fatal("expected all descriptor tables to be installed")
		}
		if backend.idtBase != desc.IDTBase {
			t.Fatalf("expected IDT at 0x%x; got 0x%x", desc.IDTBase, backend.idtBase)
		}
		if esp0 := desc.CurrentTSS().ESP0; esp0 != DefaultKernelStack {
			t.Fatalf("expected ESP0 0x%x; got 0x%x", DefaultKernelStack, esp0)
		}
		if d := desc.IDT().Entry(abi.SyscallVector); !d.Present() || d.DPL() != 3 {
			t.Fatal("expected a user accessible system call gate")
		}
	})

	t.Run("interrupt controller", func(t *testing.T) {
		// Cascade and keyboard unmasked.
		if got := irq.GetMask(); got != 0xfff9 {
			t.Fatalf("expected IRQ mask 0xfff9; got 0x%x", got)
		}
		if irq.HandlerFor(irq.Keyboard) == nil {
			t.Fatal("expected a keyboard interrupt handler")
		}
		if !backend.ifFlag {
			t.Fatal("expected interrupts to be enabled")
		}
	})

	t.Run("initial task", func(t *testing.T) {
		cur := task.Current()
		if cur == nil || cur.ID != InitTaskID {
			t.Fatal("expected the initial task to be current")
		}
		if cur.Files.Count() != 3 {
			t.Fatalf("expected 3 open descriptors; got %d", cur.Files.Count())
		}
		for fd := int32(0); fd < 3; fd++ {
			f, err := cur.Files.Get(fd)
			if err != nil || f.Major != tty.Major || !f.Readable() || !f.Writable() {
				t.Fatalf("expected fd %d to be open read-write on the console", fd)
			}
		}
	})

	t.Run("console output", func(t *testing.T) {
		out := console.String()
		for _, exp := range []string{
			"[hal] kbd(1.0.0): irq 1, 128 byte input queue, mode 0\n",
			"[hal] kbd(1.0.0): initialized\n",
			"[hal] tty(0.1.0): initialized\n",
			"[kmain] task 1 ready, irq mask 0xfff9\n",
		} {
			if !strings.Contains(out, exp) {
				t.Errorf("expected console output to contain %q; got:\n%s", exp, out)
			}
		}
	})

	t.Run("kmain idles until the initial task exits", func(t *testing.T) {
		defer task.SetExitHook(task.SetExitHook(func(*task.Task) {}))

		var waits int
		waitFn = func() {
			if waits++; waits == 3 {
				task.Current().Terminate(0)
			}
		}

		console.Reset()
		Kmain(0x80000)

		if waits != 3 {
			t.Fatalf("expected 3 idle iterations; got %d", waits)
		}
		if backend.halts != 1 || !strings.Contains(console.String(), errKmainReturned.Message) {
			t.Fatalf("expected Kmain to panic after the initial task exited; got:\n%s", console.String())
		}
		if backend.ifFlag {
			t.Fatal("expected the panic to disable interrupts")
		}
		if esp0 := desc.CurrentTSS().ESP0; esp0 != 0x80000 {
			t.Fatalf("expected ESP0 0x80000; got 0x%x", esp0)
		}
	})
}
