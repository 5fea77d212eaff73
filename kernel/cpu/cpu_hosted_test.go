//go:build !386

package cpu

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recordingBackend struct {
	ifFlag bool
	ports  map[uint16]uint8
	calls  []string
	gdtr   [2]uint32
	tr     uint16
}

func (b *recordingBackend) SetInterruptFlag(enabled bool) {
	b.ifFlag = enabled
	if enabled {
		b.calls = append(b.calls, "sti")
	} else {
		b.calls = append(b.calls, "cli")
	}
}
func (b *recordingBackend) InterruptFlag() bool { return b.ifFlag }
func (b *recordingBackend) Halt()               { b.calls = append(b.calls, "hlt") }
func (b *recordingBackend) WaitForInterrupt()   { b.calls = append(b.calls, "wait") }
func (b *recordingBackend) PortWriteByte(port uint16, val uint8) {
	b.ports[port] = val
	b.calls = append(b.calls, "out")
}
func (b *recordingBackend) PortReadByte(port uint16) uint8 { return b.ports[port] }
func (b *recordingBackend) LoadGDT(base uint32, limit uint16) {
	b.gdtr = [2]uint32{base, uint32(limit)}
	b.calls = append(b.calls, "lgdt")
}
func (b *recordingBackend) LoadIDT(uint32, uint16)        { b.calls = append(b.calls, "lidt") }
func (b *recordingBackend) LoadLDT(uint16)                { b.calls = append(b.calls, "lldt") }
func (b *recordingBackend) LoadTR(sel uint16)             { b.tr = sel; b.calls = append(b.calls, "ltr") }
func (b *recordingBackend) ReloadSegments(uint16, uint16) { b.calls = append(b.calls, "reload") }

func TestHostedBackend(t *testing.T) {
	b := &recordingBackend{ports: make(map[uint16]uint8)}
	prev := Attach(b)
	defer Attach(prev)

	EnableInterrupts()
	if !InterruptsEnabled() {
		t.Fatal("expected interrupts to be enabled")
	}

	enabled := SaveAndDisableInterrupts()
	if !enabled || InterruptsEnabled() {
		t.Fatalf("expected SaveAndDisableInterrupts to report true and clear IF; got %t, IF=%t", enabled, InterruptsEnabled())
	}
	RestoreInterrupts(enabled)
	if !InterruptsEnabled() {
		t.Fatal("expected RestoreInterrupts to set IF")
	}

	PortWriteByte(0x21, 0xfb)
	if got := PortReadByte(0x21); got != 0xfb {
		t.Fatalf("expected port 0x21 to read back 0xfb; got %x", got)
	}
	IOWait()

	r := NewDescriptorTableRegister(0x1000, 63)
	LoadGDT(&r)
	LoadTR(0x28)
	Halt()

	if exp := [2]uint32{0x1000, 63}; b.gdtr != exp {
		t.Fatalf("expected GDTR %v; got %v", exp, b.gdtr)
	}

	if b.tr != 0x28 {
		t.Fatalf("expected TR to be 0x28; got %x", b.tr)
	}

	expCalls := []string{"sti", "cli", "sti", "out", "out", "lgdt", "ltr", "cli", "hlt"}
	if diff := cmp.Diff(expCalls, b.calls); diff != "" {
		t.Fatalf("unexpected instruction trace (-want +got):\n%s", diff)
	}
}

func TestDetachedBackendPanics(t *testing.T) {
	prev := Attach(nil)
	defer Attach(prev)

	defer func() {
		if err := recover(); err == nil {
			t.Fatal("expected a privileged instruction to panic without an attached machine")
		}
	}()

	DisableInterrupts()
}
