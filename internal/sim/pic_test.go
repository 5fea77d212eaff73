package sim

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// programPair runs the initialization sequence used by the kernel.
func programPair(pp *picPair) {
	pp.master.writeCommand(0x11)
	pp.slave.writeCommand(0x11)
	pp.master.writeData(0x20)
	pp.slave.writeData(0x28)
	pp.master.writeData(0x04)
	pp.slave.writeData(0x02)
	pp.master.writeData(0x01)
	pp.slave.writeData(0x01)
}

func TestPICInitialization(t *testing.T) {
	var pp picPair

	pp.raise(1)
	if pp.pending() {
		t.Fatal("expected an uninitialized controller not to signal interrupts")
	}

	programPair(&pp)
	pp.master.writeData(0xf9)
	pp.slave.writeData(0xff)

	if pp.master.base != 0x20 || pp.slave.base != 0x28 || pp.master.cascade != 0x04 || pp.slave.cascade != 0x02 {
		t.Fatalf("unexpected controller setup: %+v", pp)
	}
	if pp.master.imr != 0xf9 || pp.slave.imr != 0xff {
		t.Fatalf("expected masks 0xf9/0xff; got 0x%x/0x%x", pp.master.imr, pp.slave.imr)
	}
	if pp.master.irr != 0 {
		t.Fatal("expected ICW1 to clear pending requests")
	}
}

func TestPICPriorityAndEOI(t *testing.T) {
	var pp picPair
	programPair(&pp)

	pp.raise(4)
	pp.raise(1)
	pp.raise(10)

	var vectors []uint8
	for {
		vector, ok := pp.acknowledge()
		if !ok {
			break
		}
		vectors = append(vectors, vector)
	}

	// Line 1 blocks everything of lower priority until it is acknowledged.
	if diff := cmp.Diff([]uint8{0x21}, vectors); diff != "" {
		t.Fatalf("unexpected vectors (-want +got):\n%s", diff)
	}

	// Non-specific EOI.
	pp.master.writeCommand(0x20)
	if vector, ok := pp.acknowledge(); !ok || vector != 0x2a {
		t.Fatalf("expected the slave line 10 through the cascade next; got 0x%x, %t", vector, ok)
	}
	if pp.master.isr != 1<<cascadeLine || pp.slave.isr != 1<<2 {
		t.Fatalf("unexpected in-service state: master 0x%x slave 0x%x", pp.master.isr, pp.slave.isr)
	}

	// Line 4 must wait for the cascade EOI on the master.
	if _, ok := pp.acknowledge(); ok {
		t.Fatal("expected line 4 to be blocked by the in-service cascade line")
	}
	pp.slave.writeCommand(0x20)
	pp.master.writeCommand(0x20)

	if vector, ok := pp.acknowledge(); !ok || vector != 0x24 {
		t.Fatalf("expected vector 0x24; got 0x%x, %t", vector, ok)
	}
}

func TestPICMaskAndRegisterReads(t *testing.T) {
	var pp picPair
	programPair(&pp)
	pp.master.writeData(0xff &^ 0x04)
	pp.slave.writeData(0xff)

	pp.raise(3)
	pp.raise(9)
	if pp.pending() {
		t.Fatal("expected masked lines not to be delivered")
	}

	pp.master.writeCommand(0x0a)
	if got := pp.master.readCommand(); got&(1<<3) == 0 {
		t.Fatalf("expected IRR to report line 3; got 0x%x", got)
	}

	pp.slave.writeData(0xff &^ 0x02)
	if vector, ok := pp.acknowledge(); !ok || vector != 0x29 {
		t.Fatalf("expected vector 0x29 after unmasking; got 0x%x, %t", vector, ok)
	}

	pp.slave.writeCommand(0x0b)
	if got := pp.slave.readCommand(); got != 0x02 {
		t.Fatalf("expected ISR 0x02; got 0x%x", got)
	}

	// Specific EOI for line 1 of the slave.
	pp.slave.writeCommand(0x61)
	if pp.slave.isr != 0 {
		t.Fatalf("expected specific EOI to clear the slave ISR; got 0x%x", pp.slave.isr)
	}
}

func TestPICSpurious(t *testing.T) {
	var pp picPair
	programPair(&pp)

	if vector := pp.spurious(false); vector != 0x27 || pp.master.isr != 0 {
		t.Fatalf("expected master spurious vector 0x27 without ISR; got 0x%x isr 0x%x", vector, pp.master.isr)
	}
	if vector := pp.spurious(true); vector != 0x2f || pp.master.isr != 1<<cascadeLine || pp.slave.isr != 0 {
		t.Fatalf("expected slave spurious vector 0x2f with only the cascade in service; got 0x%x", vector)
	}
}

func TestKBC(t *testing.T) {
	var k kbc

	if k.status()&kbcStatusOutputFull != 0 {
		t.Fatal("expected an empty output buffer")
	}

	if !k.feed('a') {
		t.Fatal("expected the first byte to be loaded immediately")
	}
	if k.feed('b') || k.feed('c') {
		t.Fatal("expected further bytes to wait in the queue")
	}
	if k.backlog() != 3 {
		t.Fatalf("expected backlog 3; got %d", k.backlog())
	}

	var got []byte
	for k.status()&kbcStatusOutputFull != 0 {
		b, more := k.readData()
		got = append(got, b)
		if more != (len(got) < 3) {
			t.Fatalf("unexpected refill signal after %d reads", len(got))
		}
	}

	if string(got) != "abc" {
		t.Fatalf("expected to read %q; got %q", "abc", got)
	}
}
