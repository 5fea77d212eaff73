package sim

const (
	kbcDataPort   = 0x60
	kbcStatusPort = 0x64

	kbcStatusOutputFull = 0x01
	kbcStatusSystem     = 0x04

	// kbcKeyboardLine is the IRQ line the controller raises for keyboard
	// output.
	kbcKeyboardLine = 1
)

// kbc models the output side of an 8042 keyboard controller. The controller
// holds one byte in its output buffer; bytes typed while it is full wait in
// the keyboard's own queue.
type kbc struct {
	queue  []byte
	output uint8
	full   bool

	// lastCommand is the last byte written to the command port. Commands
	// are accepted but have no effect.
	lastCommand uint8
}

func (k *kbc) status() uint8 {
	status := uint8(kbcStatusSystem)
	if k.full {
		status |= kbcStatusOutputFull
	}
	return status
}

// readData empties the output buffer. If more input is queued, the next
// byte is loaded and true is returned to signal a new interrupt.
func (k *kbc) readData() (uint8, bool) {
	v := k.output
	k.full = false
	return v, k.load()
}

// feed queues a byte from the keyboard and returns true if it was loaded
// into the output buffer right away.
func (k *kbc) feed(b byte) bool {
	k.queue = append(k.queue, b)
	if k.full {
		return false
	}
	return k.load()
}

func (k *kbc) load() bool {
	if len(k.queue) == 0 {
		return false
	}
	k.output, k.queue = k.queue[0], k.queue[1:]
	k.full = true
	return true
}

// backlog returns the number of bytes not yet read by the CPU.
func (k *kbc) backlog() int {
	n := len(k.queue)
	if k.full {
		n++
	}
	return n
}
