// Package ringbuf implements a fixed-capacity byte queue that hands data
// from a single producer (usually an interrupt handler) to a single consumer
// (usually a task blocked in a read system call) without locking.
//
// The buffer never allocates: the caller supplies the backing storage. The
// producer owns the write index and the consumer owns the read index; each
// side publishes its index with a release store and observes the other side
// with an acquire load. Using more than one producer or consumer at a time
// requires an external lock.
package ringbuf

import (
	"io"
	"sync/atomic"

	"github.com/whampson/ohwes/kernel"
)

// MaxCapacity is the largest supported storage size. Indices run modulo
// twice the capacity so that a full buffer can be told apart from an empty
// one without a counter shared by both sides.
const MaxCapacity = 1 << 30

var (
	// ErrFull is returned by Write when the buffer filled up before all
	// bytes could be queued.
	ErrFull = &kernel.Error{Module: "ringbuf", Message: "buffer full"}

	errBadCapacity = &kernel.Error{Module: "ringbuf", Message: "storage size must be in [1, MaxCapacity]"}
)

// Buffer is a single-producer/single-consumer ring buffer. The zero value is
// not usable until Init is called.
type Buffer struct {
	data []byte
	size uint32

	// rIndex and wIndex are kept in [0, 2*size).
	rIndex uint32
	wIndex uint32

	dropped uint32
}

// Init binds the buffer to storage and resets it to the empty state. The
// capacity of the buffer is len(storage). Init must not race with Put or Get.
func (b *Buffer) Init(storage []byte) *kernel.Error {
	if len(storage) == 0 || len(storage) > MaxCapacity {
		return errBadCapacity
	}

	b.data = storage
	b.size = uint32(len(storage))
	b.Reset()
	return nil
}

// Reset discards any queued bytes and clears the drop counter.
func (b *Buffer) Reset() {
	atomic.StoreUint32(&b.rIndex, 0)
	atomic.StoreUint32(&b.wIndex, 0)
	atomic.StoreUint32(&b.dropped, 0)
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int {
	return int(b.size)
}

// Len returns the number of queued bytes.
func (b *Buffer) Len() int {
	return int(b.count(atomic.LoadUint32(&b.rIndex), atomic.LoadUint32(&b.wIndex)))
}

// Empty returns true if there are no bytes to read.
func (b *Buffer) Empty() bool {
	return b.Len() == 0
}

// Full returns true if the next Put will be rejected.
func (b *Buffer) Full() bool {
	return b.Len() == int(b.size)
}

// Dropped returns the number of bytes rejected by Put because the buffer was
// full.
func (b *Buffer) Dropped() uint32 {
	return atomic.LoadUint32(&b.dropped)
}

// Put appends c to the buffer. If the buffer is full, c is dropped, the drop
// counter is incremented and Put returns false; queued bytes are never
// overwritten. Put must only be called by the producer.
func (b *Buffer) Put(c byte) bool {
	w := b.wIndex
	if b.count(atomic.LoadUint32(&b.rIndex), w) == b.size {
		atomic.AddUint32(&b.dropped, 1)
		return false
	}

	b.data[b.slot(w)] = c
	atomic.StoreUint32(&b.wIndex, b.advance(w))
	return true
}

// Get removes and returns the oldest byte in the buffer. Calling Get on an
// empty buffer is a contract violation: it returns 0 and leaves the buffer
// untouched. Get must only be called by the consumer.
func (b *Buffer) Get() byte {
	c, _ := b.TryGet()
	return c
}

// TryGet removes and returns the oldest byte in the buffer. The second return
// value is false if the buffer was empty.
func (b *Buffer) TryGet() (byte, bool) {
	r := b.rIndex
	if b.count(r, atomic.LoadUint32(&b.wIndex)) == 0 {
		return 0, false
	}

	c := b.data[b.slot(r)]
	atomic.StoreUint32(&b.rIndex, b.advance(r))
	return c, true
}

// Read implements io.Reader for the consumer side. It returns io.EOF if the
// buffer is empty.
func (b *Buffer) Read(p []byte) (int, error) {
	var n int
	for ; n < len(p); n++ {
		c, ok := b.TryGet()
		if !ok {
			break
		}
		p[n] = c
	}

	if n == 0 && len(p) != 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer for the producer side. Bytes that do not fit are
// dropped and Write returns ErrFull along with the number of queued bytes.
func (b *Buffer) Write(p []byte) (int, error) {
	for n, c := range p {
		if !b.Put(c) {
			// Only the first rejected byte is counted by Put; account for
			// the rest of the slice too.
			atomic.AddUint32(&b.dropped, uint32(len(p)-n-1))
			return n, ErrFull
		}
	}
	return len(p), nil
}

func (b *Buffer) count(r, w uint32) uint32 {
	if w >= r {
		return w - r
	}
	return 2*b.size - r + w
}

func (b *Buffer) slot(index uint32) uint32 {
	if index >= b.size {
		return index - b.size
	}
	return index
}

func (b *Buffer) advance(index uint32) uint32 {
	if index++; index == 2*b.size {
		return 0
	}
	return index
}
