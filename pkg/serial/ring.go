package serial

import (
	"runtime"

	"go.uber.org/atomic"
)

// Ring is a single-producer/single-consumer byte ring. Only the producer
// advances head and only the consumer advances tail, so no lock is needed.
// One slot is always kept free to tell full from empty.
type Ring struct {
	buf  []byte
	head atomic.Uint32 // next write slot, owned by producer
	tail atomic.Uint32 // next read slot, owned by consumer
}

// NewRing creates a Ring which holds up to size bytes.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{buf: make([]byte, size+1)}
}

// Size returns the number of bytes the ring can hold.
func (r *Ring) Size() int {
	return len(r.buf) - 1
}

func (r *Ring) next(i uint32) uint32 {
	if i++; i == uint32(len(r.buf)) {
		return 0
	}
	return i
}

// Push appends b. It never blocks and returns false when the ring is full.
// Producer only.
func (r *Ring) Push(b byte) bool {
	head := r.head.Load()
	next := r.next(head)
	if next == r.tail.Load() {
		return false
	}
	r.buf[head] = b
	r.head.Store(next)
	return true
}

// PushWait appends b, spinning while the ring is full. abort is checked on
// every spin; if it reports true the byte is dropped and false returned.
// Producer only.
func (r *Ring) PushWait(b byte, abort func() bool) bool {
	head := r.head.Load()
	next := r.next(head)
	for next == r.tail.Load() {
		if abort != nil && abort() {
			return false
		}
		runtime.Gosched()
	}
	r.buf[head] = b
	r.head.Store(next)
	return true
}

// Pop removes the oldest byte. Consumer only.
func (r *Ring) Pop() (byte, bool) {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return 0, false
	}
	b := r.buf[tail]
	r.tail.Store(r.next(tail))
	return b, true
}

// Peek returns the oldest byte without removing it. Consumer only.
func (r *Ring) Peek() (byte, bool) {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return 0, false
	}
	return r.buf[tail], true
}

// Skip removes the oldest byte, normally after a successful Peek.
// Consumer only.
func (r *Ring) Skip() {
	tail := r.tail.Load()
	if tail != r.head.Load() {
		r.tail.Store(r.next(tail))
	}
}

// Reset discards everything queued. Consumer only.
func (r *Ring) Reset() {
	r.tail.Store(r.head.Load())
}

// Used returns the number of queued bytes.
func (r *Ring) Used() int {
	head, tail := int(r.head.Load()), int(r.tail.Load())
	if head >= tail {
		return head - tail
	}
	return len(r.buf) - (tail - head)
}

// Available returns the number of bytes which can still be pushed.
func (r *Ring) Available() int {
	head, tail := int(r.head.Load()), int(r.tail.Load())
	if head >= tail {
		return r.Size() - (head - tail)
	}
	return tail - head - 1
}

// IsEmpty indicates nothing is queued.
func (r *Ring) IsEmpty() bool {
	return r.head.Load() == r.tail.Load()
}
