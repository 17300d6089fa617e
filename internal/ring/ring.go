// Package ring implements a fixed-capacity FIFO shared by exactly two
// parties: a producer and a consumer. It never blocks; a full push or an
// empty pop is an ordinary result, not a fatal error.
package ring

import "sync"

// Ring is a bounded single-producer/single-consumer queue. The zero value is
// not usable; construct with New.
type Ring[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int
	length int
	waker  func()
}

// New creates a Ring with the given fixed capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push enqueues x. If the ring is full, x is returned unchanged and the push
// is a no-op; otherwise it returns the zero value and ok is true.
func (r *Ring[T]) Push(x T) (rejected T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.length == len(r.buf) {
		return x, false
	}

	idx := (r.head + r.length) % len(r.buf)
	r.buf[idx] = x
	r.length++
	return rejected, true
}

// Pop removes and returns the oldest element. ok is false if the ring is
// empty.
func (r *Ring[T]) Pop() (x T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.length == 0 {
		return x, false
	}

	x = r.buf[r.head]
	var zero T
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.length--
	return x, true
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.length
}

// MaxLen returns the ring's fixed capacity.
func (r *Ring[T]) MaxLen() int {
	return len(r.buf)
}

// IsFull reports whether the ring is at capacity.
func (r *Ring[T]) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.length == len(r.buf)
}

// SetWaker records a callback to be fired the next time the ring is drained
// below capacity. At most one waker is stored; a producer that registers a
// new waker while one is already pending replaces it. This enforces
// at-most-one pending producer waiter per ring, per the backpressure
// contract: a full push should register a waker and retry once it fires.
func (r *Ring[T]) SetWaker(wake func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waker = wake
}

// TakeWaker removes and returns the currently stored waker, or nil if none is
// set. Callers that drain the ring should call this and, if non-nil, invoke
// it after releasing any lock of their own.
func (r *Ring[T]) TakeWaker() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.waker
	r.waker = nil
	return w
}

// PopInto pops up to len(dst) elements into dst in FIFO order and returns the
// number popped.
func (r *Ring[T]) PopInto(dst []T) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(dst)
	if n > r.length {
		n = r.length
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[r.head]
		var zero T
		r.buf[r.head] = zero
		r.head = (r.head + 1) % len(r.buf)
	}
	r.length -= n
	return n
}
