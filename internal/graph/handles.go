package graph

import (
	"context"
	"sync/atomic"

	"github.com/arung-agamani/roomd/internal/ring"
)

// InputHandle is the producer-side endpoint for an Input node: it carries
// only the node's index and a shared reference to its ring and running
// flag, per spec §3's ownership note.
type InputHandle struct {
	core    *Core
	index   int
	in      *ring.Ring[StereoFrame]
	running *atomic.Bool
}

// SetRunning toggles whether the mixer treats this input as live. While
// false the graph substitutes silence every tick regardless of ring
// contents.
func (h *InputHandle) SetRunning(running bool) {
	h.running.Store(running)
}

// Running reports the current running flag.
func (h *InputHandle) Running() bool {
	return h.running.Load()
}

// Underflow returns the cumulative count of equilibrium substitutions made
// because the ring ran dry during a tick.
func (h *InputHandle) Underflow() uint64 {
	return h.core.g.nodes[h.index].underflow.Load()
}

// TryPush attempts a single non-blocking push, returning false if the ring
// is full.
func (h *InputHandle) TryPush(frame StereoFrame) bool {
	_, ok := h.in.Push(frame)
	return ok
}

// Push pushes frame into the ring, yielding cooperatively via the ring's
// wake handle if the ring is full until the mixer drains it (spec §4.4: "If
// the push blocks because the ring is full, the Player yields cooperatively
// until the mixer drains the ring and wakes it").
func (h *InputHandle) Push(ctx context.Context, frame StereoFrame) error {
	for {
		if h.TryPush(frame) {
			return nil
		}

		woken := make(chan struct{})
		h.in.SetWaker(func() { close(woken) })

		// Re-check in case the mixer drained the ring between the failed push
		// and registering the waker.
		if h.TryPush(frame) {
			h.in.TakeWaker()
			return nil
		}

		select {
		case <-woken:
			continue
		case <-ctx.Done():
			h.in.TakeWaker()
			return ctx.Err()
		}
	}
}

// OutputHandle is the consumer-side endpoint for an Output node.
type OutputHandle struct {
	core  *Core
	index int
	out   *ring.Ring[StereoFrame]
}

// Pop returns the oldest mixed frame, or false if the ring is empty. A pull
// is always non-blocking; an empty ring means "not yet produced," handled by
// the caller as silence (spec §4.3).
func (h *OutputHandle) Pop() (StereoFrame, bool) {
	return h.out.Pop()
}

// PopInto drains up to len(dst) frames into dst and returns the count
// actually popped.
func (h *OutputHandle) PopInto(dst []StereoFrame) int {
	return h.out.PopInto(dst)
}

// Len returns the number of buffered frames currently waiting to be
// consumed.
func (h *OutputHandle) Len() int {
	return h.out.Len()
}

// Overflow returns the cumulative count of frames dropped because the ring
// was full when the mixer tried to push a mixed frame.
func (h *OutputHandle) Overflow() uint64 {
	return h.core.g.nodes[h.index].overflow.Load()
}

// Index returns the underlying node index, for AddInputTo routing.
func (h *OutputHandle) Index() int {
	return h.index
}
