package graph

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Core is the process-wide audio graph instance (spec §9: "a process-wide
// instance only by convention; a clean implementation passes it by
// reference from process startup"). All builder operations and Tick lock
// the same mutex, matching the teacher's single-mutex-guards-shared-state
// idiom throughout internal/playlist.
type Core struct {
	mu         sync.Mutex
	g          *Graph
	sampleRate int
	blockLen   int
}

// NewCore creates a Core for the given sample rate and block length (spec
// §4.2: tick cadence = blockLen/sampleRate seconds).
func NewCore(sampleRate, blockLen int) *Core {
	if sampleRate <= 0 || blockLen <= 0 {
		panic("graph: sampleRate and blockLen must be positive")
	}
	return &Core{
		g:          NewGraph(),
		sampleRate: sampleRate,
		blockLen:   blockLen,
	}
}

// TickInterval returns the wall-clock period between ticks.
func (c *Core) TickInterval() time.Duration {
	return time.Duration(float64(c.blockLen) / float64(c.sampleRate) * float64(time.Second))
}

// Tick advances the graph by exactly one block. Exposed directly so tests
// can drive deterministic numbers of ticks (spec §8 end-to-end scenarios).
func (c *Core) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.g.tick(c.blockLen)
}

// Run starts the periodic tick loop and blocks until ctx is cancelled. The
// tick itself (Core.Tick) holds only the short-lived graph mutex; it never
// suspends mid-tick.
func (c *Core) Run(ctx context.Context) {
	ticker := time.NewTicker(c.TickInterval())
	defer ticker.Stop()

	slog.Info("audio graph engine started", "sample_rate", c.sampleRate, "block_len", c.blockLen)

	for {
		select {
		case <-ctx.Done():
			slog.Info("audio graph engine stopping")
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// AddOutput creates an Output node and returns a handle to it. The first
// Output created becomes the default target for subsequent AddInput calls.
func (c *Core) AddOutput() *OutputHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.g.addOutput()
	return &OutputHandle{core: c, index: idx, out: c.g.nodes[idx].outRing}
}

// AddInput creates an Input node wired to the current default Output (if
// any) and returns a handle to it.
func (c *Core) AddInput() *InputHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.g.addInputTo(c.g.defaultOutput)
	n := c.g.nodes[idx]
	return &InputHandle{core: c, index: idx, in: n.inRing, running: &n.running}
}

// AddInputTo creates an Input node wired to the specified Output handle.
func (c *Core) AddInputTo(target *OutputHandle) *InputHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.g.addInputTo(target.index)
	n := c.g.nodes[idx]
	return &InputHandle{core: c, index: idx, in: n.inRing, running: &n.running}
}

// AddCustom adds an opaque Custom processing node.
func (c *Core) AddCustom(p Processor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.g.addCustom(p)
}
