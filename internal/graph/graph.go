package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/arung-agamani/roomd/internal/ring"
)

type kind int

const (
	kindNoOp kind = iota
	kindInput
	kindOutput
	kindCustom
)

const (
	// InputRingCapacity is the fixed capacity of every Input node's ring, per
	// spec §3 ("input rings: 512 frames").
	InputRingCapacity = 512
	// OutputRingCapacity is the fixed capacity of every Output node's ring,
	// per spec §3 ("output rings: 8192 frames").
	OutputRingCapacity = 8192
)

// node is the tagged variant of spec §3's Node type, plus its per-tick
// scratch blocks (NodeData).
type node struct {
	kind     kind
	channels int
	blocks   []SampleBlock

	// Input-only.
	inRing    *ring.Ring[StereoFrame]
	running   atomic.Bool
	underflow atomic.Uint64

	// Output-only.
	outRing  *ring.Ring[StereoFrame]
	overflow atomic.Uint64

	// Custom-only.
	processor Processor
}

// Graph is a directed acyclic graph of nodes with untyped edges, per spec
// §3. Index 0 is always the distinguished "bottom" sink node.
type Graph struct {
	nodes         []*node
	edgesOut      [][]int // edgesOut[i] = nodes i has an edge to
	bottom        int
	defaultOutput int // -1 if none set yet
	order         []int
	orderDirty    bool
}

// NewGraph creates an empty graph containing only the bottom sink.
func NewGraph() *Graph {
	g := &Graph{defaultOutput: -1}
	g.bottom = g.addNode(kindNoOp, 0)
	g.orderDirty = true
	return g
}

func (g *Graph) addNode(k kind, channels int) int {
	n := &node{kind: k, channels: channels}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.edgesOut = append(g.edgesOut, nil)
	g.orderDirty = true
	return idx
}

func (g *Graph) addEdge(from, to int) {
	g.edgesOut[from] = append(g.edgesOut[from], to)
	g.orderDirty = true
}

// addInputTo creates an Input node wired to the given output node index (or
// to no output if target < 0), allocates its blocks lazily (block length is
// supplied at the first Tick via ensureBlocks), and returns its index.
func (g *Graph) addInputTo(target int) int {
	idx := g.addNode(kindInput, 2)
	n := g.nodes[idx]
	n.inRing = ring.New[StereoFrame](InputRingCapacity)
	if target >= 0 {
		g.addEdge(idx, target)
	}
	return idx
}

func (g *Graph) addOutput() int {
	idx := g.addNode(kindOutput, 2)
	n := g.nodes[idx]
	n.outRing = ring.New[StereoFrame](OutputRingCapacity)
	g.addEdge(idx, g.bottom)
	if g.defaultOutput < 0 {
		g.defaultOutput = idx
	}
	return idx
}

func (g *Graph) addCustom(p Processor) int {
	idx := g.addNode(kindCustom, p.Channels())
	g.nodes[idx].processor = p
	return idx
}

// incoming returns the indices of the nodes with an edge pointing at
// target. Computed on demand; the graph is small so this is cheap.
func (g *Graph) incoming(target int) []int {
	var in []int
	for from, tos := range g.edgesOut {
		for _, to := range tos {
			if to == target {
				in = append(in, from)
			}
		}
	}
	return in
}

// topoOrder returns node indices in forward topological order (sources
// first, the bottom sink last) via Kahn's algorithm. Iteration order among
// equal-priority nodes is by index, for determinism.
func (g *Graph) topoOrder() []int {
	inDegree := make([]int, len(g.nodes))
	for _, tos := range g.edgesOut {
		for _, to := range tos {
			inDegree[to]++
		}
	}

	var ready []int
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, len(g.nodes))
	for len(ready) > 0 {
		// Pop smallest index for determinism.
		minIdx := 0
		for i, v := range ready {
			if v < ready[minIdx] {
				minIdx = i
			}
		}
		cur := ready[minIdx]
		ready = append(ready[:minIdx], ready[minIdx+1:]...)
		order = append(order, cur)

		for _, to := range g.edgesOut[cur] {
			inDegree[to]--
			if inDegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(order) != len(g.nodes) {
		panic(fmt.Sprintf("graph: cycle detected (ordered %d of %d nodes)", len(order), len(g.nodes)))
	}

	return order
}

func (g *Graph) ensureOrder() []int {
	if g.orderDirty {
		g.order = g.topoOrder()
		g.orderDirty = false
	}
	return g.order
}

// ensureBlocks lazily allocates a node's per-tick scratch buffers to the
// given block length, reallocating only if the length changed.
func (n *node) ensureBlocks(blockLen int) {
	if len(n.blocks) == n.channels && len(n.blocks) > 0 && len(n.blocks[0]) == blockLen {
		return
	}
	n.blocks = newBlocks(n.channels, blockLen)
}

// tick advances the whole graph by one block. This is the uninterruptible
// critical section of spec §4.2: it must not suspend or allocate unboundedly.
func (g *Graph) tick(blockLen int) {
	order := g.ensureOrder()

	for _, idx := range order {
		n := g.nodes[idx]
		n.ensureBlocks(blockLen)

		switch n.kind {
		case kindNoOp:
			// Contributes nothing.
		case kindInput:
			processInput(n, blockLen)
		case kindOutput:
			in := g.incoming(idx)
			inputs := make([]*node, len(in))
			for i, s := range in {
				inputs[i] = g.nodes[s]
			}
			processOutput(n, inputs, blockLen)
		case kindCustom:
			in := g.incoming(idx)
			inputBlocks := make([][]SampleBlock, len(in))
			for i, s := range in {
				inputBlocks[i] = g.nodes[s].blocks
			}
			n.processor.Process(inputBlocks, n.blocks)
		}
	}
}

// processInput fills the Input node's output blocks per spec §4.2: silence
// while not running, else drain up to blockLen frames from the ring,
// substituting equilibrium for underflow, then fire the producer's waker.
func processInput(n *node, blockLen int) {
	if !n.running.Load() {
		clearBlocks(n.blocks)
		return
	}

	underflow := 0
	for i := 0; i < blockLen; i++ {
		frame, ok := n.inRing.Pop()
		if !ok {
			frame = Equilibrium
			underflow++
		}
		n.blocks[0][i] = frame[0]
		n.blocks[1][i] = frame[1]
	}

	if underflow > 0 {
		n.underflow.Add(uint64(underflow))
	}

	if w := n.inRing.TakeWaker(); w != nil {
		w()
	}
}

// processOutput mixes every incoming edge's blocks sample-wise into scratch,
// then pushes the resulting frames into the output ring, counting overflow
// for any the ring refuses, per spec §4.2.
func processOutput(n *node, inputs []*node, blockLen int) {
	clearBlocks(n.blocks)

	for _, in := range inputs {
		for ch := 0; ch < len(n.blocks) && ch < len(in.blocks); ch++ {
			src := in.blocks[ch]
			dst := n.blocks[ch]
			for i := 0; i < blockLen && i < len(src); i++ {
				dst[i] += src[i]
			}
		}
	}

	overflow := 0
	for i := 0; i < blockLen; i++ {
		frame := StereoFrame{n.blocks[0][i], n.blocks[1][i]}
		if _, ok := n.outRing.Push(frame); !ok {
			overflow++
		}
	}

	if overflow > 0 {
		n.overflow.Add(uint64(overflow))
	}
}
