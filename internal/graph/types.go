// Package graph implements the audio graph engine: a directed acyclic graph
// of processing nodes ticked on a wall-clock cadence derived from the sample
// rate and block size. See spec §4.2.
package graph

// StereoFrame is a pair of floating point samples, [L, R]. The equilibrium
// (silence) value is the zero value.
type StereoFrame [2]float32

// Equilibrium is silence: [0.0, 0.0].
var Equilibrium = StereoFrame{0, 0}

// SampleBlock holds one channel's worth of samples produced by a single
// tick. Its length is always the graph's block length.
type SampleBlock []float32

// Processor is the interface implemented by opaque Custom nodes (spec §3,
// "Custom { processor }"). Inputs holds one slice of per-channel SampleBlocks
// per incoming edge, all filled by the upstream node earlier in this tick;
// Process must fill output in place.
type Processor interface {
	Channels() int
	Process(inputs [][]SampleBlock, output []SampleBlock)
}

func newBlocks(channels, blockLen int) []SampleBlock {
	blocks := make([]SampleBlock, channels)
	for i := range blocks {
		blocks[i] = make(SampleBlock, blockLen)
	}
	return blocks
}

func clearBlocks(blocks []SampleBlock) {
	for _, b := range blocks {
		for i := range b {
			b[i] = 0
		}
	}
}
