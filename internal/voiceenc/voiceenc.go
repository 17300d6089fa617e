// Package voiceenc implements the OPUS encoder loop: a wall-clock-anchored
// task that pulls mixed stereo frames off a graph Output node, attenuates
// gain, encodes to OPUS, and hands the result to a voice sink. See spec §4.3.
package voiceenc

import (
	"context"
	"log/slog"
	"time"

	"github.com/arung-agamani/roomd/internal/graph"
	"gopkg.in/hraban/opus.v2"
)

// Gain is the fixed attenuation factor applied to every sample before
// encoding, preserved from the source's scale_amp(0.1).
const Gain = 0.1

// Packet is one encoded voice frame ready for transport.
type Packet struct {
	Sequence   uint64
	Payload    []byte
	Terminator bool
}

// Sink receives encoded packets. Satisfied by internal/voice's UDP sink.
type Sink interface {
	Send(ctx context.Context, pkt Packet) error
}

// Loop owns the OPUS encoder and the per-stream sequence counter for one
// Output node.
type Loop struct {
	out        *graph.OutputHandle
	sink       Sink
	sampleRate int
	frameMS    int
	samples    int

	enc *opus.Encoder

	sequence   uint64
	prevSilent bool
}

// New builds a Loop encoding sampleRate-Hz stereo audio in frameMS
// millisecond blocks (typically 10ms, per §4.3).
func New(out *graph.OutputHandle, sink Sink, sampleRate, frameMS int) (*Loop, error) {
	enc, err := opus.NewEncoder(sampleRate, 2, opus.AppAudio)
	if err != nil {
		return nil, err
	}

	return &Loop{
		out:        out,
		sink:       sink,
		sampleRate: sampleRate,
		frameMS:    frameMS,
		samples:    sampleRate * frameMS / 1000,
		enc:        enc,
	}, nil
}

// Run drives the encode/send loop on a wall-clock ticker until ctx is
// cancelled. The interval is anchored to wall time, not the mixer's tick
// count (spec §4.3's "Timing discipline"): drift between mixer and encoder
// is absorbed by the Output ring's capacity.
func (l *Loop) Run(ctx context.Context) {
	interval := time.Duration(l.frameMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("opus encoder loop started", "sample_rate", l.sampleRate, "frame_ms", l.frameMS)

	frames := make([]graph.StereoFrame, l.samples)
	pcm := make([]int16, l.samples*2)
	opusBuf := make([]byte, 4000)

	for {
		select {
		case <-ctx.Done():
			slog.Info("opus encoder loop stopping")
			return
		case <-ticker.C:
			l.tick(ctx, frames, pcm, opusBuf)
		}
	}
}

func (l *Loop) tick(ctx context.Context, frames []graph.StereoFrame, pcm []int16, opusBuf []byte) {
	n := l.out.PopInto(frames)
	for i := n; i < len(frames); i++ {
		frames[i] = graph.Equilibrium
	}

	silent := true
	for i, fr := range frames {
		left, right := fr[0]*Gain, fr[1]*Gain
		if left != 0 || right != 0 {
			silent = false
		}
		pcm[i*2] = floatToInt16(left)
		pcm[i*2+1] = floatToInt16(right)
	}

	if silent && l.prevSilent {
		// Skip: an empty block following another empty block is not sent.
		return
	}

	terminator := silent && !l.prevSilent
	l.prevSilent = silent

	encLen, err := l.enc.Encode(pcm, opusBuf)
	if err != nil {
		slog.Warn("opus encode failed", "error", err)
		return
	}

	pkt := Packet{
		Sequence:   l.sequence,
		Payload:    append([]byte(nil), opusBuf[:encLen]...),
		Terminator: terminator,
	}
	l.sequence++

	if err := l.sink.Send(ctx, pkt); err != nil {
		slog.Warn("voice sink send failed", "error", err)
	}
}

func floatToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(x * 32767)
}
