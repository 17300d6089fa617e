package decode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/arung-agamani/roomd/internal/graph"
)

// State is the Player's two-state machine, per spec §4.4.
type State int

const (
	StateIdle State = iota
	StatePlaying
)

// Player decodes path starting at an offset and streams stereo frames into
// an Input handle, driving ffmpeg as a subprocess. See spec §4.4.
type Player struct {
	path       string
	input      *graph.InputHandle
	sampleRate int
	length     time.Duration

	mu           sync.Mutex
	state        State
	offset       time.Duration
	playingSince time.Time
	generation   uint64
	cancel       context.CancelFunc
	waitDone     chan struct{}

	subsMu sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
}

// New probes path for its length and returns an idle Player ready to drive
// input. Probe failure is fatal to construction, per spec §7's MediaProbe
// taxonomy.
func New(ctx context.Context, path string, input *graph.InputHandle, sampleRate int) (*Player, error) {
	length, err := Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("decode: new player: %w", err)
	}

	return NewWithLength(path, input, sampleRate, length), nil
}

// NewWithLength builds an idle Player from an already-known duration,
// skipping the ffprobe round trip. Useful when duration was already
// established (internal/media's provider metadata) or when constructing a
// Player in a test without a real media file.
func NewWithLength(path string, input *graph.InputHandle, sampleRate int, length time.Duration) *Player {
	return &Player{
		path:       path,
		input:      input,
		sampleRate: sampleRate,
		length:     length,
		subs:       make(map[uint64]chan Event),
	}
}

// Length returns the media's probed duration.
func (p *Player) Length() time.Duration {
	return p.length
}

// IsPlaying reports whether the Player is currently in the Playing state.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StatePlaying
}

// Position returns the current playback position, per spec §4.4: equal to
// offset while idle, or offset plus elapsed wall time while playing, clamped
// to length.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	pos := p.offset
	if p.state == StatePlaying {
		pos += time.Since(p.playingSince)
	}
	return clampDuration(pos, 0, p.length)
}

// Subscribe registers a new event listener. The caller must call Unsubscribe
// when done.
func (p *Player) Subscribe() (id uint64, ch <-chan Event) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	id = p.nextID
	p.nextID++
	c := make(chan Event, 16)
	p.subs[id] = c
	return id, c
}

// Unsubscribe removes a previously registered listener.
func (p *Player) Unsubscribe(id uint64) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	if c, ok := p.subs[id]; ok {
		delete(p.subs, id)
		close(c)
	}
}

func (p *Player) emit(ev Event) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for _, c := range p.subs {
		select {
		case c <- ev:
		default:
			slog.Warn("player event dropped, subscriber too slow")
		}
	}
}

// Play spawns the decoder at the current offset and begins streaming. A
// no-op if already playing. Decoder spawn failure is fatal to the attempt;
// the Player remains Idle and the error is surfaced to the caller.
func (p *Player) Play() error {
	p.mu.Lock()
	if p.state == StatePlaying {
		p.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd, stdout, err := spawnDecoder(ctx, p.path, p.offset, p.sampleRate)
	if err != nil {
		cancel()
		p.mu.Unlock()
		return err
	}

	p.generation++
	gen := p.generation
	p.cancel = cancel
	done := make(chan struct{})
	p.waitDone = done
	p.input.SetRunning(true)

	now := time.Now()
	p.playingSince = now
	p.state = StatePlaying
	posAtPlay := p.offset
	p.mu.Unlock()

	p.emit(Event{Kind: EventPlaying, Now: now, Pos: posAtPlay})

	go p.runDecoder(ctx, gen, cmd, stdout, done)
	return nil
}

// runDecoder pumps PCM frames until EOF, cancellation, or error, then
// reconciles state. A cancellation (ctx.Err() != nil) means Pause or Seek is
// already handling the transition, so runDecoder does nothing further.
// Any other outcome — natural EOF or a decoder runtime error — is treated as
// EOF for event purposes, per spec §4.4/§7.
func (p *Player) runDecoder(ctx context.Context, gen uint64, cmd *exec.Cmd, stdout io.ReadCloser, done chan struct{}) {
	defer close(done)

	pumpErr := pumpFrames(ctx, stdout, p.input)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return
	}

	if pumpErr != nil {
		slog.Warn("decoder pump error, treating as EOF", "error", pumpErr, "path", p.path)
	}
	if waitErr != nil {
		slog.Warn("decoder process exited with error, treating as EOF", "error", waitErr, "path", p.path)
	}

	p.onDecoderExit(gen)
}

func (p *Player) onDecoderExit(gen uint64) {
	p.mu.Lock()
	if p.generation != gen || p.state != StatePlaying {
		p.mu.Unlock()
		return
	}

	elapsed := time.Since(p.playingSince)
	p.offset = clampDuration(p.offset+elapsed, 0, p.length)
	p.input.SetRunning(false)
	p.state = StateIdle
	now := time.Now()
	pos := p.offset
	p.mu.Unlock()

	p.emit(Event{Kind: EventPaused, Now: now, Pos: pos, Stopped: true})
}

// Pause cancels the running decoder and joins it, then emits a
// Paused{stopped=false} event. A no-op if already idle (idempotent, per
// spec §8's Law).
func (p *Player) Pause() error {
	p.mu.Lock()
	if p.state != StatePlaying {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	done := p.waitDone
	gen := p.generation
	p.mu.Unlock()

	cancel()
	<-done

	p.mu.Lock()
	if p.generation != gen || p.state != StatePlaying {
		// The decoder's own goroutine already reconciled this as a natural
		// EOF (it raced with our cancel); nothing left to do.
		p.mu.Unlock()
		return nil
	}

	elapsed := time.Since(p.playingSince)
	p.offset = clampDuration(p.offset+elapsed, 0, p.length)
	p.input.SetRunning(false)
	p.state = StateIdle
	now := time.Now()
	pos := p.offset
	p.mu.Unlock()

	p.emit(Event{Kind: EventPaused, Now: now, Pos: pos, Stopped: false})
	return nil
}

// Seek clamps t to [0, length] and relocates playback there. If the Player
// was playing, it pauses, relocates, then resumes.
func (p *Player) Seek(t time.Duration) error {
	p.mu.Lock()
	wasPlaying := p.state == StatePlaying
	p.mu.Unlock()

	if wasPlaying {
		if err := p.Pause(); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.offset = clampDuration(t, 0, p.length)
	p.mu.Unlock()

	if wasPlaying {
		return p.Play()
	}
	return nil
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
