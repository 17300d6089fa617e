// Package room implements the Room Controller: a single-task state machine
// that owns a playlist tracker and the Player currently streaming into the
// audio graph, serialized through a message channel. See spec §4.6.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arung-agamani/roomd/internal/decode"
	"github.com/arung-agamani/roomd/internal/graph"
	"github.com/arung-agamani/roomd/internal/tree"
)

// ResolveFunc resolves a Track to a locally playable file path, downloading
// and caching as needed. internal/media.Resolve paired with a track-to-
// provider lookup satisfies this in production; tests can stub it.
type ResolveFunc func(ctx context.Context, track *tree.Track) (string, error)

// Controller owns a Playlist tracker and the currently playing Player
// exclusively, processing one Message at a time off a bounded channel. All
// other access goes through Play/Pause/Next/etc., which round-trip a
// request onto that channel and block for its Result.
type Controller struct {
	tracker    *tree.Tracker
	input      *graph.InputHandle
	sampleRate int
	resolve    ResolveFunc

	player       *decode.Player
	playerSubID  uint64
	playerEvents <-chan decode.Event
	newPlayer    func(ctx context.Context, path string, input *graph.InputHandle, sampleRate int) (*decode.Player, error)

	reqCh chan request

	subsMu sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
}

// New constructs a Controller over tracker, streaming decoded audio into
// input. resolve is consulted on every Skip to turn a chosen Track into a
// playable path.
func New(tracker *tree.Tracker, input *graph.InputHandle, sampleRate int, resolve ResolveFunc) *Controller {
	return &Controller{
		tracker:    tracker,
		input:      input,
		sampleRate: sampleRate,
		resolve:    resolve,
		newPlayer:  decode.New,
		reqCh:      make(chan request, 16),
		subs:       make(map[uint64]chan Event),
	}
}

// Subscribe registers a new Event listener. The caller must call
// Unsubscribe when done.
func (c *Controller) Subscribe() (id uint64, ch <-chan Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id = c.nextID
	c.nextID++
	ch2 := make(chan Event, 16)
	c.subs[id] = ch2
	return id, ch2
}

// Unsubscribe removes a previously registered listener.
func (c *Controller) Unsubscribe(id uint64) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) emit(ev Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("room event dropped, subscriber too slow")
		}
	}
}

// Run is the Controller's event loop, per spec §4.6/§9: a select over the
// request channel and the current Player's event channel (nil, hence never
// ready, when there is no Player). It returns when reqCh is closed or ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return

		case req, ok := <-c.reqCh:
			if !ok {
				c.shutdown()
				return
			}
			c.handle(ctx, req)

		case ev, ok := <-c.playerEvents:
			if !ok {
				c.playerEvents = nil
				continue
			}
			c.handlePlayerEvent(ctx, ev)
		}
	}
}

func (c *Controller) shutdown() {
	if c.player != nil {
		_ = c.player.Pause()
		c.player.Unsubscribe(c.playerSubID)
		c.player = nil
		c.playerEvents = nil
	}
}

func (c *Controller) handlePlayerEvent(ctx context.Context, ev decode.Event) {
	c.emit(Event{Kind: EventPlayer, Player: ev})

	if ev.Kind == decode.EventPaused && ev.Stopped {
		if err := c.skip(ctx); err != nil {
			slog.Warn("room: skip after track end failed", "error", err)
		}
	}
}

func (c *Controller) handle(ctx context.Context, req request) {
	switch req.msg.Kind {
	case MessagePlay:
		var err error
		if c.player == nil {
			err = c.skip(ctx)
		} else {
			err = c.player.Play()
		}
		req.reply <- Result{Err: err}

	case MessagePause:
		var err error
		if c.player != nil {
			err = c.player.Pause()
		}
		req.reply <- Result{Err: err}

	case MessageNext:
		req.reply <- Result{Err: c.skip(ctx)}

	case MessageToggleRandom:
		newVal := !c.tracker.Random()
		c.tracker.SetRandom(newVal)
		req.reply <- Result{Random: newVal}

	case MessageSetPlaylist:
		c.tracker.SetPlaylist(req.msg.Playlist)
		req.reply <- Result{Err: c.skip(ctx)}

	case MessageAddPlaylist:
		req.reply <- Result{Err: c.tracker.AddPlaylist(req.msg.Playlist, req.msg.Path)}

	case MessageGetPlaylist:
		req.reply <- Result{Playlist: c.tracker.Playlist()}

	default:
		req.reply <- Result{Err: fmt.Errorf("room: unknown message kind %d", req.msg.Kind)}
	}
}

// skip pauses and drops the current Player, selects the next track from the
// tracker, and starts it. A track whose provider fails to resolve or probe
// is logged and skipped over by retrying with the next track, per spec §7's
// "skipped with an event" handling of MediaProbe/MediaFetch failures. Retries
// are bounded: a playlist where every track fails to resolve must still
// terminate rather than loop forever chasing a shuffled or sequential
// selection that never runs dry.
const maxSkipAttempts = 32

func (c *Controller) skip(ctx context.Context) error {
	c.dropPlayer()

	for attempt := 0; attempt < maxSkipAttempts; attempt++ {
		track, err := c.tracker.Next()
		if err != nil {
			if !errors.Is(err, tree.ErrNoTracks) {
				slog.Warn("room: tracker.Next error, treating as no tracks", "error", err)
			}
			c.emit(Event{Kind: EventTrackCleared})
			return nil
		}

		path, err := c.resolve(ctx, track)
		if err != nil {
			slog.Warn("room: resolve failed, skipping track", "track", track.ID, "error", err)
			continue
		}

		player, err := c.newPlayer(ctx, path, c.input, c.sampleRate)
		if err != nil {
			slog.Warn("room: probe failed, skipping track", "track", track.ID, "error", err)
			continue
		}

		if err := player.Play(); err != nil {
			slog.Warn("room: play failed, skipping track", "track", track.ID, "error", err)
			continue
		}

		id, ch := player.Subscribe()
		c.player = player
		c.playerSubID = id
		c.playerEvents = ch

		c.emit(Event{Kind: EventTrackChanged, Track: track, Length: player.Length()})
		return nil
	}

	slog.Warn("room: exhausted skip attempts, clearing track")
	c.emit(Event{Kind: EventTrackCleared})
	return nil
}

func (c *Controller) dropPlayer() {
	if c.player == nil {
		return
	}
	_ = c.player.Pause()
	c.player.Unsubscribe(c.playerSubID)
	c.player = nil
	c.playerEvents = nil
}

func (c *Controller) do(ctx context.Context, msg Message) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case c.reqCh <- request{msg: msg, reply: reply}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Play plays the current Player, or calls Skip if none is active.
func (c *Controller) Play(ctx context.Context) error {
	res, err := c.do(ctx, Message{Kind: MessagePlay})
	if err != nil {
		return err
	}
	return res.Err
}

// Pause pauses the current Player, if any.
func (c *Controller) Pause(ctx context.Context) error {
	res, err := c.do(ctx, Message{Kind: MessagePause})
	if err != nil {
		return err
	}
	return res.Err
}

// Next advances to the next track, per spec's Skip.
func (c *Controller) Next(ctx context.Context) error {
	res, err := c.do(ctx, Message{Kind: MessageNext})
	if err != nil {
		return err
	}
	return res.Err
}

// ToggleRandom flips shuffle mode and returns the new value.
func (c *Controller) ToggleRandom(ctx context.Context) (bool, error) {
	res, err := c.do(ctx, Message{Kind: MessageToggleRandom})
	if err != nil {
		return false, err
	}
	return res.Random, nil
}

// SetPlaylist replaces the tracked playlist with pl and skips to its first
// selection.
func (c *Controller) SetPlaylist(ctx context.Context, pl *tree.Playlist) error {
	res, err := c.do(ctx, Message{Kind: MessageSetPlaylist, Playlist: pl})
	if err != nil {
		return err
	}
	return res.Err
}

// AddPlaylist inserts sub at path within the current playlist tree.
func (c *Controller) AddPlaylist(ctx context.Context, sub *tree.Playlist, path tree.TreePath) error {
	res, err := c.do(ctx, Message{Kind: MessageAddPlaylist, Playlist: sub, Path: path})
	if err != nil {
		return err
	}
	return res.Err
}

// GetPlaylist returns the currently tracked playlist.
func (c *Controller) GetPlaylist(ctx context.Context) (*tree.Playlist, error) {
	res, err := c.do(ctx, Message{Kind: MessageGetPlaylist})
	if err != nil {
		return nil, err
	}
	return res.Playlist, nil
}

// Close stops the Controller's Run loop once any in-flight requests have
// been processed, per spec §4.6's termination rule.
func (c *Controller) Close() {
	close(c.reqCh)
}
