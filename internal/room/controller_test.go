package room_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/roomd/internal/graph"
	"github.com/arung-agamani/roomd/internal/room"
	"github.com/arung-agamani/roomd/internal/tree"
)

func newTestInput(t *testing.T) *graph.InputHandle {
	t.Helper()
	core := graph.NewCore(48000, 960)
	out := core.AddOutput()
	return core.AddInputTo(out)
}

func errorResolve(ctx context.Context, track *tree.Track) (string, error) {
	return "", context.DeadlineExceeded
}

func runController(t *testing.T, c *room.Controller) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	return cancel
}

func TestPlayOnEmptyPlaylistEmitsTrackCleared(t *testing.T) {
	root := tree.NewPlaylist(tree.Flatten)
	tracker := tree.NewDefaultTracker(root)
	c := room.New(tracker, newTestInput(t), 48000, errorResolve)
	cancel := runController(t, c)
	defer cancel()

	_, ch := c.Subscribe()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, c.Play(ctx))

	select {
	case ev := <-ch:
		require.Equal(t, room.EventTrackCleared, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for TrackCleared")
	}
}

func TestResolveFailureExhaustsRetriesAndClears(t *testing.T) {
	root := tree.NewPlaylist(tree.Flatten)
	root.Entries = append(root.Entries, tree.Entry{Track: &tree.Track{ID: "t1", Title: "One"}})
	tracker := tree.NewDefaultTracker(root)
	tracker.SetRandom(false)

	var resolveCalls atomic.Int64
	resolve := func(ctx context.Context, track *tree.Track) (string, error) {
		resolveCalls.Add(1)
		return "", context.DeadlineExceeded
	}

	c := room.New(tracker, newTestInput(t), 48000, resolve)
	cancel := runController(t, c)
	defer cancel()

	_, ch := c.Subscribe()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	require.NoError(t, c.Next(ctx))

	select {
	case ev := <-ch:
		require.Equal(t, room.EventTrackCleared, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for TrackCleared")
	}
	require.Equal(t, int64(32), resolveCalls.Load())
}

func TestToggleRandomFlipsValue(t *testing.T) {
	root := tree.NewPlaylist(tree.Flatten)
	tracker := tree.NewDefaultTracker(root)
	tracker.SetRandom(true)
	c := room.New(tracker, newTestInput(t), 48000, errorResolve)
	cancel := runController(t, c)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	got, err := c.ToggleRandom(ctx)
	require.NoError(t, err)
	require.False(t, got)
	require.False(t, tracker.Random())
}

func TestAddPlaylistInvalidPathReturnsError(t *testing.T) {
	root := tree.NewPlaylist(tree.Flatten)
	tracker := tree.NewDefaultTracker(root)
	c := room.New(tracker, newTestInput(t), 48000, errorResolve)
	cancel := runController(t, c)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	sub := tree.NewPlaylist(tree.Flatten)
	err := c.AddPlaylist(ctx, sub, tree.TreePath{99})
	require.ErrorIs(t, err, tree.ErrInvalidPath)
}

func TestGetPlaylistReturnsCurrent(t *testing.T) {
	root := tree.NewPlaylist(tree.Flatten)
	root.Entries = append(root.Entries, tree.Entry{Track: &tree.Track{ID: "t1", Title: "One"}})
	tracker := tree.NewDefaultTracker(root)
	c := room.New(tracker, newTestInput(t), 48000, errorResolve)
	cancel := runController(t, c)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	pl, err := c.GetPlaylist(ctx)
	require.NoError(t, err)
	require.Same(t, root, pl)
}

func TestRunExitsOnContextCancel(t *testing.T) {
	root := tree.NewPlaylist(tree.Flatten)
	tracker := tree.NewDefaultTracker(root)
	c := room.New(tracker, newTestInput(t), 48000, errorResolve)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(runDone)
	}()

	cancel()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}
