package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPositionIdleEqualsOffset(t *testing.T) {
	p := newForTest(10*time.Second, 3*time.Second)
	require.Equal(t, 3*time.Second, p.Position())
	require.False(t, p.IsPlaying())
}

func TestPauseOnIdleIsNoOp(t *testing.T) {
	p := newForTest(10*time.Second, 0)
	require.NoError(t, p.Pause())
	require.NoError(t, p.Pause())
	require.False(t, p.IsPlaying())
	require.Equal(t, time.Duration(0), p.Position())
}

func TestClampDuration(t *testing.T) {
	require.Equal(t, time.Duration(0), clampDuration(-time.Second, 0, 5*time.Second))
	require.Equal(t, 5*time.Second, clampDuration(10*time.Second, 0, 5*time.Second))
	require.Equal(t, 2*time.Second, clampDuration(2*time.Second, 0, 5*time.Second))
}

func TestSeekWhileIdleClampsOffset(t *testing.T) {
	p := newForTest(10*time.Second, 0)
	require.NoError(t, p.Seek(50*time.Second))
	require.Equal(t, 10*time.Second, p.Position())

	require.NoError(t, p.Seek(-5*time.Second))
	require.Equal(t, time.Duration(0), p.Position())
}

func TestSubscribeUnsubscribe(t *testing.T) {
	p := newForTest(time.Second, 0)
	id, ch := p.Subscribe()
	p.emit(Event{Kind: EventPlaying, Now: time.Now(), Pos: 0})

	select {
	case ev := <-ch:
		require.Equal(t, EventPlaying, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}

	p.Unsubscribe(id)
	_, ok := <-ch
	require.False(t, ok)
}
