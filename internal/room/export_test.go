package room

import (
	"context"

	"github.com/arung-agamani/roomd/internal/decode"
	"github.com/arung-agamani/roomd/internal/graph"
)

// SetPlayerFactory overrides how skip constructs Players, so tests can avoid
// spawning a real ffmpeg subprocess.
func (c *Controller) SetPlayerFactory(f func(ctx context.Context, path string, input *graph.InputHandle, sampleRate int) (*decode.Player, error)) {
	c.newPlayer = f
}
